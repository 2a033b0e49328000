package units

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Source tells how a Format was derived.
type Source string

const (
	SourceParenthetical Source = "parenthetical"
	SourceSimple        Source = "simple"
	SourceUnknown       Source = "unknown"
)

// Format is a parsed purchase format such as "Package (4 Kg)".
type Format struct {
	Label     string
	Unit      string
	PerFormat float64
	Source    Source
}

var parenthetical = regexp.MustCompile(`^\s*(.*?)\s*\(\s*(\d+(?:[.,]\d+)?)\s*([^)]*?)\s*\)\s*$`)

// ParseFormat extracts the unit and multiplier carried by a purchase format.
func ParseFormat(raw string) Format {
	if m := parenthetical.FindStringSubmatch(raw); m != nil {
		qty, ok := sheet.ParseNumber(m[2])
		if !ok {
			qty = math.NaN()
		}
		inner := Unit
		if strings.TrimSpace(m[3]) != "" {
			inner = Normalize(m[3])
		}
		return Format{Label: m[1], Unit: inner, PerFormat: qty, Source: SourceParenthetical}
	}
	if i := strings.Index(raw, "("); i >= 0 {
		// A parenthetical without a leading number has no usable multiplier.
		return Format{Label: strings.TrimSpace(raw[:i]), Unit: raw, PerFormat: math.NaN(), Source: SourceUnknown}
	}
	label := raw
	if u := Normalize(label); IsCanonical(u) {
		return Format{Label: strings.TrimSpace(label), Unit: u, PerFormat: 1, Source: SourceSimple}
	}
	return Format{Label: strings.TrimSpace(label), Unit: raw, PerFormat: math.NaN(), Source: SourceUnknown}
}

var (
	// ErrNoFactor indicates the format carries no usable multiplier.
	ErrNoFactor = errors.New("format without interpretable factor")
	// ErrIncompatibleUnit indicates the format unit differs from the target unit.
	ErrIncompatibleUnit = errors.New("incompatible unit")
)

// Conversion is the outcome of ConvertToBase.
type Conversion struct {
	Quantity float64
	OK       bool
	Reason   string
	Err      error
}

// ConvertToBase expresses qty purchased formats in the target base unit.
func ConvertToBase(qty float64, f Format, target string) Conversion {
	if math.IsNaN(f.PerFormat) || math.IsInf(f.PerFormat, 0) {
		return Conversion{Reason: ErrNoFactor.Error(), Err: ErrNoFactor}
	}
	if !Same(f.Unit, target) {
		err := fmt.Errorf("%w: format %s → target %s", ErrIncompatibleUnit, f.Unit, Normalize(target))
		return Conversion{Reason: err.Error(), Err: err}
	}
	return Conversion{Quantity: qty * f.PerFormat, OK: true}
}
