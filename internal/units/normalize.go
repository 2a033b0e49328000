// Package units canonicalises unit and purchase-format strings.
package units

import (
	"regexp"

	"github.com/pantryledger/pantryledger/internal/textnorm"
)

// Canonical unit tokens.
const (
	Kilogram  = "kg"
	Gram      = "g"
	Liter     = "lt"
	Unit      = "unidad"
	Box       = "caja"
	Package   = "paquete"
	Tray      = "bandeja"
	Net       = "malla"
	Bottle    = "botella"
	Dozen     = "docena"
	Trio      = "trio"
	Container = "envase"
)

type rule struct {
	pattern *regexp.Regexp
	unit    string
}

// rules are evaluated in order against the folded input; the first match wins.
var rules = []rule{
	{regexp.MustCompile(`\b(kg|kgs|kilos?|kilogramos?|kilograms?)\b`), Kilogram},
	{regexp.MustCompile(`^(g|gr|grs|gramos?|grams?)\.?$`), Gram},
	{regexp.MustCompile(`^(l|lt|lts|litros?|liters?|litres?)\.?$`), Liter},
	{regexp.MustCompile(`\b(botellas?|bottles?)\b`), Bottle},
	{regexp.MustCompile(`\b(bandejas?|trays?)\b`), Tray},
	{regexp.MustCompile(`\b(paquetes?|packages?|packs?)\b`), Package},
	{regexp.MustCompile(`\b(mallas?|nets?)\b`), Net},
	{regexp.MustCompile(`\b(cajas?|box|boxes)\b`), Box},
	{regexp.MustCompile(`\b(unidad|unidades|unid|und|units?)\b|^u\.?$`), Unit},
	{regexp.MustCompile(`\b(trios?)\b`), Trio},
	{regexp.MustCompile(`\b(docenas?|dozens?)\b`), Dozen},
	{regexp.MustCompile(`\b(envases?|containers?)\b`), Container},
}

var canonical = map[string]struct{}{
	Kilogram: {}, Gram: {}, Liter: {}, Unit: {}, Box: {}, Package: {},
	Tray: {}, Net: {}, Bottle: {}, Dozen: {}, Trio: {}, Container: {},
}

// Normalize maps raw onto the canonical vocabulary. Input that matches no rule
// is returned unchanged so that callers can report it.
func Normalize(raw string) string {
	folded := textnorm.Key(raw)
	if folded == "" {
		return raw
	}
	for _, r := range rules {
		if r.pattern.MatchString(folded) {
			return r.unit
		}
	}
	return raw
}

// IsCanonical reports whether u is one of the canonical tokens.
func IsCanonical(u string) bool {
	_, ok := canonical[u]
	return ok
}

// Same reports whether two unit strings denote the same unit after normalisation.
func Same(a, b string) bool {
	return textnorm.Key(Normalize(a)) == textnorm.Key(Normalize(b))
}
