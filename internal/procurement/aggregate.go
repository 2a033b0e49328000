package procurement

import (
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/catalog"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/textnorm"
	"github.com/pantryledger/pantryledger/internal/units"
)

// Decode reads acquisition lines. The bool result reports whether a date column exists.
func Decode(t sheet.Table, loc *time.Location) ([]Line, bool, error) {
	idx, err := t.Require(ColBase, ColFormat, ColQuantity)
	if err != nil {
		return nil, false, err
	}
	date := t.Index(ColDate)

	out := make([]Line, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := Line{
			BaseProduct: strings.TrimSpace(sheet.Cell(r, idx[0])),
			FormatLabel: strings.TrimSpace(sheet.Cell(r, idx[1])),
			Quantity:    sheet.Number(sheet.Cell(r, idx[2])),
		}
		if line.BaseProduct == "" {
			continue
		}
		if date >= 0 {
			line.Date, line.HasDate = sheet.ParseTime(sheet.Cell(r, date), loc)
		}
		out = append(out, line)
	}
	return out, date >= 0, nil
}

// Aggregate converts purchased formats into base units. In factor mode a line
// without a catalog factor contributes nothing and is only counted. In units
// mode such lines are validated through the unit normalizer and failures are
// reported as inconsistencies.
func Aggregate(lines []Line, hasDate bool, idx *catalog.Index, w shared.Window, opts Options) Result {
	res := Result{ByBase: make(map[string]float64)}
	for _, line := range lines {
		if opts.DateFilter && hasDate && (!line.HasDate || line.Date.Before(w.Start)) {
			continue
		}
		key := textnorm.Key(line.BaseProduct)
		if opts.Mode == ModeUnits {
			qty, err := convert(line, idx)
			if err != nil {
				res.Inconsistencies = append(res.Inconsistencies, Inconsistency{
					Base:   line.BaseProduct,
					Format: line.FormatLabel,
					Reason: err.Error(),
				})
				continue
			}
			res.ByBase[key] += qty
			continue
		}
		factor, ok := idx.AcquisitionFactor(line.BaseProduct, line.FormatLabel)
		if !ok {
			res.Unresolved++
			continue
		}
		res.ByBase[key] += line.Quantity * factor
	}
	return res
}

func convert(line Line, idx *catalog.Index) (float64, error) {
	target := idx.Unit(line.BaseProduct)
	conv := units.ConvertToBase(line.Quantity, units.ParseFormat(line.FormatLabel), target)
	if conv.OK {
		return conv.Quantity, nil
	}
	if factor, ok := idx.AcquisitionFactor(line.BaseProduct, line.FormatLabel); ok && factor > 0 {
		return line.Quantity * factor, nil
	}
	return 0, conv.Err
}
