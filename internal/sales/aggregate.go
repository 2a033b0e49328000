package sales

import (
	"strings"
	"time"

	"github.com/pantryledger/pantryledger/internal/catalog"
	"github.com/pantryledger/pantryledger/internal/shared"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/textnorm"
)

// Decode reads order lines. The order id and base product columns are optional.
func Decode(t sheet.Table, loc *time.Location) ([]OrderLine, error) {
	idx, err := t.Require(ColDate, ColState, ColProduct, ColQuantity)
	if err != nil {
		return nil, err
	}
	orderID := t.Index(ColOrderID)
	base := t.Index(ColBase)

	out := make([]OrderLine, 0, len(t.Rows))
	for _, r := range t.Rows {
		line := OrderLine{
			OrderID:     strings.TrimSpace(sheet.Cell(r, orderID)),
			State:       strings.TrimSpace(sheet.Cell(r, idx[1])),
			ProductName: strings.TrimSpace(sheet.Cell(r, idx[2])),
			RawQuantity: strings.TrimSpace(sheet.Cell(r, idx[3])),
			BaseProduct: strings.TrimSpace(sheet.Cell(r, base)),
		}
		if line.ProductName == "" && line.RawQuantity == "" {
			continue
		}
		line.Quantity = sheet.Number(line.RawQuantity)
		line.OrderDate, line.HasDate = sheet.ParseTime(sheet.Cell(r, idx[0]), loc)
		out = append(out, line)
	}
	return out, nil
}

// Aggregate sums sold quantities in base units for lines inside w.
// Lines whose product is not in the catalog contribute zero and are listed in
// Result.Unmatched once each, in first-seen order.
func Aggregate(lines []OrderLine, idx *catalog.Index, w shared.Window, opts Options) Result {
	res := Result{ByBase: make(map[string]float64)}
	allowed := make(map[string]struct{}, len(opts.AllowedStates))
	for _, s := range opts.AllowedStates {
		allowed[textnorm.Key(s)] = struct{}{}
	}
	seen := make(map[string]struct{})

	for _, line := range lines {
		if line.Voided() {
			res.Excluded++
			continue
		}
		if opts.EnforceStates {
			if _, ok := allowed[textnorm.Key(line.State)]; !ok {
				continue
			}
		}
		if !line.HasDate || !w.Contains(line.OrderDate) {
			continue
		}
		res.Lines++

		sku, ok := idx.Sku(line.ProductName)
		if !ok {
			key := textnorm.Key(line.ProductName)
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				res.Unmatched = append(res.Unmatched, line.ProductName)
			}
			continue
		}
		baseKey := sku.BaseKey
		if opts.BaseSource != BaseFromCatalog && line.BaseProduct != "" {
			baseKey = textnorm.Key(line.BaseProduct)
		}
		if baseKey == "" {
			continue
		}
		res.ByBase[baseKey] += line.Quantity * sku.SaleFactor
	}
	return res
}
