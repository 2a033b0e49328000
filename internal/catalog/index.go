package catalog

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/textnorm"
	"github.com/pantryledger/pantryledger/internal/units"
)

// Decode reads catalog rows. Category, acquisition unit and sale unit are optional.
func Decode(t sheet.Table) ([]Row, error) {
	idx, err := t.Require(ColProduct, ColBase, ColAcquisitionFormat, ColAcquisitionQuantity, ColSaleFactor)
	if err != nil {
		return nil, err
	}
	category := t.Index(ColCategory)
	acqUnit := t.Index(ColAcquisitionUnit)
	saleUnit := t.Index(ColSaleUnit)

	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := Row{
			ProductName:       strings.TrimSpace(sheet.Cell(r, idx[0])),
			Base:              strings.TrimSpace(sheet.Cell(r, idx[1])),
			AcquisitionFormat: strings.TrimSpace(sheet.Cell(r, idx[2])),
			AcquisitionFactor: sheet.Number(sheet.Cell(r, idx[3])),
			SaleFactor:        sheet.Number(sheet.Cell(r, idx[4])),
			Category:          strings.TrimSpace(sheet.Cell(r, category)),
			AcquisitionUnit:   strings.TrimSpace(sheet.Cell(r, acqUnit)),
			SaleUnit:          strings.TrimSpace(sheet.Cell(r, saleUnit)),
		}
		if row.ProductName == "" && row.Base == "" {
			continue
		}
		if row.SaleFactor < 0 {
			row.SaleFactor = 0
		}
		out = append(out, row)
	}
	return out, nil
}

type formatKey struct {
	base  string
	label string
}

// Index answers catalog lookups by normalized keys.
type Index struct {
	skus    map[string]SkuMapping
	formats map[formatKey]AcquisitionFormat
	bases   map[string]*BaseProduct

	// Duplicates counts product names registered more than once.
	Duplicates int
}

// BuildIndex indexes rows in a single pass. Duplicate product names keep the
// last row and are logged.
func BuildIndex(rows []Row, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{
		skus:    make(map[string]SkuMapping),
		formats: make(map[formatKey]AcquisitionFormat),
		bases:   make(map[string]*BaseProduct),
	}
	for _, r := range rows {
		baseKey := textnorm.Key(r.Base)
		if baseKey != "" {
			bp, ok := idx.bases[baseKey]
			if !ok {
				bp = &BaseProduct{Name: r.Base, Key: baseKey}
				idx.bases[baseKey] = bp
			}
			if bp.Unit == "" {
				switch {
				case r.SaleUnit != "":
					bp.Unit = units.Normalize(r.SaleUnit)
				case r.AcquisitionUnit != "":
					bp.Unit = units.Normalize(r.AcquisitionUnit)
				}
			}
			if bp.Category == "" {
				bp.Category = r.Category
			}
		}

		if nameKey := textnorm.Key(r.ProductName); nameKey != "" {
			if prev, dup := idx.skus[nameKey]; dup {
				idx.Duplicates++
				logger.Warn("catalog duplicate product name",
					slog.String("product", r.ProductName),
					slog.String("previous_base", prev.Base),
					slog.String("base", r.Base))
			}
			idx.skus[nameKey] = SkuMapping{
				ProductName: r.ProductName,
				Base:        r.Base,
				BaseKey:     baseKey,
				SaleFactor:  r.SaleFactor,
				SaleUnit:    r.SaleUnit,
			}
		}

		if baseKey == "" || r.AcquisitionFormat == "" {
			continue
		}
		format := AcquisitionFormat{
			Base:   r.Base,
			Label:  r.AcquisitionFormat,
			Factor: r.AcquisitionFactor,
			Unit:   r.AcquisitionUnit,
		}
		idx.formats[formatKey{baseKey, textnorm.Key(r.AcquisitionFormat)}] = format
		// The short label is shared by every pack size of a format; the first row owns it.
		short := formatKey{baseKey, textnorm.Key(ExtractLabel(r.AcquisitionFormat))}
		if _, taken := idx.formats[short]; !taken {
			idx.formats[short] = format
		}
	}
	return idx
}

// Sku resolves a sellable product name.
func (i *Index) Sku(productName string) (SkuMapping, bool) {
	m, ok := i.skus[textnorm.Key(productName)]
	return m, ok
}

// Format resolves an acquisition format by its full label, falling back to
// the extracted label.
func (i *Index) Format(base, label string) (AcquisitionFormat, bool) {
	baseKey := textnorm.Key(base)
	if f, ok := i.formats[formatKey{baseKey, textnorm.Key(label)}]; ok {
		return f, true
	}
	f, ok := i.formats[formatKey{baseKey, textnorm.Key(ExtractLabel(label))}]
	return f, ok
}

// AcquisitionFactor returns the base units contained in one purchased format.
func (i *Index) AcquisitionFactor(base, label string) (float64, bool) {
	f, ok := i.Format(base, label)
	if !ok {
		return 0, false
	}
	return f.Factor, true
}

// Unit returns the canonical unit of a base product or "" when unknown.
func (i *Index) Unit(base string) string {
	if bp, ok := i.bases[textnorm.Key(base)]; ok {
		return bp.Unit
	}
	return ""
}

// Base resolves a base product by display name or key.
func (i *Index) Base(name string) (BaseProduct, bool) {
	bp, ok := i.bases[textnorm.Key(name)]
	if !ok {
		return BaseProduct{}, false
	}
	return *bp, true
}

// Bases lists every base product ordered by key.
func (i *Index) Bases() []BaseProduct {
	out := make([]BaseProduct, 0, len(i.bases))
	for _, bp := range i.bases {
		out = append(out, *bp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out
}
