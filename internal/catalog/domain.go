// Package catalog indexes the product catalog by normalized product and base names.
package catalog

import (
	"strings"

	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Catalog columns. Spanish spellings are accepted as aliases.
var (
	ColProduct             = sheet.Col("Product", "Producto", "Nombre Producto", "Product Name")
	ColBase                = sheet.Col("Base Product", "Producto Base", "Base")
	ColAcquisitionFormat   = sheet.Col("Acquisition Format", "Formato Adquisicion", "Formato de Adquisicion")
	ColAcquisitionQuantity = sheet.Col("Acquisition Quantity", "Cantidad Adquisicion", "Factor Adquisicion")
	ColAcquisitionUnit     = sheet.Col("Acquisition Unit", "Unidad Adquisicion")
	ColCategory            = sheet.Col("Category", "Categoria")
	ColSaleFactor          = sheet.Col("Sale Factor", "Cantidad Venta", "Factor Venta")
	ColSaleUnit            = sheet.Col("Sale Unit", "Unidad Venta")
)

// Row is one decoded catalog line.
type Row struct {
	ProductName       string
	Base              string
	AcquisitionFormat string
	AcquisitionFactor float64
	AcquisitionUnit   string
	Category          string
	SaleFactor        float64
	SaleUnit          string
}

// BaseProduct is the canonical inventory-tracked item.
type BaseProduct struct {
	Name     string
	Key      string
	Unit     string
	Category string
}

// SkuMapping maps a sellable product name onto its base product.
type SkuMapping struct {
	ProductName string
	Base        string
	BaseKey     string
	SaleFactor  float64
	SaleUnit    string
}

// AcquisitionFormat converts purchased packages into base units.
type AcquisitionFormat struct {
	Base   string
	Label  string
	Factor float64
	Unit   string
}

// ExtractLabel takes the text before the first " (" or, failing that, the
// first whitespace-delimited token. "Caja (10 Unidad)" yields "Caja".
func ExtractLabel(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, " ("); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
