package perf

import (
	"fmt"
	"time"

	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
	"github.com/pantryledger/pantryledger/internal/store/memory"
)

var benchDay = time.Date(2024, 3, 5, 6, 0, 0, 0, time.UTC)

// largeStore builds a store with products base products, two SKUs each, ten
// orders per base, one acquisition per base and a full ledger history.
func largeStore(products int) *memory.Store {
	catalog := sheet.Table{
		Name:   "Catalogo",
		Header: []string{"Product", "Base Product", "Acquisition Format", "Acquisition Quantity", "Category", "Sale Factor", "Sale Unit"},
	}
	orders := sheet.Table{
		Name:   "Pedidos",
		Header: []string{"Order ID", "Order Date", "State", "Product", "Base Product", "Quantity"},
	}
	acquisitions := sheet.Table{
		Name:   "Adquisiciones",
		Header: []string{"Base Product", "Format", "Quantity"},
	}
	history := sheet.Table{Name: "Historico", Header: ledger.Header()}

	for i := 0; i < products; i++ {
		base := fmt.Sprintf("Producto %04d", i)
		catalog.Rows = append(catalog.Rows,
			[]string{base + " 1kg", base, "Caja (10 kg)", "10", "General", "1", "kg"},
			[]string{base + " 500g", base, "Caja (10 kg)", "10", "General", "0.5", "kg"},
		)
		for j := 0; j < 10; j++ {
			sku := base + " 1kg"
			if j%2 == 1 {
				sku = base + " 500g"
			}
			orders.Rows = append(orders.Rows, []string{
				fmt.Sprintf("%d-%d", i, j), "2024-03-05 09:00", "Pagado", sku, base, "1",
			})
		}
		acquisitions.Rows = append(acquisitions.Rows, []string{base, "Caja", "2"})
		for d := ledger.DefaultRetention; d > 0; d-- {
			ts := benchDay.AddDate(0, 0, -d).Add(14 * time.Hour)
			history.Rows = append(history.Rows, []string{sheet.FormatTime(ts), base, "40", "40", "kg"})
		}
	}
	return memory.NewWithTables(catalog, orders, acquisitions, history,
		sheet.Table{Name: "Reporte", Header: reconcile.ReportHeader()})
}
