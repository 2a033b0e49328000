package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/pantryledger/pantryledger/internal/app"
	"github.com/pantryledger/pantryledger/internal/ledger"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sheet"
)

// Seeds the configured store (STORE_DRIVER) with a small produce catalog, a
// day of orders and acquisitions, and one verified ledger entry per product.
func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("load timezone: %v", err)
	}
	st, release, err := app.OpenStore(ctx, cfg, slog.Default())
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer release()

	today := time.Now().In(loc)
	yesterday := today.AddDate(0, 0, -1)

	fmt.Println("→ Seeding catalog...")
	if err := st.Replace(ctx, sheet.Table{
		Name:   cfg.Catalog,
		Header: []string{"Producto", "Producto Base", "Formato Adquisicion", "Cantidad Adquisicion", "Categoria", "Cantidad Venta", "Unidad Venta"},
		Rows: [][]string{
			{"Limón 1kg", "Limón", "Malla (2 kg)", "2", "Frutas", "1", "kg"},
			{"Limón 500g", "Limón", "Malla (2 kg)", "2", "Frutas", "0.5", "kg"},
			{"Palta Hass 1kg", "Palta", "Caja (10 kg)", "10", "Frutas", "1", "kg"},
			{"Huevos docena", "Huevo", "Bandeja (30 Unidad)", "30", "Abarrotes", "12", "unidad"},
			{"Leche entera 1L", "Leche", "Caja (12 Botella)", "12", "Lácteos", "1", "lt"},
			{"Tomate 1kg", "Tomate", "Caja (18 kg)", "18", "Verduras", "1", "kg"},
		},
	}); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	fmt.Println("→ Seeding orders...")
	stamp := today.Format("2006-01-02") + " 10:30"
	if err := st.Replace(ctx, sheet.Table{
		Name:   cfg.Orders,
		Header: []string{"ID Pedido", "Fecha", "Estado", "Producto", "Producto Base", "Cantidad"},
		Rows: [][]string{
			{"1001", stamp, "Pagado", "Limón 1kg", "Limón", "3"},
			{"1002", stamp, "Entregado", "Limón 500g", "Limón", "2"},
			{"1003", stamp, "Cancelado", "Palta Hass 1kg", "Palta", "4"},
			{"1004", stamp, "Pagado", "Huevos docena", "Huevo", "E2"},
			{"1005", stamp, "Completado", "Leche entera 1L", "Leche", "6"},
			{"1006", stamp, "Pagado", "Frutilla 500g", "", "1"},
		},
	}); err != nil {
		log.Fatalf("seed orders: %v", err)
	}

	fmt.Println("→ Seeding acquisitions...")
	if err := st.Replace(ctx, sheet.Table{
		Name:   cfg.Acquisitions,
		Header: []string{"Producto Base", "Formato", "Cantidad", "Fecha"},
		Rows: [][]string{
			{"Limón", "Malla", "4", stamp},
			{"Huevo", "Bandeja", "2", stamp},
			{"Tomate", "Caja (18 kg)", "1", stamp},
		},
	}); err != nil {
		log.Fatalf("seed acquisitions: %v", err)
	}

	fmt.Println("→ Seeding ledger...")
	closed := sheet.FormatTime(time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 20, 0, 0, 0, loc))
	if err := st.Replace(ctx, sheet.Table{
		Name:   cfg.Ledger,
		Header: ledger.Header(),
		Rows: [][]string{
			{closed, "Limón", "18", "20", "kg"},
			{closed, "Palta", "12", "12", "kg"},
			{closed, "Huevo", "90", "84", "unidad"},
			{closed, "Leche", "24", "", "lt"},
			{closed, "Tomate", "5", "5", "kg"},
		},
	}); err != nil {
		log.Fatalf("seed ledger: %v", err)
	}

	fmt.Println("→ Preparing report...")
	if err := st.Ensure(ctx, cfg.Report, reconcile.ReportHeader()); err != nil {
		log.Fatalf("seed report: %v", err)
	}

	fmt.Println("✓ Seed complete")
}
