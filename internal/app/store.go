package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pantryledger/pantryledger/internal/platform/db"
	"github.com/pantryledger/pantryledger/internal/store"
	"github.com/pantryledger/pantryledger/internal/store/memory"
	"github.com/pantryledger/pantryledger/internal/store/postgres"
	"github.com/pantryledger/pantryledger/internal/store/workbook"
)

// OpenStore builds the tabular backend selected by STORE_DRIVER. The returned
// func releases it.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Tabular, func(), error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	case StoreWorkbook:
		st, err := workbook.Open(cfg.WorkbookPath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("close workbook", slog.Any("error", err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}
