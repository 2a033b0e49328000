package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/pantryledger/pantryledger/internal/procurement"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/sales"
	"github.com/pantryledger/pantryledger/internal/store"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreWorkbook = "workbook"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120" validate:"gte=0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty" validate:"oneof=pretty text json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	StoreDriver  string `envconfig:"STORE_DRIVER" default:"workbook" validate:"oneof=memory postgres workbook"`
	WorkbookPath string `envconfig:"WORKBOOK_PATH" default:"inventario.xlsx" validate:"required_if=StoreDriver workbook"`
	PGDSN        string `envconfig:"PG_DSN" validate:"required_if=StoreDriver postgres"`
	PGMaxConns   int32  `envconfig:"PG_MAX_CONNS" default:"4" validate:"gte=0"`

	RedisAddr string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	LockTTL   time.Duration `envconfig:"LOCK_TTL" default:"2m"`

	Timezone           string   `envconfig:"RECON_TIMEZONE" default:"America/Santiago" validate:"required,timezone"`
	AllowedStates      []string `envconfig:"RECON_ALLOWED_STATES" default:"Pagado,Preparando,Entregado,Completado"`
	EnforceStates      bool     `envconfig:"RECON_ENFORCE_STATES" default:"true"`
	BaseSource         string   `envconfig:"RECON_BASE_SOURCE" default:"column" validate:"oneof=column catalog"`
	PurchaseMode       string   `envconfig:"RECON_PURCHASE_MODE" default:"factor" validate:"oneof=factor units"`
	PurchaseDateFilter bool     `envconfig:"RECON_PURCHASE_DATE_FILTER" default:"false"`
	PreferReal         bool     `envconfig:"RECON_PREFER_REAL" default:"true"`
	LedgerRetention    int      `envconfig:"LEDGER_RETENTION" default:"5" validate:"gte=1"`
	ReconcileCron      string   `envconfig:"RECON_CRON" default:"0 6 * * *" validate:"required"`

	store.Tables
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("app: invalid config: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Location resolves the reconciliation timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Reconcile converts the environment into the engine configuration.
func (c *Config) Reconcile() (reconcile.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return reconcile.Config{}, err
	}
	states := make([]string, 0, len(c.AllowedStates))
	for _, s := range c.AllowedStates {
		if s = strings.TrimSpace(s); s != "" {
			states = append(states, s)
		}
	}
	rc := reconcile.Config{
		Location:           loc,
		AllowedStates:      states,
		EnforceStates:      c.EnforceStates,
		BaseSource:         sales.BaseSource(c.BaseSource),
		PurchaseMode:       procurement.Mode(c.PurchaseMode),
		PurchaseDateFilter: c.PurchaseDateFilter,
		PreferReal:         c.PreferReal,
		Retention:          c.LedgerRetention,
		Tables:             c.Tables,
	}
	return rc, rc.Validate()
}
