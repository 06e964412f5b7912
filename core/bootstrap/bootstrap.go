// Package bootstrap initializes shared infrastructure: logger, the
// session store backend, and the commerce catalog seed.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/intrening/pizzabot/core/config"
	coredatabase "github.com/intrening/pizzabot/core/database"
	"github.com/intrening/pizzabot/core/logger"
	"github.com/intrening/pizzabot/internal/session"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coreconfig.DatabaseConfig) (*sqlx.DB, error)
	Migrate    func(coreconfig.DatabaseConfig) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// DB is nil unless the postgres store backend is selected.
type Result struct {
	Store session.Store
	DB    *sqlx.DB
}

// Close releases resources held by the bootstrap result.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and builds the configured session store,
// connecting to Postgres and applying migrations when needed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}

	switch cfg.Store.Backend {
	case coreconfig.StoreMemory:
		res.Store = session.NewMemoryStore()

	case coreconfig.StoreRedis:
		store, err := session.NewRedisStore(ctx, cfg.Store.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis store init failed: %w", err)
		}
		res.Store = store

	case coreconfig.StorePostgres:
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(cfg.Store.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(cfg.Store.Database); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		res.DB = db
		res.Store = session.NewPostgresStore(db)

	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.Store.Backend)
	}

	logger.Store.Info("session store ready",
		slog.String("event", "store.ready"),
		slog.String("backend", cfg.Store.Backend),
	)

	return res, nil
}
