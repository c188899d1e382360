package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/samplegeo/atlas-cli/internal/locstore"
)

// initStore opens the location store named by the config. Both drivers are
// pure Go, so the choice is a runtime concern rather than a build one.
func initStore(ctx context.Context) (locstore.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		s, err := locstore.NewPostgres(ctx, cfg.Store.DatabaseURL, &locstore.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "atlas.db"
		}
		s, err := locstore.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func queryTimeout() time.Duration {
	return time.Duration(cfg.Store.QueryTimeoutSecs) * time.Second
}
