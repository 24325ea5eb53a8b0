package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/broker-crm/internal/store"
)

// openStore creates the configured deal store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return s, nil
	case "postgres", "":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return s, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
