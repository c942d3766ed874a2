package cmd

import (
	"context"

	"github.com/apony/quoteintake/internal/config"
	"github.com/apony/quoteintake/internal/core/store"
)

// openStore opens the configured store and applies pending migrations.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	db, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
