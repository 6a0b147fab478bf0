package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/accounts/internal/config"
	"github.com/geocoder89/accounts/internal/repo/memory"
	mongostore "github.com/geocoder89/accounts/internal/repo/mongo"
	"github.com/geocoder89/accounts/internal/repo/postgres"
	"github.com/geocoder89/accounts/internal/resource"
)

const usersCollection = "users"

// OpenStore connects the backend selected by cfg.StoreDriver and returns the users store
// together with the function releasing its connections.
func OpenStore(ctx context.Context, cfg config.Config, schema resource.Schema, log *slog.Logger) (resource.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.DBMigrate {
			if err := Migrate(cfg.DBURL, log); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("store_connected", "driver", cfg.StoreDriver)
		return postgres.NewStore(pool, usersCollection, schema), pool.Close, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }

		store := mongostore.NewStore(client.Database(cfg.MongoDatabase).Collection(usersCollection), schema)
		if err := store.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("store_connected", "driver", cfg.StoreDriver, "database", cfg.MongoDatabase)
		return store, closeFn, nil

	case config.DriverMemory:
		log.Warn("store_in_memory", "hint", "data is lost on restart")
		return memory.NewStore(schema), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
