// Package db opens the account store selected by configuration.
package db

import (
	"context"
	"fmt"

	"github.com/learningreport/account-service/internal/core/ports"
	"github.com/learningreport/account-service/internal/infrastructure/db/memory"
	mongostore "github.com/learningreport/account-service/internal/infrastructure/db/mongo"
	"github.com/learningreport/account-service/internal/infrastructure/db/postgres"
	"github.com/learningreport/account-service/internal/pkg/config"
)

const appName = "account-service"

// Store bundles the account repository with its connection lifecycle.
type Store struct {
	Driver   string
	Accounts ports.AccountRepository

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

// Close releases the underlying connections.
func (s *Store) Close(ctx context.Context) error { return s.close(ctx) }

// Open connects to the store named by cfg.URL and prepares its schema
// (unique email index or table) before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	driver, err := cfg.Driver()
	if err != nil {
		return nil, err
	}

	switch driver {
	case config.DriverMongo:
		client, database, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.URL,
			Database: cfg.MongoDB,
			AppName:  appName,
		})
		if err != nil {
			return nil, err
		}
		repo := mongostore.NewAccountRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Store{
			Driver:   driver,
			Accounts: repo,
			ping:     func(ctx context.Context) error { return mongostore.Ping(ctx, database) },
			close:    client.Disconnect,
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Driver:   driver,
			Accounts: postgres.NewAccountRepository(pool),
			ping:     pool.Ping,
			close: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverMemory:
		return &Store{
			Driver:   driver,
			Accounts: memory.NewAccountRepository(),
			ping:     func(context.Context) error { return nil },
			close:    func(context.Context) error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unsupported store driver %q", driver)
}
