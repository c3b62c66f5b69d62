// Package app opens the shared backends used by the server and the CLI tools.
package app

import (
	"context"
	"fmt"

	"github.com/openenroll/portal/internal/accounts"
	"github.com/openenroll/portal/internal/badges"
	"github.com/openenroll/portal/internal/config"
	"github.com/openenroll/portal/internal/database"
	"github.com/openenroll/portal/internal/enrollment"
	"github.com/openenroll/portal/internal/profiles"
	"github.com/openenroll/portal/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectAttempts = 5

// Stores bundles the repositories behind the services.
type Stores struct {
	Enrollments enrollment.Repository
	Badges      badges.Repository
	Profiles    profiles.Repository
	Accounts    accounts.Repository

	// Persistent is false when everything lives in process memory.
	Persistent bool

	client *mongo.Client
}

// OpenStores connects to MongoDB when configured and falls back to memory
// repositories otherwise.
func OpenStores(ctx context.Context, cfg config.MongoDBConfig) (*Stores, error) {
	if !cfg.Enabled() {
		return MemoryStores(), nil
	}
	client, err := database.ConnectWithRetry(ctx, cfg.URI, cfg.Timeout, connectAttempts, func(attempt int, err error) {
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, connectAttempts, err)
	})
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := client.Database(cfg.Database)
	s := &Stores{Persistent: true, client: client}

	fail := func(what string, err error) (*Stores, error) {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("init %s store: %w", what, err)
	}
	if s.Enrollments, err = enrollment.NewMongoRepo(ctx, db); err != nil {
		return fail("enrollment", err)
	}
	if s.Badges, err = badges.NewMongoRepo(ctx, db); err != nil {
		return fail("badge", err)
	}
	if s.Profiles, err = profiles.NewMongoRepo(ctx, db); err != nil {
		return fail("profile", err)
	}
	if s.Accounts, err = accounts.NewMongoRepository(ctx, db.Collection("accounts")); err != nil {
		return fail("account", err)
	}
	logger.Infof("using MongoDB database %q", cfg.Database)
	return s, nil
}

// MemoryStores returns empty in-process repositories.
func MemoryStores() *Stores {
	return &Stores{
		Enrollments: enrollment.NewMemoryRepo(),
		Badges:      badges.NewMemoryRepo(),
		Profiles:    profiles.NewMemoryRepo(),
		Accounts:    accounts.NewMemoryRepository(),
	}
}

// Ping reports whether the backing database is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, nil)
}

func (s *Stores) Close(ctx context.Context) {
	if s.client != nil {
		_ = s.client.Disconnect(ctx)
	}
}
