package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grocerybabu/voice-core/internal/agent/model"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
	"github.com/grocerybabu/voice-core/pkg/postgres"
	"github.com/grocerybabu/voice-core/pkg/redis"
)

// Store is a record store that also archives transcripts.
type Store interface {
	model.RecordStore
	model.TranscriptRepository
}

type catalogSeeder interface {
	SeedCatalog(ctx context.Context, items []model.CatalogItem) error
}

// Options carries what NewStore needs beyond the backend name.
type Options struct {
	Store         model.StoreConfig
	Redis         redis.Config
	Postgres      postgres.Config
	TranscriptTTL time.Duration
}

// NewStore opens the configured backend. A catalog file, when set, is seeded
// into the backend; an empty remote catalog is seeded with the fallback items.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	var seed []model.CatalogItem
	if path := strings.TrimSpace(opts.Store.CatalogFile); path != "" {
		items, err := LoadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		seed = items
	}

	cartTTL, err := time.ParseDuration(opts.Store.CartTTL)
	if err != nil {
		return nil, fmt.Errorf("parse cart ttl %q: %w", opts.Store.CartTTL, err)
	}

	var s Store
	switch strings.ToLower(strings.TrimSpace(opts.Store.Backend)) {
	case "", "memory":
		return NewMemoryStore(seed), nil
	case "redis":
		client, err := opts.Redis.New()
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s = NewRedisStore(client, opts.Redis.KeyPrefix, cartTTL, opts.TranscriptTTL)
	case "postgres":
		pool, err := opts.Postgres.New(ctx)
		if err != nil {
			return nil, err
		}
		if s, err = NewPostgresStore(ctx, pool); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Store.Backend)
	}

	if err := seedCatalog(ctx, s, seed); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func seedCatalog(ctx context.Context, s Store, seed []model.CatalogItem) error {
	seeder, ok := s.(catalogSeeder)
	if !ok {
		return nil
	}
	if seed == nil {
		current, err := s.LoadCatalog(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if len(current) > 0 {
			return nil
		}
		seed = FallbackCatalog()
		logx.Info().Int("items", len(seed)).Msg("store catalog empty, seeding fallback catalog")
	}
	return seeder.SeedCatalog(ctx, seed)
}
