// Package bootstrap opens the backends named in the configuration. It is
// shared by the api, the worker and frontdeskctl.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/frontdesk-api/internal/config"
	"github.com/jwalitptl/frontdesk-api/internal/filestore"
	filememory "github.com/jwalitptl/frontdesk-api/internal/filestore/memory"
	filesupabase "github.com/jwalitptl/frontdesk-api/internal/filestore/supabase"
	"github.com/jwalitptl/frontdesk-api/internal/handler/health"
	"github.com/jwalitptl/frontdesk-api/internal/store"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
	"github.com/jwalitptl/frontdesk-api/internal/store/postgres"
	"github.com/jwalitptl/frontdesk-api/internal/store/supabase"
	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/messaging/redis"
	"github.com/jwalitptl/frontdesk-api/pkg/metrics"
)

// Logger builds the process logger and installs it as the global zerolog
// logger used by the middleware.
func Logger(cfg config.LogConfig) *logger.Logger {
	l := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.JSON,
	})
	log.Logger = *l.Zerolog()
	zerolog.DefaultContextLogger = l.Zerolog()
	return l
}

// Backend is an opened document store with its file store.
type Backend struct {
	Store  store.Store
	Files  filestore.FileStore
	Checks map[string]health.Check

	closers []func() error
}

// Close releases the backend in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenBackend opens the store selected by cfg.Store.Backend.
func OpenBackend(ctx context.Context, cfg *config.Config, m *metrics.Metrics, l *logger.Logger) (*Backend, error) {
	b := &Backend{Checks: map[string]health.Check{}}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		l.Warn("using in-memory store, data is lost on restart")
		b.Store = memory.New()
		b.Files = filememory.New()

	case config.BackendPostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = b.Close()
			return nil, err
		}
		st := postgres.NewStore(db, postgres.DSN(cfg.Database), m, l)
		b.closers = append(b.closers, st.Close)
		b.Store = st
		b.Checks["database"] = db.PingContext
		b.Checks["store"] = health.BreakerCheck(st.Health)

		// Medical files still go to the storage bucket when one is configured.
		if cfg.Supabase.URL != "" && cfg.Supabase.Key != "" {
			client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key)
			if err != nil {
				_ = b.Close()
				return nil, err
			}
			b.Files = filesupabase.New(client, cfg.Supabase.Bucket)
		} else {
			l.Warn("no supabase bucket configured, medical files are kept in memory")
			b.Files = filememory.New()
		}

	case config.BackendSupabase:
		client, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			return nil, err
		}
		st := supabase.NewStore(client, cfg.Store.PollInterval, m, l)
		b.Store = st
		b.Files = filesupabase.New(client, cfg.Supabase.Bucket)
		b.Checks["store"] = health.BreakerCheck(st.Health)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return b, nil
}

// Redis connects when redis.url is set and returns nil otherwise.
func Redis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	return redis.NewClient(ctx, cfg.ToBrokerConfig())
}
