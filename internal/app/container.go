package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/gazetteer-backend/internal/adapter/memory"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/meili"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/changeset"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/decision"
	snapshotrepo "github.com/heartmarshall/gazetteer-backend/internal/adapter/postgres/snapshot"
	"github.com/heartmarshall/gazetteer-backend/internal/adapter/redis"
	"github.com/heartmarshall/gazetteer-backend/internal/config"
	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/internal/service/ledger"
	"github.com/heartmarshall/gazetteer-backend/internal/service/projection"
	"github.com/heartmarshall/gazetteer-backend/internal/service/resolver"
	"github.com/heartmarshall/gazetteer-backend/internal/service/snapshot"
	"github.com/heartmarshall/gazetteer-backend/internal/transport/rest"
)

type snapshotCache interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Snapshot, bool, error)
	Set(ctx context.Context, s domain.Snapshot) error
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

// Container holds the wired application graph shared by the server and the
// maintenance CLI.
type Container struct {
	Config *config.Config
	Log    *slog.Logger

	Pool    *pgxpool.Pool
	Cache   snapshotCache
	Indexer *meili.Indexer // nil when search is disabled

	Changesets *changeset.Repo
	Decisions  *decision.Repo
	Snapshots  *snapshotrepo.Repo

	Engine    *projection.Engine
	Scheduler *projection.Scheduler
	Resolver  *resolver.Service
	Ledger    *ledger.Service
	Reader    *snapshot.Service

	health  []rest.Component
	closers []func()
}

// NewContainer connects to every configured backend and wires the services.
// Redis and Meilisearch are optional; PostgreSQL is not.
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	c.Pool = pool
	c.closers = append(c.closers, pool.Close)

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool, log); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	c.Cache = memory.NopCache{}
	if cfg.Redis.URL != "" {
		rc, err := redis.New(ctx, cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.Cache = rc
		c.health = append(c.health, rest.Component{Name: "redis", Pinger: rc, Optional: true})
		c.closers = append(c.closers, func() { _ = rc.Close() })
	}

	var engineOpts []projection.Option
	engineOpts = append(engineOpts, projection.WithCache(c.Cache))
	if cfg.Search.URL != "" {
		c.Indexer = meili.New(log, cfg.Search.URL, cfg.Search.APIKey, cfg.Search.Index)
		engineOpts = append(engineOpts, projection.WithIndexer(c.Indexer))
		c.health = append(c.health, rest.Component{Name: "search", Pinger: c.Indexer, Optional: true})
		c.closers = append(c.closers, c.Indexer.Close)
	}

	c.Changesets = changeset.New(pool)
	c.Decisions = decision.New(pool)
	c.Snapshots = snapshotrepo.New(pool)

	c.Engine = projection.NewEngine(log, c.Changesets, c.Decisions, c.Snapshots,
		postgres.NewTxManager(pool), postgres.NewEntityLocker(pool), cfg.Projection, engineOpts...)
	c.Scheduler = projection.NewScheduler(log, c.Engine, cfg.Projection)
	c.Resolver = resolver.NewService(log, c.Snapshots, c.Changesets, c.Decisions,
		resolver.WeightsFromConfig(cfg.Resolver), cfg.Resolver.CandidateLimit)
	c.Ledger = ledger.NewService(log, c.Changesets, c.Decisions, c.Resolver, c.Scheduler, domain.TrimNormalizer)
	c.Reader = snapshot.NewService(log, c.Snapshots, c.Cache)

	return c, nil
}

// Handlers builds the HTTP handlers over the container's services.
func (c *Container) Handlers(version string) rest.Handlers {
	h := rest.Handlers{
		Health: rest.NewHealthHandler(c.Pool, version, c.health...),
		Ledger: rest.NewLedgerHandler(c.Ledger, c.Log),
		Admin:  rest.NewAdminHandler(c.Engine, c.Scheduler, c.Log),
	}
	if c.Indexer != nil {
		h.Places = rest.NewPlacesHandler(c.Reader, c.Indexer, c.Resolver, c.Log)
	} else {
		h.Places = rest.NewPlacesHandler(c.Reader, nil, c.Resolver, c.Log)
	}
	return h
}

// Close releases backends in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
