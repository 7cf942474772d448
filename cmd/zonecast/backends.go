package main

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/zonecast/core/config"
	"github.com/dmitrymomot/zonecast/core/health"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/integration/database/mongo"
	"github.com/dmitrymomot/zonecast/integration/database/pg"
	dbredis "github.com/dmitrymomot/zonecast/integration/database/redis"
	"github.com/dmitrymomot/zonecast/integration/source/mongosource"
	"github.com/dmitrymomot/zonecast/integration/source/xmlsource"
	"github.com/dmitrymomot/zonecast/integration/storage/s3"
)

var _ sourceOpener = (*backends)(nil)

// backends opens external clients on first use and closes them on exit.
// Connection settings come from the environment.
type backends struct {
	log *slog.Logger

	mu      sync.Mutex
	redis   redis.UniversalClient
	pool    *pgxpool.Pool
	db      *sql.DB
	mongo   *mongodriver.Client
	buckets map[string]*s3.Storage
	checks  []health.Check
}

func newBackends(log *slog.Logger) *backends {
	return &backends{log: log, buckets: make(map[string]*s3.Storage)}
}

// Redis returns the shared Redis client. A non-empty url overrides REDIS_URL.
func (b *backends) Redis(ctx context.Context, url string) (redis.UniversalClient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.redis != nil {
		return b.redis, nil
	}

	var cfg dbredis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if url != "" {
		cfg.ConnectionURL = url
	}
	client, err := dbredis.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.redis = client
	b.checks = append(b.checks, dbredis.Healthcheck(client))
	return client, nil
}

// SQL returns a database/sql handle over the shared pgx pool.
// Migrations run once when the migrations directory exists.
func (b *backends) SQL(ctx context.Context) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return b.db, nil
	}

	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx, pool, cfg, b.log); err != nil {
		if !errors.Is(err, pg.ErrMigrationsDirNotFound) {
			pool.Close()
			return nil, err
		}
		b.log.DebugContext(ctx, "no migrations to apply", logger.Key("path", cfg.MigrationsPath))
	}

	b.pool = pool
	b.db = stdlib.OpenDBFromPool(pool)
	b.checks = append(b.checks, pg.Healthcheck(pool))
	return b.db, nil
}

// Mongo returns the shared Mongo client.
func (b *backends) Mongo(ctx context.Context) (*mongodriver.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mongo != nil {
		return b.mongo, nil
	}

	var cfg mongo.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	client, err := mongo.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.mongo = client
	b.checks = append(b.checks, mongo.Healthcheck(client))
	return client, nil
}

// Collection returns a Finder over every document of collection.
func (b *backends) Collection(ctx context.Context, database, collection string) (mongosource.Finder, error) {
	if database == "" || collection == "" {
		return nil, ErrMongoTarget
	}
	client, err := b.Mongo(ctx)
	if err != nil {
		return nil, err
	}
	return mongosource.Collection(client.Database(database).Collection(collection), nil), nil
}

// Fetcher returns the object store for bucket.
func (b *backends) Fetcher(ctx context.Context, bucket string) (xmlsource.Fetcher, error) {
	st, err := b.Bucket(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Bucket returns storage for bucket. An empty name uses S3_BUCKET.
func (b *backends) Bucket(ctx context.Context, bucket string) (*s3.Storage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.buckets[bucket]; ok {
		return st, nil
	}

	var cfg s3.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if bucket != "" {
		cfg.Bucket = bucket
	}
	st, err := s3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b.buckets[bucket] = st
	b.checks = append(b.checks, st.Healthcheck())
	return st, nil
}

// Healthcheck runs the checks of every backend opened so far.
func (b *backends) Healthcheck(ctx context.Context) error {
	b.mu.Lock()
	checks := append([]health.Check(nil), b.checks...)
	b.mu.Unlock()

	for _, check := range checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every opened client.
func (b *backends) Close(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.mongo != nil {
		errs = append(errs, b.mongo.Disconnect(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		b.log.WarnContext(ctx, "closing backends", logger.Error(err))
	}
}
