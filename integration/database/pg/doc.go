// Package pg connects to PostgreSQL for the SQL record source.
//
// Connect builds a pgx pool from Config and pings it with retries. Migrate runs
// the goose migrations in Config.MigrationsPath through a database/sql handle
// opened on top of the pool, which is also how the SQL record source reads
// rows:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil && !errors.Is(err, pg.ErrMigrationsDirNotFound) {
//		return err
//	}
//	db := stdlib.OpenDBFromPool(pool)
//
// Healthcheck returns a ping probe for the agent readiness endpoint.
//
// Settings come from the environment: PG_CONN_URL, PG_MAX_OPEN_CONNS,
// PG_MAX_IDLE_CONNS, PG_HEALTHCHECK_PERIOD, PG_MAX_CONN_IDLE_TIME,
// PG_MAX_CONN_LIFETIME, PG_RETRY_ATTEMPTS, PG_RETRY_INTERVAL,
// PG_MIGRATIONS_PATH and PG_MIGRATIONS_TABLE.
package pg
