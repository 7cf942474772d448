// Package mongo connects to MongoDB for the Mongo record source.
//
// New applies Config to the official v2 driver and pings the primary with
// retries, so a cold Atlas cluster does not fail agent start-up:
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	db, err := mongo.NewWithDatabase(ctx, cfg, "sis")
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(ctx)
//
// Healthcheck returns a ping probe for the agent readiness endpoint.
//
// Settings come from the environment:
//
//	MONGODB_URL                 (required)
//	MONGODB_CONNECT_TIMEOUT     (default: 10s)
//	MONGODB_MAX_POOL_SIZE       (default: 100)
//	MONGODB_MIN_POOL_SIZE       (default: 1)
//	MONGODB_MAX_CONN_IDLE_TIME  (default: 300s)
//	MONGODB_RETRY_WRITES        (default: true)
//	MONGODB_RETRY_READS         (default: true)
//	MONGODB_RETRY_ATTEMPTS      (default: 3)
//	MONGODB_RETRY_INTERVAL      (default: 5s)
package mongo
