// Package redis connects to Redis for the redis zone transport.
//
// Connect parses a redis:// or rediss:// URL, creates a go-redis client and pings
// it until it answers or the retry budget is spent:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck returns a probe for the agent readiness endpoint.
//
// Configuration comes from the environment:
//
//	REDIS_URL              connection URL (default redis://localhost:6379/0)
//	REDIS_RETRY_ATTEMPTS   ping attempts before giving up (default 3)
//	REDIS_RETRY_INTERVAL   base wait between attempts, multiplied by the attempt number (default 5s)
//	REDIS_CONNECT_TIMEOUT  overall budget for Connect (default 30s)
//
// Failures wrap ErrEmptyConnectionURL, ErrInvalidConnectionURL,
// ErrNotReady or ErrHealthcheckFailed so callers can use errors.Is.
package redis
