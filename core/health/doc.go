// Package health serves liveness and readiness probes.
//
// NewHandler mounts two endpoints:
//
//   - GET /livez answers 200 "ALIVE" while the process runs.
//   - GET /readyz runs each Check and answers 200 "READY", or 503 "NOT READY"
//     on the first failure.
//
// Checks share the func(context.Context) error shape used by the agent and the
// database packages:
//
//	h := health.NewHandler(log,
//		a.Healthcheck,
//		redis.Healthcheck(client),
//	)
//	srv, err := health.NewServer(":8081", h, health.WithLogger(log))
//	g.Go(srv.Run(ctx))
package health
