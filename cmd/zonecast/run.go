package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/health"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/integration/zone/memory"
	zoneredis "github.com/dmitrymomot/zonecast/integration/zone/redis"
)

func runAgent(ctx context.Context, opts *rootOptions, role agent.Role, path string) error {
	cfg, err := agent.LoadConfig(path)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.healthAddr != "" {
		cfg.HealthAddr = opts.healthAddr
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	deps := newBackends(log)
	defer deps.Close(context.WithoutCancel(ctx))

	transport, err := newTransport(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(role, cfg, deps, log)
	if err != nil {
		return err
	}

	a, err := agent.New(role, transport, registry,
		agent.WithConfig(cfg),
		agent.WithLogger(log),
	)
	if err != nil {
		return err
	}

	var srv *health.Server
	if cfg.HealthAddr != "" {
		// Backends are opened while the agent initializes, so they are checked per probe.
		h := health.NewHandler(log, a.Healthcheck, deps.Healthcheck)
		if srv, err = health.NewServer(cfg.HealthAddr, h, health.WithLogger(log)); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Run(gctx)
	})
	if srv != nil {
		g.Go(srv.Run(gctx))
	}

	return g.Wait()
}

func newLogger(cfg *agent.Config) (*slog.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	format := logger.FormatText
	if cfg.Log.Format == string(logger.FormatJSON) {
		format = logger.FormatJSON
	}
	return logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithOutput(os.Stderr),
		logger.WithAttr(logger.Agent(cfg.ID)),
	), nil
}

func newTransport(ctx context.Context, cfg *agent.Config, deps *backends, log *slog.Logger) (agent.Transport, error) {
	switch cfg.Transport.Kind {
	case "", "memory":
		return memory.NewTransport(memory.NewHub(memory.WithHubLogger(log))), nil
	case "redis":
		client, err := deps.Redis(ctx, cfg.Transport.URL)
		if err != nil {
			return nil, err
		}
		return zoneredis.NewTransport(client, zoneredis.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTransport, cfg.Transport.Kind)
	}
}
