package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/zonecast/core/logger"
)

// OverlapPolicy decides what happens when a tick fires while the previous pass
// of the same engine is still running.
type OverlapPolicy uint8

const (
	// OverlapSkip drops the tick and logs it.
	OverlapSkip OverlapPolicy = iota
	// OverlapAllow runs both passes concurrently against the same zone set.
	OverlapAllow
)

func (p OverlapPolicy) String() string {
	if p == OverlapAllow {
		return "allow"
	}
	return "skip"
}

// periodicTask runs a pass function on a fixed interval over a zone snapshot.
// It owns its cancellation; passes themselves are never cancelled mid-way.
type periodicTask struct {
	name            string
	interval        time.Duration
	overlap         OverlapPolicy
	shutdownTimeout time.Duration
	logger          *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight atomic.Int32
	ticks    atomic.Int64
	skipped  atomic.Int64
}

func (t *periodicTask) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// start blocks until ctx is cancelled or stop is called.
func (t *periodicTask) start(ctx context.Context, zones []Zone, pass func(context.Context, []Zone)) error {
	if t.interval <= 0 {
		t.logger.DebugContext(ctx, "periodic task disabled",
			slog.String("task", t.name),
			logger.Interval(t.interval))
		return nil
	}

	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.cancel != nil {
			t.cancel()
			t.cancel = nil
		}
		t.mu.Unlock()
	}()

	snapshot := make([]Zone, len(zones))
	copy(snapshot, zones)

	t.logger.InfoContext(ctx, "periodic task started",
		slog.String("task", t.name),
		logger.Interval(t.interval),
		slog.Int("zones", len(snapshot)),
		slog.String("overlap", t.overlap.String()))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("periodic task stopping", slog.String("task", t.name))
			return ctx.Err()
		case <-ticker.C:
			t.fire(ctx, snapshot, pass)
		}
	}
}

func (t *periodicTask) fire(ctx context.Context, zones []Zone, pass func(context.Context, []Zone)) {
	t.ticks.Add(1)

	if t.inFlight.Add(1) > 1 && t.overlap == OverlapSkip {
		t.inFlight.Add(-1)
		t.skipped.Add(1)
		t.logger.WarnContext(ctx, "previous pass still running, tick skipped",
			slog.String("task", t.name))
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.inFlight.Add(-1)
		pass(context.WithoutCancel(ctx), zones)
	}()
}

// stop cancels the ticker and waits for in-flight passes up to the shutdown timeout.
func (t *periodicTask) stop() error {
	t.mu.Lock()
	if t.cancel == nil {
		t.mu.Unlock()
		return ErrNotStarted
	}
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(t.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		t.logger.Info("periodic task stopped cleanly", slog.String("task", t.name))
		return nil
	case <-timer.C:
		t.logger.Warn("periodic task shutdown timeout exceeded, pass abandoned",
			slog.String("task", t.name),
			slog.Duration("timeout", t.shutdownTimeout))
		return fmt.Errorf("%s: shutdown timeout exceeded after %s", t.name, t.shutdownTimeout)
	}
}

// run adapts start/stop to the errgroup pattern.
func (t *periodicTask) run(ctx context.Context, zones []Zone, pass func(context.Context, []Zone)) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- t.start(ctx, zones, pass)
		}()

		select {
		case <-ctx.Done():
			_ = t.stop()
			<-errCh
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}
