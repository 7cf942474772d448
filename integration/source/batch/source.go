package batch

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/core/record"
)

// Fetch loads the full list of records.
type Fetch func(ctx context.Context) ([]*record.Document, error)

// Config controls how a Source iterates.
type Config struct {
	// Mode is the event iteration mode. Responses are always once-only.
	Mode broadcast.IterationMode
	// Action is reported with every event. Zero means Add.
	Action broadcast.EventAction
	// Reload fetches again at the start of every repeating pass.
	Reload bool
	Logger *slog.Logger
}

// Source iterates over the records returned by a Fetch.
type Source struct {
	fetch  Fetch
	mode   broadcast.IterationMode
	action broadcast.EventAction
	reload bool
	logger *slog.Logger

	mu        sync.Mutex
	loaded    bool
	loadErr   error
	records   []*record.Document
	events    *broadcast.Cursor
	responses *broadcast.Cursor
}

var (
	_ broadcast.EventSource    = (*Source)(nil)
	_ broadcast.ResponseSource = (*Source)(nil)
)

// New returns a source backed by fetch.
func New(fetch Fetch, cfg Config) *Source {
	s := &Source{
		fetch:     fetch,
		mode:      cfg.Mode,
		action:    cfg.Action,
		reload:    cfg.Reload,
		logger:    cfg.Logger,
		events:    broadcast.NewCursor(cfg.Mode),
		responses: broadcast.NewCursor(broadcast.ModeOnce),
	}
	if !s.action.Valid() {
		s.action = broadcast.ActionAdd
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// ensureLoaded fetches unless the current records are still valid.
// A failed fetch is sticky in once-only mode and retried otherwise.
// The caller holds s.mu.
func (s *Source) ensureLoaded(ctx context.Context) error {
	if s.loaded && (s.loadErr == nil || s.mode != broadcast.ModeRepeat) {
		return s.loadErr
	}
	s.loaded = true
	s.records, s.loadErr = s.fetch(ctx)
	if s.loadErr != nil {
		s.records = nil
		s.logger.ErrorContext(ctx, "load failed", logger.Error(s.loadErr))
		return s.loadErr
	}
	// The record count may change between loads.
	s.events = broadcast.NewCursor(s.mode)
	s.logger.DebugContext(ctx, "records loaded", logger.Count("records", len(s.records)))
	return nil
}

// Len returns the number of records from the last successful fetch.
func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Source) BeforeEvent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.events.Begin()
	return nil
}

func (s *Source) HasNextEvent(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return false, s.loadErr
	}
	has := s.events.HasNext(len(s.records))
	if !has && s.reload && s.mode == broadcast.ModeRepeat {
		s.loaded = false
	}
	return has, nil
}

func (s *Source) NextEvent(context.Context) (*broadcast.ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events.Pos() >= len(s.records) {
		return nil, nil
	}
	return broadcast.NewChangeEvent(s.records[s.events.Advance()], s.action)
}

func (s *Source) AfterEvent(context.Context) error { return nil }

func (s *Source) BeforeResponse(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.responses.Begin()
	return nil
}

func (s *Source) HasNextResponse(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return false, s.loadErr
	}
	return s.responses.HasNext(len(s.records)), nil
}

func (s *Source) NextResponse(context.Context) (broadcast.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.responses.Pos() >= len(s.records) {
		return nil, nil
	}
	return s.records[s.responses.Advance()], nil
}

func (s *Source) AfterResponse(context.Context) error { return nil }
