package broadcast

import (
	"context"
	"sync"
)

// SliceSource serves a fixed list of events as both an EventSource and a ResponseSource.
// The two roles have independent cursors.
type SliceSource struct {
	mu       sync.Mutex
	events   []ChangeEvent
	eventPos *Cursor
	respPos  *Cursor
}

// NewSliceSource returns a source over events in the given mode.
func NewSliceSource(mode IterationMode, events ...ChangeEvent) *SliceSource {
	return &SliceSource{
		events:   events,
		eventPos: NewCursor(mode),
		respPos:  NewCursor(mode),
	}
}

// Records returns a source that reports every record with the same action.
func Records(mode IterationMode, action EventAction, records ...Record) *SliceSource {
	events := make([]ChangeEvent, 0, len(records))
	for _, r := range records {
		events = append(events, ChangeEvent{Record: r, Action: action})
	}
	return NewSliceSource(mode, events...)
}

func (s *SliceSource) BeforeEvent(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventPos.Begin()
	return nil
}

func (s *SliceSource) HasNextEvent(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventPos.HasNext(len(s.events)), nil
}

func (s *SliceSource) NextEvent(context.Context) (*ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.eventPos.HasNext(len(s.events)) {
		return nil, nil
	}
	ev := s.events[s.eventPos.Advance()]
	if ev.Record == nil {
		return nil, nil
	}
	return &ev, nil
}

func (s *SliceSource) AfterEvent(context.Context) error { return nil }

func (s *SliceSource) BeforeResponse(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respPos.Begin()
	return nil
}

func (s *SliceSource) HasNextResponse(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.respPos.HasNext(len(s.events)), nil
}

func (s *SliceSource) NextResponse(context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.respPos.HasNext(len(s.events)) {
		return nil, nil
	}
	return s.events[s.respPos.Advance()].Record, nil
}

func (s *SliceSource) AfterResponse(context.Context) error { return nil }
