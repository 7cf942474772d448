package xmlsource

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/core/record"
	"github.com/dmitrymomot/zonecast/integration/source/batch"
)

// Source serves the records found by a Loader as both an event source and a
// response source. Documents are loaded on first use and kept. In repeating
// mode a failed load is retried on the next pass.
type Source struct {
	*batch.Source

	objectType string
	load       Loader
	logger     *slog.Logger
}

var (
	_ broadcast.EventSource    = (*Source)(nil)
	_ broadcast.ResponseSource = (*Source)(nil)
)

// Option configures a Source.
type Option func(*options)

type options struct {
	mode   broadcast.IterationMode
	action broadcast.EventAction
	logger *slog.Logger
}

// WithMode sets the event iteration mode. The default is once-only.
func WithMode(m broadcast.IterationMode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithAction sets the action reported with every event. The default is Add.
func WithAction(a broadcast.EventAction) Option {
	return func(o *options) {
		if a.Valid() {
			o.action = a
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		mode:   broadcast.ModeOnce,
		action: broadcast.ActionAdd,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New returns a source of objectType records.
func New(objectType string, load Loader, opts ...Option) (*Source, error) {
	if objectType == "" {
		return nil, broadcast.ErrMissingObjectType
	}
	if load == nil {
		return nil, ErrNilLoader
	}
	o := buildOptions(opts)
	s := &Source{
		objectType: objectType,
		load:       load,
		logger:     o.logger.With(logger.Component("xml_source"), logger.ObjectType(objectType)),
	}
	s.Source = batch.New(s.read, batch.Config{
		Mode:   o.mode,
		Action: o.action,
		Logger: s.logger,
	})
	return s, nil
}

// Factory returns a SourceFactory keeping one event source per zone and
// opening a fresh response source per request.
func Factory(objectType string, load Loader, opts ...Option) broadcast.SourceFactory {
	return broadcast.NewPerZone(
		func(context.Context, broadcast.Zone) (broadcast.EventSource, error) {
			return New(objectType, load, opts...)
		},
		func(context.Context, *broadcast.Query, broadcast.Zone) (broadcast.ResponseSource, error) {
			return New(objectType, load, opts...)
		},
	)
}

func (s *Source) read(ctx context.Context) ([]*record.Document, error) {
	blobs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []*record.Document
	for _, blob := range blobs {
		docs, err := Split(blob, s.objectType)
		if err != nil {
			return nil, err
		}
		for _, raw := range docs {
			d := record.New(s.objectType)
			if err := d.UnmarshalText(raw); err != nil {
				s.logger.WarnContext(ctx, "skipping unparsable document", logger.Error(err))
				continue
			}
			out = append(out, d)
		}
	}
	return out, nil
}
