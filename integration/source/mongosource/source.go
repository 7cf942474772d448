package mongosource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/core/record"
	"github.com/dmitrymomot/zonecast/integration/source/batch"
)

// Source publishes the documents returned by a Finder as records.
//
// Nested keys become dotted paths ("name.first"). WithFields maps those paths
// to record field paths; unmapped paths use "/" in place of "." and "_id"
// becomes "@RefId".
type Source struct {
	*batch.Source

	objectType string
	find       Finder
	fields     map[string]string
	cfg        batch.Config
}

var (
	_ broadcast.EventSource    = (*Source)(nil)
	_ broadcast.ResponseSource = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithFields maps dotted document paths to record field paths.
func WithFields(fields map[string]string) Option {
	return func(s *Source) {
		s.fields = fields
	}
}

// WithMode sets the event iteration mode. The default is once-only.
func WithMode(m broadcast.IterationMode) Option {
	return func(s *Source) {
		s.cfg.Mode = m
	}
}

// WithAction sets the action reported with every event. The default is Add.
func WithAction(a broadcast.EventAction) Option {
	return func(s *Source) {
		if a.Valid() {
			s.cfg.Action = a
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.cfg.Logger = l
		}
	}
}

// New returns a source reading documents through find.
func New(objectType string, find Finder, opts ...Option) (*Source, error) {
	if objectType == "" {
		return nil, broadcast.ErrMissingObjectType
	}
	if find == nil {
		return nil, ErrNilFinder
	}
	s := &Source{
		objectType: objectType,
		find:       find,
		cfg: batch.Config{
			Mode:   broadcast.ModeOnce,
			Action: broadcast.ActionAdd,
			Reload: true,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.Logger = s.cfg.Logger.With(logger.Component("mongo_source"), logger.ObjectType(objectType))
	s.Source = batch.New(s.read, s.cfg)
	return s, nil
}

// Factory returns a SourceFactory keeping one event source per zone and
// running the find afresh for every request.
func Factory(objectType string, find Finder, opts ...Option) broadcast.SourceFactory {
	return broadcast.NewPerZone(
		func(context.Context, broadcast.Zone) (broadcast.EventSource, error) {
			return New(objectType, find, opts...)
		},
		func(context.Context, *broadcast.Query, broadcast.Zone) (broadcast.ResponseSource, error) {
			return New(objectType, find, opts...)
		},
	)
}

func (s *Source) fieldPath(path string) string {
	if p, ok := s.fields[path]; ok && p != "" {
		return p
	}
	if path == "_id" {
		return "@RefId"
	}
	return strings.ReplaceAll(path, ".", "/")
}

func (s *Source) read(ctx context.Context) ([]*record.Document, error) {
	cur, err := s.find(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s documents: %w", s.objectType, err)
	}
	defer func() { _ = cur.Close(context.WithoutCancel(ctx)) }()

	var out []*record.Document
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document %d: %w", len(out)+1, err)
		}
		flat := make(map[string]string, len(doc))
		flatten("", doc, flat)

		fields := make(map[string]string, len(flat))
		for path, v := range flat {
			fields[s.fieldPath(path)] = v
		}
		rec, err := record.Build(s.objectType, fields)
		if err != nil {
			return nil, fmt.Errorf("build document %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
