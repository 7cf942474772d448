package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/core/record"
	"github.com/dmitrymomot/zonecast/integration/source/batch"
)

// Querier runs a query. *sql.DB, *sql.Conn and *sql.Tx implement it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Source turns the rows of a query into records. Each column becomes a field;
// the column map renames columns to field paths such as "@RefId" or
// "PersonInfo/Name/FamilyName". NULL values are left out.
//
// In once-only mode the query runs once. In repeating mode it runs again at the
// start of every pass.
type Source struct {
	*batch.Source

	objectType string
	db         Querier
	query      string
	args       []any
	columns    map[string]string
	cfg        batch.Config
}

var (
	_ broadcast.EventSource    = (*Source)(nil)
	_ broadcast.ResponseSource = (*Source)(nil)
)

// Option configures a Source.
type Option func(*Source)

// WithColumns maps column names to field paths. Unmapped columns keep their name.
func WithColumns(columns map[string]string) Option {
	return func(s *Source) {
		s.columns = columns
	}
}

// WithArgs sets the query arguments.
func WithArgs(args ...any) Option {
	return func(s *Source) {
		s.args = args
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

// New returns a source running query against db.
func New(objectType string, db Querier, query string, opts ...Option) (*Source, error) {
	if objectType == "" {
		return nil, broadcast.ErrMissingObjectType
	}
	if db == nil {
		return nil, ErrNilDB
	}
	if query == "" {
		return nil, ErrEmptyQuery
	}
	s := &Source{
		objectType: objectType,
		db:         db,
		query:      query,
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
	s.cfg.Logger = s.cfg.Logger.With(logger.Component("sql_source"), logger.ObjectType(objectType))
	s.Source = batch.New(s.fetch, s.cfg)
	return s, nil
}

// Factory returns a SourceFactory keeping one event source per zone and
// running the query afresh for every request.
func Factory(objectType string, db Querier, query string, opts ...Option) broadcast.SourceFactory {
	return broadcast.NewPerZone(
		func(context.Context, broadcast.Zone) (broadcast.EventSource, error) {
			return New(objectType, db, query, opts...)
		},
		func(context.Context, *broadcast.Query, broadcast.Zone) (broadcast.ResponseSource, error) {
			return New(objectType, db, query, opts...)
		},
	)
}

func (s *Source) fetch(ctx context.Context) ([]*record.Document, error) {
	rows, err := s.db.QueryContext(ctx, s.query, s.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s rows: %w", s.objectType, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	paths := make([]string, len(cols))
	for i, c := range cols {
		paths[i] = c
		if p, ok := s.columns[c]; ok && p != "" {
			paths[i] = p
		}
	}

	var out []*record.Document
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(out)+1, err)
		}
		fields := make(map[string]string, len(cols))
		for i, v := range values {
			if v.Valid {
				fields[paths[i]] = v.String
			}
		}
		doc, err := record.Build(s.objectType, fields)
		if err != nil {
			return nil, fmt.Errorf("build row %d: %w", len(out)+1, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
