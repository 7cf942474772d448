package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/zonecast/core/agent"
	"github.com/dmitrymomot/zonecast/core/broadcast"
	"github.com/dmitrymomot/zonecast/core/logger"
	"github.com/dmitrymomot/zonecast/core/record"
	"github.com/dmitrymomot/zonecast/integration/source/mongosource"
	"github.com/dmitrymomot/zonecast/integration/source/sqlsource"
	"github.com/dmitrymomot/zonecast/integration/source/xmlsource"
)

// sourceOpener opens the record source described by a configuration entry.
type sourceOpener interface {
	SQL(ctx context.Context) (*sql.DB, error)
	Collection(ctx context.Context, database, collection string) (mongosource.Finder, error)
	Fetcher(ctx context.Context, bucket string) (xmlsource.Fetcher, error)
}

// buildRegistry registers an engine factory for every configured object type
// the role runs.
func buildRegistry(role agent.Role, cfg *agent.Config, opener sourceOpener, log *slog.Logger) (*agent.Registry, error) {
	reg := agent.NewRegistry()

	names := cfg.Publishers
	if role == agent.RoleSubscriber {
		names = cfg.Subscribers
	}
	for name, obj := range cfg.Objects {
		if obj.Enabled && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, objectType := range names {
		var err error
		if role == agent.RoleSubscriber {
			err = reg.RegisterSubscriber(objectType, subscriberFactory(log))
		} else {
			err = reg.RegisterPublisher(objectType, publisherFactory(opener))
		}
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func publisherFactory(opener sourceOpener) agent.PublisherFactory {
	return func(ctx context.Context, objectType string, s agent.Settings) (*broadcast.Publisher, error) {
		factory, err := newSourceFactory(ctx, objectType, s.Object.Source, opener, s.Logger)
		if err != nil {
			return nil, &broadcast.ConfigurationError{Setting: "objects." + objectType + ".source", Err: err}
		}
		return broadcast.NewPublisher(objectType, factory,
			broadcast.WithEventFrequency(s.Object.EventFrequency),
			broadcast.WithPublisherVersions(s.Identity.Version),
			broadcast.WithPublisherLogger(s.Logger),
			broadcast.WithPublisherMeter(s.Meter),
		)
	}
}

func newSourceFactory(ctx context.Context, objectType string, src agent.SourceConfig, opener sourceOpener, log *slog.Logger) (broadcast.SourceFactory, error) {
	mode, err := broadcast.ParseIterationMode(src.Mode)
	if err != nil {
		return nil, err
	}
	action := broadcast.ActionAdd
	if src.Action != "" {
		if action, err = broadcast.ParseEventAction(src.Action); err != nil {
			return nil, err
		}
	}

	switch src.Kind {
	case "", "xml":
		return xmlsource.Factory(objectType, xmlsource.Strings(src.Documents...),
			xmlsource.WithMode(mode), xmlsource.WithAction(action), xmlsource.WithLogger(log)), nil

	case "file":
		return xmlsource.Factory(objectType, xmlsource.File(src.Path),
			xmlsource.WithMode(mode), xmlsource.WithAction(action), xmlsource.WithLogger(log)), nil

	case "s3":
		store, err := opener.Fetcher(ctx, src.Bucket)
		if err != nil {
			return nil, err
		}
		load := xmlsource.Prefix(store, src.Path)
		if src.Key != "" {
			load = xmlsource.Objects(store, src.Key)
		}
		return xmlsource.Factory(objectType, load,
			xmlsource.WithMode(mode), xmlsource.WithAction(action), xmlsource.WithLogger(log)), nil

	case "sql":
		db, err := opener.SQL(ctx)
		if err != nil {
			return nil, err
		}
		return sqlsource.Factory(objectType, db, src.Query,
			sqlsource.WithColumns(src.Columns),
			sqlsource.WithMode(mode), sqlsource.WithAction(action), sqlsource.WithLogger(log)), nil

	case "mongo":
		find, err := opener.Collection(ctx, src.Database, src.Collection)
		if err != nil {
			return nil, err
		}
		return mongosource.Factory(objectType, find,
			mongosource.WithFields(src.Columns),
			mongosource.WithMode(mode), mongosource.WithAction(action), mongosource.WithLogger(log)), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownSourceKind, src.Kind)
}

func subscriberFactory(log *slog.Logger) agent.SubscriberFactory {
	return func(_ context.Context, objectType string, s agent.Settings) (*broadcast.Subscriber, error) {
		l := s.Logger
		if l == nil {
			l = log
		}
		return broadcast.NewSubscriber(objectType, record.Factory(objectType),
			broadcast.WithProtocolVersion(s.Identity.Version),
			broadcast.WithRequestFrequency(s.Object.RequestFrequency),
			broadcast.WithRequestGate(broadcast.MaxRequests(s.Object.MaxRequests)),
			broadcast.WithEventHandler(logEvent(l)),
			broadcast.WithResponseHandler(logResponse(l)),
			broadcast.WithSubscriberLogger(s.Logger),
			broadcast.WithSubscriberMeter(s.Meter),
		)
	}
}

func logEvent(log *slog.Logger) broadcast.EventHandlerFunc {
	return func(ctx context.Context, ev *broadcast.ChangeEvent, z broadcast.Zone, info broadcast.MessageInfo) error {
		log.InfoContext(ctx, "event received",
			logger.Zone(z.ID()),
			logger.ObjectType(ev.ObjectType()),
			logger.Action(ev.Action.String()),
			logger.MessageID(info.MessageID),
			logger.Key("record", recordText(ev.Record)),
		)
		return nil
	}
}

func logResponse(log *slog.Logger) broadcast.ResponseHandlerFunc {
	return func(ctx context.Context, r broadcast.Record, z broadcast.Zone, info broadcast.MessageInfo) error {
		log.InfoContext(ctx, "response received",
			logger.Zone(z.ID()),
			logger.ObjectType(r.ObjectType()),
			logger.MessageID(info.MessageID),
			logger.Key("record", recordText(r)),
		)
		return nil
	}
}

func recordText(r broadcast.Record) string {
	text, err := r.MarshalText()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(text)
}
