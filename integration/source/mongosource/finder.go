package mongosource

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Cursor iterates over query results. *mongo.Cursor implements it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Finder opens a cursor over the documents to publish.
type Finder func(ctx context.Context) (Cursor, error)

// Collection returns a Finder running filter against coll.
// A nil filter selects every document.
func Collection(coll *mongo.Collection, filter any, opts ...options.Lister[options.FindOptions]) Finder {
	if filter == nil {
		filter = map[string]any{}
	}
	return func(ctx context.Context) (Cursor, error) {
		if coll == nil {
			return nil, ErrNilCollection
		}
		cur, err := coll.Find(ctx, filter, opts...)
		if err != nil {
			return nil, err
		}
		return cur, nil
	}
}
