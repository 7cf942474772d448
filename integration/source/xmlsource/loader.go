package xmlsource

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
)

// Loader returns raw XML blobs. A blob may hold one record or a wrapper element
// around many; Split extracts the records.
type Loader func(ctx context.Context) ([][]byte, error)

// Strings serves literal documents.
func Strings(docs ...string) Loader {
	return func(context.Context) ([][]byte, error) {
		out := make([][]byte, 0, len(docs))
		for _, d := range docs {
			out = append(out, []byte(d))
		}
		return out, nil
	}
}

// File reads one file per load.
func File(path string) Loader {
	return func(context.Context) ([][]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return [][]byte{data}, nil
	}
}

// Fetcher reads objects from a store. *s3.Storage implements it.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Objects reads the given keys from store.
func Objects(store Fetcher, keys ...string) Loader {
	return func(ctx context.Context) ([][]byte, error) {
		if store == nil {
			return nil, ErrNilFetcher
		}
		out := make([][]byte, 0, len(keys))
		for _, k := range keys {
			data, err := store.Fetch(ctx, k)
			if err != nil {
				return nil, err
			}
			out = append(out, data)
		}
		return out, nil
	}
}

// Prefix reads every object under prefix from store.
func Prefix(store Fetcher, prefix string) Loader {
	return func(ctx context.Context) ([][]byte, error) {
		if store == nil {
			return nil, ErrNilFetcher
		}
		keys, err := store.Keys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		return Objects(store, keys...)(ctx)
	}
}

// Split returns every element named objectType in data, outermost first in
// document order. Nested elements of the same name stay inside their parent.
func Split(data []byte, objectType string) ([][]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		out   [][]byte
		depth int
		start int64 = -1
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedXML, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if start < 0 && t.Name.Local == objectType {
				start = offset
				depth = 0
			}
			if start >= 0 {
				depth++
			}
		case xml.EndElement:
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, bytes.TrimSpace(data[start:dec.InputOffset()]))
				start = -1
			}
		}
	}
	return out, nil
}
