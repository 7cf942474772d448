package mongosource

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// flatten turns a document into dotted paths and string values.
// Arrays of scalars are joined with commas; arrays of documents are skipped.
func flatten(prefix string, doc bson.M, out map[string]string) {
	for key, v := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flattenValue(path, v, out)
	}
}

func flattenValue(path string, v any, out map[string]string) {
	switch val := v.(type) {
	case nil:
	case bson.M:
		flatten(path, val, out)
	case map[string]any:
		flatten(path, bson.M(val), out)
	case bson.D:
		m := make(bson.M, len(val))
		for _, e := range val {
			m[e.Key] = e.Value
		}
		flatten(path, m, out)
	case bson.A:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := scalar(item)
			if !ok {
				return
			}
			parts = append(parts, s)
		}
		out[path] = strings.Join(parts, ",")
	default:
		if s, ok := scalar(val); ok {
			out[path] = s
		}
	}
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bson.ObjectID:
		return val.Hex(), true
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339), true
	case time.Time:
		return val.UTC().Format(time.RFC3339), true
	case bool, int32, int64, int, float64, bson.Decimal128:
		return fmt.Sprint(val), true
	}
	return "", false
}
