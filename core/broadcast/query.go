package broadcast

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Operator compares a record field against a condition value.
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "ne"
	OpLessThan       Operator = "lt"
	OpGreaterThan    Operator = "gt"
	OpLessOrEqual    Operator = "le"
	OpGreaterOrEqual Operator = "ge"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpLessThan, OpGreaterThan, OpLessOrEqual, OpGreaterOrEqual:
		return true
	}
	return false
}

// MatchMode controls how multiple conditions combine.
type MatchMode string

const (
	MatchAll MatchMode = "and"
	MatchAny MatchMode = "or"
)

// Valid reports whether m is a known match mode.
func (m MatchMode) Valid() bool {
	return m == MatchAll || m == MatchAny
}

// Condition is a single field comparison.
type Condition struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value string   `json:"value"`
}

func (c Condition) matches(r FieldReader) bool {
	actual, ok := r.Field(c.Field)
	if !ok {
		return c.Op == OpNotEquals
	}

	cmp := compareValues(actual, c.Value)
	switch c.Op {
	case OpEquals:
		return cmp == 0
	case OpNotEquals:
		return cmp != 0
	case OpLessThan:
		return cmp < 0
	case OpGreaterThan:
		return cmp > 0
	case OpLessOrEqual:
		return cmp <= 0
	case OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

// compareValues compares numerically when both sides are numbers, lexically otherwise.
func compareValues(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// Query is a filter scoped to one object type and stamped with protocol versions.
// It may be extended while it is being built and becomes immutable once frozen.
type Query struct {
	objectType string
	versions   []string
	conditions []Condition
	mode       MatchMode
	frozen     bool
}

// NewQuery creates a query for objectType carrying the given protocol versions.
func NewQuery(objectType string, versions ...string) *Query {
	return &Query{
		objectType: objectType,
		versions:   slices.Clone(versions),
		mode:       MatchAll,
	}
}

// ObjectType returns the object type the query is scoped to.
func (q *Query) ObjectType() string { return q.objectType }

// Versions returns the protocol versions stamped on the query.
func (q *Query) Versions() []string { return slices.Clone(q.versions) }

// Conditions returns a copy of the query conditions.
func (q *Query) Conditions() []Condition { return slices.Clone(q.conditions) }

// Mode returns how the conditions combine.
func (q *Query) Mode() MatchMode { return q.mode }

// Frozen reports whether the query can still be modified.
func (q *Query) Frozen() bool { return q.frozen }

// HasConditions reports whether the query restricts more than the object type.
func (q *Query) HasConditions() bool { return len(q.conditions) > 0 }

// AddCondition appends a field comparison.
func (q *Query) AddCondition(field string, op Operator, value string) error {
	if q.frozen {
		return ErrQueryFrozen
	}
	if !op.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	q.conditions = append(q.conditions, Condition{Field: field, Op: op, Value: value})
	return nil
}

// Combine sets how conditions combine. The default is MatchAll.
func (q *Query) Combine(mode MatchMode) error {
	if q.frozen {
		return ErrQueryFrozen
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMatchMode, mode)
	}
	q.mode = mode
	return nil
}

// Freeze makes the query immutable.
func (q *Query) Freeze() *Query {
	q.frozen = true
	return q
}

// Matches reports whether the record satisfies the query.
func (q *Query) Matches(r Record) bool {
	if q == nil {
		return true
	}
	if r == nil || r.ObjectType() != q.objectType {
		return false
	}
	if len(q.conditions) == 0 {
		return true
	}

	fr, ok := r.(FieldReader)
	if !ok {
		return false
	}

	if q.mode == MatchAny {
		for _, c := range q.conditions {
			if c.matches(fr) {
				return true
			}
		}
		return false
	}

	for _, c := range q.conditions {
		if !c.matches(fr) {
			return false
		}
	}
	return true
}

func (q *Query) String() string {
	var b strings.Builder
	b.WriteString(q.objectType)
	if len(q.versions) > 0 {
		b.WriteString(" v")
		b.WriteString(strings.Join(q.versions, ","))
	}
	sep := " and "
	if q.mode == MatchAny {
		sep = " or "
	}
	for i, c := range q.conditions {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(sep)
		}
		fmt.Fprintf(&b, "%s %s %q", c.Field, c.Op, c.Value)
	}
	return b.String()
}

type queryJSON struct {
	ObjectType string      `json:"object_type"`
	Versions   []string    `json:"versions,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Mode       MatchMode   `json:"mode,omitempty"`
}

// MarshalJSON encodes the query for transports that carry it over the wire.
func (q *Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(queryJSON{
		ObjectType: q.objectType,
		Versions:   q.versions,
		Conditions: q.conditions,
		Mode:       q.mode,
	})
}

// UnmarshalJSON decodes a query. The decoded query is frozen.
func (q *Query) UnmarshalJSON(data []byte) error {
	var v queryJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.ObjectType == "" {
		return ErrMissingObjectType
	}
	for _, c := range v.Conditions {
		if !c.Op.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidOperator, c.Op)
		}
	}
	if v.Mode == "" {
		v.Mode = MatchAll
	}
	if !v.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMatchMode, v.Mode)
	}
	*q = Query{
		objectType: v.ObjectType,
		versions:   v.Versions,
		conditions: v.Conditions,
		mode:       v.Mode,
		frozen:     true,
	}
	return nil
}
