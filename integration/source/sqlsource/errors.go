package sqlsource

import "errors"

var (
	ErrNilDB      = errors.New("database handle is nil")
	ErrEmptyQuery = errors.New("query is empty")
)
