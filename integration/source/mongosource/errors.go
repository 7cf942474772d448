package mongosource

import "errors"

var (
	ErrNilFinder     = errors.New("finder is nil")
	ErrNilCollection = errors.New("collection is nil")
)
