package memory

import "errors"

var (
	ErrNilHub           = errors.New("memory zone hub is nil")
	ErrNotInitialized   = errors.New("memory transport is not initialized")
	ErrEmptyZoneID      = errors.New("zone id is empty")
	ErrNotConnected     = errors.New("zone is not connected")
	ErrNilQuery         = errors.New("query is nil")
	ErrNoResultsHandler = errors.New("no query results handler for object type")
)

// Protocol error categories and codes reported in query results.
const (
	CategoryProvisioning = 4
	CategoryRequest      = 8

	CodeNoProvider         = 1
	CodeUnsupportedVersion = 2
	CodeEncoding           = 3
)
