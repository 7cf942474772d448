package record

import "errors"

var (
	// ErrEmptyDocument is returned when parsing input without a root element.
	ErrEmptyDocument = errors.New("document has no root element")

	// ErrObjectTypeMismatch is returned when a document's root element differs from the expected type.
	ErrObjectTypeMismatch = errors.New("document root does not match object type")

	// ErrInvalidPath is returned for empty or malformed field paths.
	ErrInvalidPath = errors.New("invalid field path")
)
