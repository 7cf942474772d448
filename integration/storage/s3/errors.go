package s3

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid s3 configuration")
	ErrInvalidPath        = errors.New("invalid object key")
	ErrObjectNotFound     = errors.New("object not found")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCanceled  = errors.New("operation canceled")
	ErrRequestTimeout     = errors.New("request timeout")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInvalidObjectState = errors.New("invalid object state")
	ErrPaginatorNil       = errors.New("paginator is nil")
	ErrObjectTooLarge     = errors.New("object exceeds size limit")
)
