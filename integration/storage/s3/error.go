package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// apiCodes maps S3 error codes to package sentinels.
var apiCodes = map[string]error{
	"AccessDenied":       ErrAccessDenied,
	"RequestTimeout":     ErrRequestTimeout,
	"SlowDown":           ErrServiceUnavailable,
	"ServiceUnavailable": ErrServiceUnavailable,
	"InvalidObjectState": ErrInvalidObjectState,
	"NoSuchKey":          ErrObjectNotFound,
	"NotFound":           ErrObjectNotFound,
	"NoSuchBucket":       ErrBucketNotFound,
}

// classifyS3Error wraps an SDK error with the matching sentinel.
// The original error stays in the chain.
func classifyS3Error(err error, op string) error {
	if err == nil {
		return nil
	}

	var sentinel error
	var nsk *types.NoSuchKey
	var nsb *types.NoSuchBucket
	var apiErr smithy.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		sentinel = ErrOperationTimeout
	case errors.Is(err, context.Canceled):
		sentinel = ErrOperationCanceled
	case errors.As(err, &nsk):
		sentinel = ErrObjectNotFound
	case errors.As(err, &nsb):
		sentinel = ErrBucketNotFound
	case errors.As(err, &apiErr):
		sentinel = apiCodes[apiErr.ErrorCode()]
	}

	if sentinel == nil {
		return fmt.Errorf("s3 %s: %w", op, err)
	}
	return fmt.Errorf("s3 %s: %w: %w", op, sentinel, err)
}
