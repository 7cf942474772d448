package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis connection URL is empty, set REDIS_URL")
	ErrInvalidConnectionURL = errors.New("invalid redis connection URL")
	ErrNotReady             = errors.New("redis did not answer ping")
	ErrHealthcheckFailed    = errors.New("redis healthcheck failed")
)
