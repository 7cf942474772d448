package config

import "errors"

var (
	ErrNilConfig    = errors.New("config target is nil")
	ErrParseEnv     = errors.New("failed to parse environment")
	ErrFileNotFound = errors.New("config file not found")
	ErrParseFile    = errors.New("failed to parse config file")
)
