package main

import "errors"

var (
	ErrTooManyArgs       = errors.New("expected at most one config path")
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrUnknownSourceKind = errors.New("unknown source kind")
	ErrMongoTarget       = errors.New("mongo source needs database and collection")
)
