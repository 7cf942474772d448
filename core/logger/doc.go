// Package logger provides structured logging helpers built on log/slog.
//
// New builds a process logger from a small set of options, and the attribute
// helpers give every component the same keys for the same things: zones, object
// types, counts of succeeded and failed items, and errors.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/zonecast/core/logger"
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithAttr(logger.Agent("publisher-1")),
//	)
//
//	log.Info("broadcast pass finished",
//		logger.ObjectType("StudentPersonal"),
//		logger.Zone("district"),
//		logger.Succeeded(12),
//		logger.Failed(0),
//	)
//
// # Nil Safety
//
// Helpers that take optional values return an empty slog.Attr when the value is
// missing. slog drops empty attributes, so the following is safe when err is nil:
//
//	log.Warn("zone disconnect", logger.Zone(id), logger.Error(err))
//
// # Levels
//
// ParseLevel maps configuration strings ("debug", "info", "warn", "error") to
// slog levels. An empty string means info.
//
// Discard returns a logger that writes nowhere. Components use it as their
// default so that logging is opt-in.
package logger
