// Package logging is a thin layer over log/slog that gives every
// shadesync component the same structured output. New builds a
// logger from LoggingConfig: JSON or text format, a minimum level,
// and stdout or stderr as the sink. Every entry carries the service
// name and build version so aggregated logs from several services
// stay attributable.
//
// Components derive their own child loggers rather than sharing one:
//
//	logger := logging.New(cfg.Logging, version)
//	pollLog := logger.With("component", "poller")
//	pollLog.Info("gateway poll complete", "devices", n)
//
// The gateway bearer token and broker credentials must never appear
// in log fields.
package logging
