// Package logger builds context-aware slog loggers.
//
// New creates a *slog.Logger configured by Option functions: output format
// (text or json), minimum level, static attributes and ContextExtractor
// callbacks that pull request-scoped values (request id, environment) out of
// the context on every record.
//
// Attribute helpers such as Feature, Reason, UserID and Error keep attribute
// names consistent across packages. Helpers return an empty slog.Attr for
// empty input so they can be passed unconditionally:
//
//	log.WarnContext(ctx, "override ignored", logger.Feature(name), logger.Error(err))
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Development, "flagd"),
//		logger.WithContextExtractors(
//			requestid.LoggerExtractor(),
//			environment.LoggerExtractor(),
//		),
//	)
//	logger.SetAsDefault(log)
package logger
