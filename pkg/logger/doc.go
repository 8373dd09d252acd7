// Package logger builds *slog.Logger instances from functional options.
//
// New picks a text or JSON handler and wraps it with LogHandlerDecorator,
// which appends attributes pulled from the record's context (for example the
// chi request id via RequestIDExtractor). WithFile tees output into a
// size-rotated file.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "todos"),
//	    logger.WithContextExtractors(logger.RequestIDExtractor()),
//	)
//	logger.SetAsDefault(log)
//
// Attribute helpers in attr.go keep key names consistent across packages.
// Error and Errors return an empty Attr for nil errors, so they can be passed
// without a nil check.
package logger
