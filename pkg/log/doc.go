// Package log provides the logging abstraction used by pisces components.
//
// Components depend on the Logger interface only. A zerolog-backed adapter
// is provided for applications, and a no-op logger is the default for
// embedded clients and tests.
//
// # Usage
//
//	level, err := log.ParseLevel("debug")
//	if err != nil {
//	    return err
//	}
//	logger := log.NewZerologAdapterWithLevel(level)
//	logger.Info("connected", log.String("host", host), log.Int("port", port))
//
// # Custom Loggers
//
// Implement the Logger interface to route session logs into an existing
// logging pipeline:
//
//	type MyLogger struct { ... }
//
//	func (l *MyLogger) Debug(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Info(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Warn(msg string, fields ...log.Field) { ... }
//	func (l *MyLogger) Error(msg string, fields ...log.Field) { ... }
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
