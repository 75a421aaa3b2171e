// Package logger provides structured logging capabilities.
//
// The logger package builds the application's zap logger from the logging
// section of the configuration. Production mode emits JSON with ISO8601
// timestamps, development mode emits colored console output.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("session started", zap.String("user_id", userID))
package logger
