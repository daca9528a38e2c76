// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with console or JSON encoding,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level and format parsing for configuration,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// Every component receives a context and extracts the logger from it, so a
// single update cycle carries its run ID and service name on every line.
package logger
