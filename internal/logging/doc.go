// Package logging provides leveled, printf-style logging for the preparser
// service on top of zerolog.
//
// Levels:
//   - DEBUG: verbose request and worker tracing
//   - INFO: lifecycle and operational messages
//   - WARN: degraded but recoverable conditions
//   - ERROR: failed operations
//   - FATAL: unrecoverable errors that terminate the process
//
// The level comes from LOG_LEVEL, and DEBUG=true forces debug output.
// LOG_FORMAT=json switches from console lines to JSON records.
package logging
