// Package eventlog records the lifecycle trace of persistent capture
// sessions.
//
// Every state-relevant action of a capture.PersistentSession (transaction
// begin and commit, device open/close/invalidation, session
// configure/discard/invalidation, repeating submit/stop, one-shot captures
// and reported errors) is emitted as an Event to a Logger. This is separate
// from operational logging (slog): the trace is machine-readable and can be
// replayed, filtered and summarized with the persistcam-log tool.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = eventlog.NewSlogAdapter(slog.Default())
//
//	// For production: append to a binary trace file
//	cfg.EventLogger, _ = eventlog.NewFileLogger("/var/log/persistcam/camera.plog")
//
//	// Both
//	cfg.EventLogger = eventlog.NewMultiLogger(console, file)
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded events using integer map keys
// (.plog extension). Reader streams them back with an optional Filter.
package eventlog
