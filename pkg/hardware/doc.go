// Package hardware defines the contracts the persistent capture session
// consumes from the platform camera stack.
//
// A Provider opens exclusive Device handles. A Device creates configured
// capture Sessions bound to a fixed OutputSet. A Session accepts one
// repeating request at a time (Submit/Stop) and issues one-shot captures.
//
// # Invalidation
//
// OpenDevice and CreateSession take an InvalidationFunc. Implementations
// call it from their own notification goroutine when the handle is lost
// (device disconnected, session closed by the system). The callback may
// fire at any time after the open/create call started, including before
// it returned.
//
// # Cascade
//
// Closing a Device closes the Session configured on it. Callers must not
// close the session a second time.
package hardware
