// Package recovery restores a capture session after hardware loss.
//
// A PersistentSession never retries on its own: a disconnected device stays
// closed until the next transaction. Supervisor is a capture.Callback that
// reacts to device errors and session losses by running empty transactions
// with exponential backoff until one succeeds:
//
//  1. Initial delay: 500 milliseconds
//  2. Exponential increase: 1s, 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Reset to 500ms after a successful transaction
//
// Each delay gets up to 25% random jitter added:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A transaction that reconciles without error counts as success even if
// inputs are incomplete; the session will apply them once they are set.
package recovery
