// Package sim provides an in-memory camera stack implementing the
// hardware contracts.
//
// The simulator counts every hardware call (Counts) and lets tests inject
// faults: device disconnects, sessions closed by the system, failing
// opens, configures and captures, and captures held in flight.
//
// Invalidation callbacks are delivered on their own goroutines, like a
// real camera stack's notification thread. Disconnect and CloseSession
// wait for delivery before returning so tests can assert right after.
package sim
