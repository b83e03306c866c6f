// Package capture keeps a camera device and its configured capture session
// alive and reconfigurable across interruptions.
//
// A PersistentSession owns at most one open device and one configured
// session. Callers change the desired inputs (device identifier, outputs,
// repeating request spec, active flag) inside a transaction:
//
//	err := ps.Transaction(ctx, func(ctx context.Context, tx *capture.Tx) error {
//		if err := tx.SetIdentifier("0"); err != nil {
//			return err
//		}
//		if err := tx.SetOutputs(outputs); err != nil {
//			return err
//		}
//		if err := tx.SetRepeatingSpec(spec); err != nil {
//			return err
//		}
//		return tx.SetActive(true)
//	})
//
// Transactions are serialized by a FIFO, non-reentrant lock. When the
// mutations succeed the session reconciles once: it reopens the device and
// recreates the session only when something relevant changed, then submits
// or stops the repeating request.
//
// # Invalidation
//
// The hardware may drop the device or the session at any time. Those
// notifications do not take the transaction lock. Each one clears the
// reference it was registered for only if that handle is still the one
// owned; notifications for replaced handles are rejected as stale. A device
// loss is reported through Callback.OnError. The desired inputs are kept, so
// the next transaction (an empty one is enough) restores the pipeline.
//
// # Captures
//
// Capture is not serialized behind the transaction lock. A capture racing a
// reconfiguration may fail with ErrNotReady; callers should retry.
package capture
