// Package journal persists lifecycle events in SQLite.
//
// Store implements eventlog.Logger, so it can be combined with a trace file
// through eventlog.MultiLogger. Each row keeps the indexed columns used for
// queries and the CBOR-encoded event, so Query returns events exactly as
// they were logged.
//
//	store, err := journal.NewStore("/var/lib/persistcam/journal.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	session, err := capture.New(capture.Config{
//	    Provider:    provider,
//	    Details:     provider,
//	    EventLogger: store,
//	})
package journal
