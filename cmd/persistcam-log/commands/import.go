package commands

import (
	"fmt"
	"io"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/journal"
)

// RunImport appends the matching events of a CBOR trace file to a journal
// and reports how many were imported.
func RunImport(path, dbPath string, filter eventlog.Filter, w io.Writer) error {
	if isJournal(path) {
		return fmt.Errorf("%s is already a journal", path)
	}

	store, err := journal.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer store.Close()

	count := 0
	err = eachEvent(path, filter, func(event eventlog.Event) error {
		if err := store.Append(event); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Imported %d events into %s\n", count, dbPath)
	return nil
}
