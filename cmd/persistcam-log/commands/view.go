package commands

import (
	"fmt"
	"io"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
)

// RunView prints the matching events of path in human-readable form.
func RunView(path string, filter eventlog.Filter, w io.Writer) error {
	return eachEvent(path, filter, func(event eventlog.Event) error {
		formatEvent(w, event)
		return nil
	})
}

// formatEvent writes one line per event:
// timestamp [session] CATEGORY device summary
func formatEvent(w io.Writer, event eventlog.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	device := event.DeviceID
	if device == "" {
		device = "-"
	}

	fmt.Fprintf(w, "%s [%s] %-11s dev=%-3s %s\n",
		ts, shortenID(event.SessionID), event.Category.String(), device, event.Summary())
}

func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
