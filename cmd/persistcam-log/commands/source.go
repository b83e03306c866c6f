// Package commands implements the persistcam-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/journal"
)

// FilterOptions holds the filter flags shared by all commands.
type FilterOptions struct {
	SessionID string
	DeviceID  string
	Category  string
	TimeStart string
	TimeEnd   string
}

// Build converts the flag values to an eventlog.Filter.
func (o FilterOptions) Build() (eventlog.Filter, error) {
	filter := eventlog.Filter{
		SessionID: o.SessionID,
		DeviceID:  o.DeviceID,
	}

	if o.Category != "" {
		c, err := eventlog.ParseCategory(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// eachEvent calls fn for every event of path that matches filter. Paths
// ending in .db are read as journals, everything else as CBOR trace files.
func eachEvent(path string, filter eventlog.Filter, fn func(eventlog.Event) error) error {
	if isJournal(path) {
		store, err := journal.NewStore(path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer store.Close()

		events, err := store.Query(filter, -1)
		if err != nil {
			return fmt.Errorf("failed to query journal: %w", err)
		}
		for _, e := range events {
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	}

	reader, err := eventlog.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

func isJournal(path string) bool {
	return strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite")
}
