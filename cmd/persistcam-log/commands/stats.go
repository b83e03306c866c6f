package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
)

// Stats holds aggregate statistics about a log.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[eventlog.Category]int
	Resources        map[string]int
	Sessions         map[string]*SessionStats
	Commits          int
	Aborts           int
	StaleRejected    int
	Captures         map[eventlog.CapturePhase]int
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single persistent session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Devices   map[string]bool
	LastState string
}

// RunStats analyzes the matching events of path and prints statistics.
func RunStats(path string, filter eventlog.Filter, w io.Writer) error {
	stats := &Stats{
		EventsByCategory: make(map[eventlog.Category]int),
		Resources:        make(map[string]int),
		Sessions:         make(map[string]*SessionStats),
		Captures:         make(map[eventlog.CapturePhase]int),
	}

	err := eachEvent(path, filter, func(event eventlog.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event eventlog.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Devices:   make(map[string]bool),
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.DeviceID != "" {
		sess.Devices[event.DeviceID] = true
	}

	switch {
	case event.Transaction != nil:
		switch event.Transaction.Phase {
		case eventlog.PhaseCommit:
			s.Commits++
		case eventlog.PhaseAbort:
			s.Aborts++
		}
	case event.Resource != nil:
		s.Resources[event.Resource.Kind.String()+" "+event.Resource.Action.String()]++
		if event.Resource.Action == eventlog.ActionStaleRejected {
			s.StaleRejected++
		}
	case event.StateChange != nil:
		sess.LastState = event.StateChange.NewState
	case event.Capture != nil:
		s.Captures[event.Capture.Phase]++
	case event.Error != nil:
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Capture Session Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []eventlog.Category{
		eventlog.CategoryTransaction, eventlog.CategoryResource, eventlog.CategoryState,
		eventlog.CategoryCapture, eventlog.CategoryError,
	} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Transactions: %d committed, %d aborted\n", stats.Commits, stats.Aborts)

	if len(stats.Resources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Resource Actions:")
		keys := make([]string, 0, len(stats.Resources))
		for k := range stats.Resources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-26s %d\n", k+":", stats.Resources[k])
		}
	}

	if len(stats.Captures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Captures:")
		for _, p := range []eventlog.CapturePhase{
			eventlog.CaptureIssued, eventlog.CaptureCompleted,
			eventlog.CaptureFailed, eventlog.CaptureRejected,
		} {
			if count := stats.Captures[p]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", p.String()+":", count)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), s.stats.Events, duration)
			if len(s.stats.Devices) > 0 {
				devices := make([]string, 0, len(s.stats.Devices))
				for d := range s.stats.Devices {
					devices = append(devices, d)
				}
				sort.Strings(devices)
				fmt.Fprintf(w, "           Devices: %v\n", devices)
			}
			if s.stats.LastState != "" {
				fmt.Fprintf(w, "           Last state: %s\n", s.stats.LastState)
			}
		}
	}

	if stats.StaleRejected > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Stale notifications rejected: %d\n", stats.StaleRejected)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
