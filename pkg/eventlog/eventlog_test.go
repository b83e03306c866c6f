package eventlog

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEvents(base time.Time) []Event {
	return []Event{
		{
			Timestamp: base,
			SessionID: "sess-1",
			Category:  CategoryTransaction,
			Transaction: &TransactionEvent{
				Seq:   1,
				Phase: PhaseBegin,
			},
		},
		{
			Timestamp: base.Add(time.Millisecond),
			SessionID: "sess-1",
			Category:  CategoryResource,
			DeviceID:  "0",
			Resource: &ResourceEvent{
				Kind:     ResourceDevice,
				Action:   ActionOpened,
				HandleID: "3f0e2a4c-1111-2222-3333-444455556666",
			},
		},
		{
			Timestamp: base.Add(2 * time.Millisecond),
			SessionID: "sess-2",
			Category:  CategoryError,
			DeviceID:  "1",
			Error: &ErrorEventData{
				Op:      "disconnect",
				Message: "device unplugged",
			},
		},
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	now := time.Now()
	event := Event{
		Timestamp: now,
		SessionID: "sess-1",
		Category:  CategoryTransaction,
		Transaction: &TransactionEvent{
			Seq:      7,
			Phase:    PhaseCommit,
			Changes:  []string{"identifier", "outputs"},
			Duration: 3 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(now) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, now)
	}
	if decoded.Transaction == nil {
		t.Fatal("Transaction is nil")
	}
	if decoded.Transaction.Seq != 7 || decoded.Transaction.Phase != PhaseCommit {
		t.Errorf("Transaction: got %+v", decoded.Transaction)
	}
	if strings.Join(decoded.Transaction.Changes, ",") != "identifier,outputs" {
		t.Errorf("Changes: got %v", decoded.Transaction.Changes)
	}
	if decoded.Resource != nil || decoded.Capture != nil {
		t.Error("unexpected payload decoded")
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range sampleEvents(time.Now()) {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Logging after close is ignored.
	logger.Log(Event{SessionID: "late"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var got []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, e)
	}

	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[1].Resource == nil || got[1].Resource.Action != ActionOpened {
		t.Errorf("event 1: got %+v", got[1])
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.plog")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), SessionID: "s", Category: CategoryState,
			StateChange: &StateChangeEvent{NewState: "NO_DEVICE"}})
		logger.Close()
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("got %d events, want 2", count)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Log(Event{Timestamp: time.Now(), SessionID: "s", Category: CategoryCapture,
					Capture: &CaptureEvent{Phase: CaptureIssued}})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	dec := NewDecoder(bytes.NewReader(data))
	count := 0
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			break
		}
		count++
	}
	if count != 200 {
		t.Errorf("decoded %d events, want 200", count)
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Now()
	path := filepath.Join(t.TempDir(), "trace.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range sampleEvents(base) {
		logger.Log(e)
	}
	logger.Close()

	errCat := CategoryError
	end := base.Add(time.Millisecond)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"session", Filter{SessionID: "sess-1"}, 2},
		{"category", Filter{Category: &errCat}, 1},
		{"device", Filter{DeviceID: "0"}, 1},
		{"time window", Filter{TimeStart: &base, TimeEnd: &end}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			got := 0
			for {
				if _, err := r.Next(); err != nil {
					break
				}
				got++
			}
			if got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestMultiLoggerSkipsNil(t *testing.T) {
	r1 := NewRecorder()
	r2 := NewRecorder()
	multi := NewMultiLogger(r1, nil, r2)

	multi.Log(Event{SessionID: "s"})

	if len(r1.Events()) != 1 || len(r2.Events()) != 1 {
		t.Errorf("got %d and %d events, want 1 each", len(r1.Events()), len(r2.Events()))
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	adapter := NewSlogAdapter(logger)
	for _, e := range sampleEvents(time.Now()) {
		adapter.Log(e)
	}

	out := buf.String()
	for _, want := range []string{"session_id=sess-1", "phase=BEGIN", "resource=DEVICE", "action=OPENED", "op=disconnect"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRecorderResources(t *testing.T) {
	r := NewRecorder()
	for _, e := range sampleEvents(time.Now()) {
		r.Log(e)
	}

	if got := len(r.Resources(ResourceDevice, ActionOpened)); got != 1 {
		t.Errorf("Resources(device, opened) = %d, want 1", got)
	}
	if got := len(r.Resources(ResourceSession, ActionOpened)); got != 0 {
		t.Errorf("Resources(session, opened) = %d, want 0", got)
	}

	r.Reset()
	if len(r.Events()) != 0 {
		t.Error("Reset did not clear events")
	}
}

func TestEventSummary(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Transaction: &TransactionEvent{Seq: 2, Phase: PhaseCommit, Changes: []string{"active"}}}, "tx#2 COMMIT changes=active"},
		{Event{Resource: &ResourceEvent{Kind: ResourceSession, Action: ActionDiscarded, HandleID: "abcdef0123456789"}}, "SESSION DISCARDED handle=abcdef01"},
		{Event{StateChange: &StateChangeEvent{OldState: "DEVICE_OPEN", NewState: "REPEATING"}}, "DEVICE_OPEN -> REPEATING"},
		{Event{Capture: &CaptureEvent{Phase: CaptureRejected}}, "capture REJECTED"},
		{Event{Error: &ErrorEventData{Op: "open", Message: "busy"}}, "error op=open: busy"},
		{Event{Category: CategoryState}, "STATE"},
	}

	for _, tt := range tests {
		if got := tt.event.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range []Category{CategoryTransaction, CategoryResource, CategoryState, CategoryCapture, CategoryError} {
		got, err := ParseCategory(strings.ToLower(c.String()))
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCategory("bogus"); err == nil {
		t.Error("ParseCategory(bogus) succeeded")
	}
}
