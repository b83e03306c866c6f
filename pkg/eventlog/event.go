package eventlog

import (
	"fmt"
	"strings"
	"time"
)

// Event is one entry of the lifecycle trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the persistent session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// DeviceID is the camera identifier involved, if any.
	DeviceID string `cbor:"4,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Transaction *TransactionEvent `cbor:"10,keyasint,omitempty"`
	Resource    *ResourceEvent    `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Capture     *CaptureEvent     `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Summary renders the payload as a single human-readable line.
func (e Event) Summary() string {
	switch {
	case e.Transaction != nil:
		t := e.Transaction
		s := fmt.Sprintf("tx#%d %s", t.Seq, t.Phase)
		if len(t.Changes) > 0 {
			s += " changes=" + strings.Join(t.Changes, ",")
		}
		if t.Duration > 0 {
			s += " took=" + t.Duration.String()
		}
		if t.Error != "" {
			s += " error=" + t.Error
		}
		return s
	case e.Resource != nil:
		r := e.Resource
		s := fmt.Sprintf("%s %s", r.Kind, r.Action)
		if r.HandleID != "" {
			s += " handle=" + shortID(r.HandleID)
		}
		if r.Reason != "" {
			s += " reason=" + r.Reason
		}
		return s
	case e.StateChange != nil:
		s := fmt.Sprintf("%s -> %s", e.StateChange.OldState, e.StateChange.NewState)
		if e.StateChange.Reason != "" {
			s += " (" + e.StateChange.Reason + ")"
		}
		return s
	case e.Capture != nil:
		c := e.Capture
		s := fmt.Sprintf("capture %s", c.Phase)
		if c.CaptureID != "" {
			s += " id=" + shortID(c.CaptureID)
		}
		if c.Latency > 0 {
			s += " latency=" + c.Latency.String()
		}
		if c.Error != "" {
			s += " error=" + c.Error
		}
		return s
	case e.Error != nil:
		s := fmt.Sprintf("error op=%s: %s", e.Error.Op, e.Error.Message)
		if e.Error.Context != "" {
			s += " (" + e.Error.Context + ")"
		}
		return s
	}
	return e.Category.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryTransaction indicates a configuration transaction boundary.
	CategoryTransaction Category = 0
	// CategoryResource indicates a device, session or repeating request action.
	CategoryResource Category = 1
	// CategoryState indicates a change of the session state machine.
	CategoryState Category = 2
	// CategoryCapture indicates a one-shot capture.
	CategoryCapture Category = 3
	// CategoryError indicates an error reported upward.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransaction:
		return "TRANSACTION"
	case CategoryResource:
		return "RESOURCE"
	case CategoryState:
		return "STATE"
	case CategoryCapture:
		return "CAPTURE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a case-insensitive category name.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "transaction", "tx":
		return CategoryTransaction, nil
	case "resource":
		return CategoryResource, nil
	case "state":
		return CategoryState, nil
	case "capture":
		return CategoryCapture, nil
	case "error":
		return CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (valid: transaction, resource, state, capture, error)", s)
	}
}

// TransactionPhase marks a transaction boundary.
type TransactionPhase uint8

const (
	// PhaseBegin is emitted once the transaction lock is held.
	PhaseBegin TransactionPhase = 0
	// PhaseCommit is emitted after reconciliation succeeded.
	PhaseCommit TransactionPhase = 1
	// PhaseAbort is emitted when mutation or reconciliation failed.
	PhaseAbort TransactionPhase = 2
)

// String returns the phase name.
func (p TransactionPhase) String() string {
	switch p {
	case PhaseBegin:
		return "BEGIN"
	case PhaseCommit:
		return "COMMIT"
	case PhaseAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// TransactionEvent captures a transaction boundary.
type TransactionEvent struct {
	// Seq numbers transactions per session, starting at 1.
	Seq uint64 `cbor:"1,keyasint"`

	// Phase of the transaction.
	Phase TransactionPhase `cbor:"2,keyasint"`

	// Changes lists the inputs modified by the mutations (commit/abort only).
	Changes []string `cbor:"3,keyasint,omitempty"`

	// Duration from lock acquisition to release (commit/abort only).
	Duration time.Duration `cbor:"4,keyasint,omitempty"`

	// Error is the failure message (abort only).
	Error string `cbor:"5,keyasint,omitempty"`
}

// ResourceKind is the hardware resource an action applies to.
type ResourceKind uint8

const (
	// ResourceDevice is the exclusive device handle.
	ResourceDevice ResourceKind = 0
	// ResourceSession is the configured capture session.
	ResourceSession ResourceKind = 1
	// ResourceRepeating is the session's repeating request.
	ResourceRepeating ResourceKind = 2
)

// String returns the resource name.
func (k ResourceKind) String() string {
	switch k {
	case ResourceDevice:
		return "DEVICE"
	case ResourceSession:
		return "SESSION"
	case ResourceRepeating:
		return "REPEATING"
	default:
		return "UNKNOWN"
	}
}

// Action is what happened to a resource.
type Action uint8

const (
	// ActionOpened means the device was opened or the session configured.
	ActionOpened Action = 0
	// ActionClosed means the resource was closed by the session.
	ActionClosed Action = 1
	// ActionDiscarded means the reference was dropped without closing.
	ActionDiscarded Action = 2
	// ActionInvalidated means the hardware invalidated the resource.
	ActionInvalidated Action = 3
	// ActionStaleRejected means a notification for a replaced handle was ignored.
	ActionStaleRejected Action = 4
	// ActionSubmitted means a repeating request was submitted.
	ActionSubmitted Action = 5
	// ActionStopped means the repeating request was stopped.
	ActionStopped Action = 6
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionOpened:
		return "OPENED"
	case ActionClosed:
		return "CLOSED"
	case ActionDiscarded:
		return "DISCARDED"
	case ActionInvalidated:
		return "INVALIDATED"
	case ActionStaleRejected:
		return "STALE_REJECTED"
	case ActionSubmitted:
		return "SUBMITTED"
	case ActionStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ResourceEvent captures an action on a device, session or repeating request.
type ResourceEvent struct {
	Kind     ResourceKind `cbor:"1,keyasint"`
	Action   Action       `cbor:"2,keyasint"`
	HandleID string       `cbor:"3,keyasint,omitempty"`
	Reason   string       `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures a state machine transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint,omitempty"`
	NewState string `cbor:"2,keyasint"`
	Reason   string `cbor:"3,keyasint,omitempty"`
}

// CapturePhase marks the progress of a one-shot capture.
type CapturePhase uint8

const (
	// CaptureIssued means the capture was handed to the session.
	CaptureIssued CapturePhase = 0
	// CaptureCompleted means the hardware reported a result.
	CaptureCompleted CapturePhase = 1
	// CaptureFailed means the hardware reported a failure.
	CaptureFailed CapturePhase = 2
	// CaptureRejected means no valid session existed.
	CaptureRejected CapturePhase = 3
)

// String returns the phase name.
func (p CapturePhase) String() string {
	switch p {
	case CaptureIssued:
		return "ISSUED"
	case CaptureCompleted:
		return "COMPLETED"
	case CaptureFailed:
		return "FAILED"
	case CaptureRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// CaptureEvent captures a one-shot capture.
type CaptureEvent struct {
	CaptureID string        `cbor:"1,keyasint,omitempty"`
	Phase     CapturePhase  `cbor:"2,keyasint"`
	Latency   time.Duration `cbor:"3,keyasint,omitempty"`
	Error     string        `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error reported upward.
type ErrorEventData struct {
	// Op is the failed operation (e.g. "disconnect", "open").
	Op string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what the session was doing.
	Context string `cbor:"3,keyasint,omitempty"`
}
