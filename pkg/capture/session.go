package capture

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// repeatState is the effective state of the repeating request on the owned
// session, as last applied by the reconciler.
type repeatState uint32

const (
	repeatNone repeatState = iota
	repeatOn
	repeatStopped
)

// deviceHandle is one opened device. A handle is never reused: reopening
// the same identifier yields a new handle.
type deviceHandle struct {
	id       string
	deviceID hardware.Identifier
	hw       hardware.Device

	installed   atomic.Bool
	invalidated atomic.Bool
	cause       atomic.Pointer[error]
}

// sessionHandle is one configured session bound to exactly one device.
type sessionHandle struct {
	id      string
	device  *deviceHandle
	outputs hardware.OutputSet
	hw      hardware.Session

	installed   atomic.Bool
	invalidated atomic.Bool
	cause       atomic.Pointer[error]
}

// invalidate records the cause and marks the handle invalid.
func (h *deviceHandle) invalidate(cause error) {
	if cause != nil {
		h.cause.CompareAndSwap(nil, &cause)
	}
	h.invalidated.Store(true)
}

func (h *deviceHandle) causeOr(fallback error) error {
	if c := h.cause.Load(); c != nil {
		return *c
	}
	return fallback
}

func (h *sessionHandle) invalidate(cause error) {
	if cause != nil {
		h.cause.CompareAndSwap(nil, &cause)
	}
	h.invalidated.Store(true)
}

func (h *sessionHandle) causeOr(fallback error) error {
	if c := h.cause.Load(); c != nil {
		return *c
	}
	return fallback
}

// PersistentSession keeps one device and one capture session alive across
// reconfiguration and hardware invalidation.
type PersistentSession struct {
	id       string
	provider hardware.Provider
	details  *detailsCache
	callback Callback

	// Logger for debug output (optional)
	logger *slog.Logger

	// Lifecycle event trace, never nil
	events eventlog.Logger

	// Transaction lock. Weighted(1) grants waiters in FIFO order.
	lock     *semaphore.Weighted
	activeTx atomic.Pointer[Tx]
	txSeq    atomic.Uint64

	// Desired inputs. Written only by the transaction holder, which also
	// holds mu while writing so Snapshot can read them.
	identifier hardware.Identifier
	outputs    hardware.OutputSet
	spec       hardware.RequestSpec
	active     bool

	// Owned handles. Notifications clear them by compare-and-swap.
	device  atomic.Pointer[deviceHandle]
	session atomic.Pointer[sessionHandle]
	repeat  atomic.Uint32

	disposed atomic.Bool

	mu        sync.Mutex
	observers []func(old, new State)
	lastState State
}

// New creates a PersistentSession. No hardware is touched until the first
// transaction.
func New(config Config) (*PersistentSession, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	events := config.EventLogger
	if events == nil {
		events = eventlog.NoopLogger{}
	}

	return &PersistentSession{
		id:        uuid.NewString(),
		provider:  config.Provider,
		details:   newDetailsCache(config.Details),
		callback:  config.Callback,
		logger:    config.Logger,
		events:    events,
		lock:      semaphore.NewWeighted(1),
		lastState: StateNoDevice,
	}, nil
}

// ID returns the session's UUID used in lifecycle events.
func (p *PersistentSession) ID() string {
	return p.id
}

// State derives the current lifecycle state from the owned handles.
func (p *PersistentSession) State() State {
	if p.disposed.Load() {
		return StateDisposed
	}
	dev := p.validDevice()
	if dev == nil {
		return StateNoDevice
	}
	if p.validSession(dev) == nil {
		return StateDeviceOpen
	}
	switch repeatState(p.repeat.Load()) {
	case repeatOn:
		return StateRepeating
	case repeatStopped:
		return StateStopped
	default:
		return StateSessionConfigured
	}
}

// IsRunning reports whether the active flag is set and the repeating request
// runs on a valid device and session.
func (p *PersistentSession) IsRunning() bool {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()
	return active && p.State() == StateRepeating
}

// Snapshot returns the desired inputs and owned handles.
func (p *PersistentSession) Snapshot() Snapshot {
	p.mu.Lock()
	s := Snapshot{
		SessionID:  p.id,
		Identifier: p.identifier,
		Outputs:    p.outputs.Clone(),
		Spec:       p.spec,
		Active:     p.active,
	}
	p.mu.Unlock()

	s.State = p.State()
	s.Transactions = p.txSeq.Load()
	if dev := p.validDevice(); dev != nil {
		s.DeviceHandle = dev.id
		if sess := p.validSession(dev); sess != nil {
			s.SessionHandle = sess.id
		}
	}
	return s
}

// OnStateChange registers an observer called after every state transition.
// Observers run synchronously on the goroutine that caused the transition,
// which may be a hardware notification goroutine.
func (p *PersistentSession) OnStateChange(fn func(old, new State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// validDevice returns the owned device if it is still valid.
func (p *PersistentSession) validDevice() *deviceHandle {
	dev := p.device.Load()
	if dev == nil || dev.invalidated.Load() {
		return nil
	}
	return dev
}

// validSession returns the owned session if it is valid and bound to dev.
func (p *PersistentSession) validSession(dev *deviceHandle) *sessionHandle {
	sess := p.session.Load()
	if sess == nil || sess.invalidated.Load() || sess.device != dev {
		return nil
	}
	return sess
}

// setDesired applies fn to the desired inputs under mu.
func (p *PersistentSession) setDesired(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

// notifyStateChange emits a state event and calls observers if the state
// differs from the last one reported.
func (p *PersistentSession) notifyStateChange(reason string) {
	next := p.State()

	p.mu.Lock()
	prev := p.lastState
	if prev == next {
		p.mu.Unlock()
		return
	}
	p.lastState = next
	observers := make([]func(old, new State), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	p.debugLog("state changed", "old", prev, "new", next, "reason", reason)
	p.emit(eventlog.Event{
		Category: eventlog.CategoryState,
		StateChange: &eventlog.StateChangeEvent{
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})

	for _, fn := range observers {
		fn(prev, next)
	}
}

// emit stamps and records a lifecycle event.
func (p *PersistentSession) emit(e eventlog.Event) {
	e.Timestamp = time.Now()
	e.SessionID = p.id
	p.events.Log(e)
}

func (p *PersistentSession) emitResource(kind eventlog.ResourceKind, action eventlog.Action, deviceID hardware.Identifier, handleID, reason string) {
	p.emit(eventlog.Event{
		Category: eventlog.CategoryResource,
		DeviceID: string(deviceID),
		Resource: &eventlog.ResourceEvent{
			Kind:     kind,
			Action:   action,
			HandleID: handleID,
			Reason:   reason,
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (p *PersistentSession) debugLog(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
