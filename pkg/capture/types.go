package capture

import (
	"log/slog"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// State is the conceptual lifecycle state of a PersistentSession.
type State uint8

const (
	// StateNoDevice - no valid device is owned.
	StateNoDevice State = iota

	// StateDeviceOpen - a device is open but no valid session is bound to it.
	StateDeviceOpen

	// StateSessionConfigured - a session is configured, no repeating
	// request was submitted or stopped yet.
	StateSessionConfigured

	// StateRepeating - the repeating request is submitted.
	StateRepeating

	// StateStopped - the repeating request was stopped; the session stays
	// configured.
	StateStopped

	// StateDisposed - the session was disposed.
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoDevice:
		return "NO_DEVICE"
	case StateDeviceOpen:
		return "DEVICE_OPEN"
	case StateSessionConfigured:
		return "SESSION_CONFIGURED"
	case StateRepeating:
		return "REPEATING"
	case StateStopped:
		return "STOPPED"
	case StateDisposed:
		return "DISPOSED"
	default:
		return "UNKNOWN"
	}
}

// Callback receives unrecoverable device-level errors.
// OnError runs on the hardware notification goroutine and must not block.
type Callback interface {
	OnError(err error)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(err error)

// OnError calls f(err).
func (f CallbackFunc) OnError(err error) {
	f(err)
}

// SessionLostHandler is implemented by callbacks that also want to know when
// the system closed the capture session while the device stayed open.
type SessionLostHandler interface {
	OnSessionLost(err error)
}

// Config configures a PersistentSession.
type Config struct {
	// Provider opens devices. Required.
	Provider hardware.Provider

	// Details describes device capabilities. Required.
	Details hardware.DetailsProvider

	// Callback receives device-level errors (optional).
	Callback Callback

	// Logger is the optional logger for debug output.
	Logger *slog.Logger

	// EventLogger receives lifecycle events (optional).
	EventLogger eventlog.Logger
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Provider == nil || c.Details == nil {
		return ErrInvalidConfig
	}
	return nil
}

// Snapshot is a point-in-time view of a PersistentSession.
type Snapshot struct {
	SessionID string
	State     State

	// Desired inputs.
	Identifier hardware.Identifier
	Outputs    hardware.OutputSet
	Spec       hardware.RequestSpec
	Active     bool

	// Owned handle ids; empty when not owned.
	DeviceHandle  string
	SessionHandle string

	Transactions uint64
}
