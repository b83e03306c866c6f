package capture

import (
	"errors"
	"fmt"

	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// Session errors.
var (
	// ErrLockContractViolation is returned by a Tx setter used outside its
	// transaction. No state is changed.
	ErrLockContractViolation = errors.New("setter called without holding the transaction lock")

	// ErrReentrantTransaction is returned when Transaction is called from
	// inside a running transaction of the same session.
	ErrReentrantTransaction = errors.New("transaction already held by caller")

	// ErrConfiguration reports desired state the hardware cannot be set up for.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotReady is returned by Capture when no valid session exists.
	// It is retryable.
	ErrNotReady = errors.New("capture session not ready")

	// ErrHardware matches every *HardwareError.
	ErrHardware = errors.New("hardware error")

	// ErrDisposed is returned after Dispose.
	ErrDisposed = errors.New("session disposed")

	// ErrInvalidConfig is returned by New for an incomplete Config.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDisconnected is the cause reported when the hardware invalidates a
	// device without an error.
	ErrDisconnected = errors.New("device disconnected")

	// ErrSessionLost is the cause used when a session is closed by the
	// system without an error.
	ErrSessionLost = errors.New("session closed by system")
)

// Hardware operations named in HardwareError.Op.
const (
	OpOpen       = "open"
	OpConfigure  = "configure"
	OpSubmit     = "submit"
	OpStop       = "stop"
	OpCapture    = "capture"
	OpDisconnect = "disconnect"
)

// HardwareError wraps a failure reported by the hardware layer.
type HardwareError struct {
	Op       string
	DeviceID hardware.Identifier
	Err      error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s on device %q: %v", e.Op, e.DeviceID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *HardwareError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrHardware.
func (e *HardwareError) Is(target error) bool {
	return target == ErrHardware
}
