package hardware

import "context"

// InvalidationFunc is called by the hardware layer when a handle is lost.
// err is nil when the loss carries no error (e.g. a regular close).
type InvalidationFunc func(err error)

// Provider opens devices.
type Provider interface {
	// OpenDevice opens the device exclusively. onInvalidated fires at most
	// once when the device is disconnected or reports a fatal error.
	OpenDevice(ctx context.Context, id Identifier, onInvalidated InvalidationFunc) (Device, error)
}

// Device is an opened, exclusively owned camera device.
type Device interface {
	ID() Identifier

	// CreateSession configures a capture session delivering to outputs.
	// onInvalidated fires at most once when the session is closed by the
	// system or replaced by a newer session on the same device.
	CreateSession(ctx context.Context, outputs OutputSet, onInvalidated InvalidationFunc) (Session, error)

	// Close releases the device and cascades to its session.
	Close() error
}

// Session is a configured capture session over one device.
type Session interface {
	// Submit installs req as the repeating request, replacing any previous one.
	Submit(req Request) error

	// Stop stops the repeating request. The session stays configured.
	Stop() error

	// CaptureOnce issues a one-shot capture and waits for completion.
	CaptureOnce(ctx context.Context, req Request, opts CaptureOptions) (CaptureResult, error)

	// AbortInFlight fails all in-flight captures as fast as possible.
	AbortInFlight() error

	// Close closes the session and its surfaces.
	Close() error
}

// DetailsProvider describes device capabilities.
type DetailsProvider interface {
	DetailsFor(id Identifier) (Details, error)
}

// RequestSpec describes the desired repeating capture and materializes it
// into a concrete Request. Materialize must be free of side effects.
type RequestSpec interface {
	Materialize(device Device, details Details, outputs OutputSet) (Request, error)
}
