package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// Capture issues a one-shot capture on the owned session and waits for the
// result. It does not take the transaction lock: without a valid session it
// fails with ErrNotReady and makes no hardware call, and a session replaced
// or invalidated while the capture is in flight also yields ErrNotReady.
// Other hardware failures are returned as *HardwareError and leave the
// session in place.
func (p *PersistentSession) Capture(ctx context.Context, req hardware.Request, opts hardware.CaptureOptions) (hardware.CaptureResult, error) {
	captureID := uuid.NewString()

	if p.disposed.Load() {
		p.emitCapture(captureID, "", eventlog.CaptureRejected, 0, ErrDisposed)
		return hardware.CaptureResult{}, fmt.Errorf("%w: %w", ErrNotReady, ErrDisposed)
	}
	dev := p.validDevice()
	var sess *sessionHandle
	if dev != nil {
		sess = p.validSession(dev)
	}
	if sess == nil {
		p.emitCapture(captureID, "", eventlog.CaptureRejected, 0, ErrNotReady)
		return hardware.CaptureResult{}, ErrNotReady
	}

	p.emitCapture(captureID, dev.deviceID, eventlog.CaptureIssued, 0, nil)
	start := time.Now()

	res, err := sess.hw.CaptureOnce(ctx, req, opts)
	latency := time.Since(start)
	if err != nil {
		p.emitCapture(captureID, dev.deviceID, eventlog.CaptureFailed, latency, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return hardware.CaptureResult{}, ctxErr
		}
		if sess.invalidated.Load() || p.session.Load() != sess {
			return hardware.CaptureResult{}, fmt.Errorf("%w: session lost during capture: %w", ErrNotReady, err)
		}
		return hardware.CaptureResult{}, &HardwareError{Op: OpCapture, DeviceID: dev.deviceID, Err: err}
	}

	p.emitCapture(captureID, dev.deviceID, eventlog.CaptureCompleted, latency, nil)
	return res, nil
}

func (p *PersistentSession) emitCapture(id string, deviceID hardware.Identifier, phase eventlog.CapturePhase, latency time.Duration, err error) {
	ev := &eventlog.CaptureEvent{
		CaptureID: id,
		Phase:     phase,
		Latency:   latency,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.emit(eventlog.Event{
		Category: eventlog.CategoryCapture,
		DeviceID: string(deviceID),
		Capture:  ev,
	})
}

// Dispose aborts in-flight captures and closes the owned device, which
// closes its session. It does not wait for a running transaction and never
// fails; later transactions return ErrDisposed. Calling Dispose again is a
// no-op.
func (p *PersistentSession) Dispose() {
	if !p.disposed.CompareAndSwap(false, true) {
		return
	}

	if sess := p.session.Swap(nil); sess != nil {
		sess.invalidate(nil)
		p.abortQuietly(sess)
		p.emitResource(eventlog.ResourceSession, eventlog.ActionDiscarded, sess.device.deviceID, sess.id, "disposed")
	}
	if dev := p.device.Swap(nil); dev != nil {
		dev.invalidate(nil)
		p.closeQuietly(dev, "disposed")
	}
	p.repeat.Store(uint32(repeatNone))

	p.debugLog("session disposed", "sessionID", p.id)
	p.notifyStateChange("disposed")
}

// Close disposes the session. It always returns nil.
func (p *PersistentSession) Close() error {
	p.Dispose()
	return nil
}
