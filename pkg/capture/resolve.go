package capture

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// resolveDevice returns the owned device for id, opening a new one if none
// is owned or the owned one is no longer usable.
func (p *PersistentSession) resolveDevice(ctx context.Context, id hardware.Identifier) (*deviceHandle, error) {
	if dev := p.device.Load(); dev != nil {
		if dev.deviceID == id && !dev.invalidated.Load() {
			return dev, nil
		}
		if p.device.CompareAndSwap(dev, nil) {
			dev.invalidate(nil)
			p.closeQuietly(dev, "stale device")
		}
	}

	h := &deviceHandle{id: uuid.NewString(), deviceID: id}
	hw, err := p.provider.OpenDevice(ctx, id, func(err error) {
		p.onDeviceInvalidated(h, err)
	})
	if err != nil {
		p.emitError(OpOpen, id, err)
		return nil, &HardwareError{Op: OpOpen, DeviceID: id, Err: err}
	}
	h.hw = hw

	p.device.Store(h)
	h.installed.Store(true)

	// The hardware may have invalidated the handle, or the session may have
	// been disposed, before the handle was installed.
	if h.invalidated.Load() || p.disposed.Load() {
		if p.device.CompareAndSwap(h, nil) {
			reason := "invalidated during open"
			if p.disposed.Load() {
				reason = "disposed during open"
			}
			p.closeQuietly(h, reason)
		}
		if p.disposed.Load() {
			return nil, ErrDisposed
		}
		return nil, &HardwareError{Op: OpOpen, DeviceID: id, Err: h.causeOr(ErrDisconnected)}
	}

	p.debugLog("device opened", "deviceID", id, "handleID", h.id)
	p.emitResource(eventlog.ResourceDevice, eventlog.ActionOpened, id, h.id, "")
	return h, nil
}

// resolveSession returns the owned session bound to dev, creating a new one
// for outputs if needed.
func (p *PersistentSession) resolveSession(ctx context.Context, dev *deviceHandle, outputs hardware.OutputSet) (*sessionHandle, error) {
	if sess := p.session.Load(); sess != nil {
		if sess.device == dev && !sess.invalidated.Load() {
			return sess, nil
		}
		if p.session.CompareAndSwap(sess, nil) {
			sess.invalidate(nil)
			p.abortQuietly(sess)
			p.emitResource(eventlog.ResourceSession, eventlog.ActionDiscarded, sess.device.deviceID, sess.id, "bound to replaced device")
		}
	}

	// reconcile defers on empty outputs; this guards other callers.
	if outputs.Empty() {
		return nil, ErrConfiguration
	}

	h := &sessionHandle{id: uuid.NewString(), device: dev, outputs: outputs.Clone()}
	hw, err := dev.hw.CreateSession(ctx, h.outputs, func(err error) {
		p.onSessionInvalidated(h, err)
	})
	if err != nil {
		p.emitError(OpConfigure, dev.deviceID, err)
		return nil, &HardwareError{Op: OpConfigure, DeviceID: dev.deviceID, Err: err}
	}
	h.hw = hw

	p.session.Store(h)
	h.installed.Store(true)
	p.repeat.Store(uint32(repeatNone))

	if h.invalidated.Load() || p.disposed.Load() || p.device.Load() != dev || dev.invalidated.Load() {
		if p.session.CompareAndSwap(h, nil) {
			p.abortQuietly(h)
		}
		if p.disposed.Load() {
			return nil, ErrDisposed
		}
		cause := h.causeOr(nil)
		if cause == nil {
			cause = dev.causeOr(ErrSessionLost)
		}
		return nil, &HardwareError{Op: OpConfigure, DeviceID: dev.deviceID, Err: cause}
	}

	p.debugLog("session configured", "deviceID", dev.deviceID, "handleID", h.id, "outputs", h.outputs.String())
	p.emitResource(eventlog.ResourceSession, eventlog.ActionOpened, dev.deviceID, h.id, h.outputs.String())
	return h, nil
}

// onDeviceInvalidated handles a disconnect or fatal error notification for h.
// It runs outside the transaction lock.
func (p *PersistentSession) onDeviceInvalidated(h *deviceHandle, err error) {
	if err == nil {
		err = ErrDisconnected
	}
	h.invalidate(err)

	if !p.device.CompareAndSwap(h, nil) {
		if h.installed.Load() {
			p.debugLog("stale device notification rejected", "deviceID", h.deviceID, "handleID", h.id, "error", err)
			p.emitResource(eventlog.ResourceDevice, eventlog.ActionStaleRejected, h.deviceID, h.id, err.Error())
		}
		return
	}

	if sess := p.session.Load(); sess != nil && sess.device == h && p.session.CompareAndSwap(sess, nil) {
		sess.invalidate(err)
		p.abortQuietly(sess)
		p.emitResource(eventlog.ResourceSession, eventlog.ActionInvalidated, h.deviceID, sess.id, "device lost")
	}
	p.repeat.Store(uint32(repeatNone))

	p.debugLog("device invalidated", "deviceID", h.deviceID, "handleID", h.id, "error", err)
	p.emitResource(eventlog.ResourceDevice, eventlog.ActionInvalidated, h.deviceID, h.id, err.Error())
	// A lost device still has to be closed. The close cascades to its session.
	p.closeQuietly(h, "disconnected")
	p.emitError(OpDisconnect, h.deviceID, err)
	p.notifyStateChange("device invalidated")

	if p.callback != nil {
		p.callback.OnError(&HardwareError{Op: OpDisconnect, DeviceID: h.deviceID, Err: err})
	}
}

// onSessionInvalidated handles a close notification for h. It runs outside
// the transaction lock. err is nil for a regular close.
func (p *PersistentSession) onSessionInvalidated(h *sessionHandle, err error) {
	h.invalidate(err)

	reason := "closed"
	if err != nil {
		reason = err.Error()
	}

	if !p.session.CompareAndSwap(h, nil) {
		if h.installed.Load() {
			p.debugLog("stale session notification rejected", "deviceID", h.device.deviceID, "handleID", h.id)
			p.emitResource(eventlog.ResourceSession, eventlog.ActionStaleRejected, h.device.deviceID, h.id, reason)
		}
		return
	}

	p.abortQuietly(h)
	p.repeat.Store(uint32(repeatNone))

	p.debugLog("session invalidated", "deviceID", h.device.deviceID, "handleID", h.id, "reason", reason)
	p.emitResource(eventlog.ResourceSession, eventlog.ActionInvalidated, h.device.deviceID, h.id, reason)
	p.notifyStateChange("session invalidated")

	if lh, ok := p.callback.(SessionLostHandler); ok {
		if err == nil {
			err = ErrSessionLost
		}
		lh.OnSessionLost(err)
	}
}

// discardSession drops the owned session. In-flight captures are aborted;
// the session is closed only when closeIt is set.
func (p *PersistentSession) discardSession(reason string, closeIt bool) {
	sess := p.session.Swap(nil)
	if sess == nil {
		return
	}
	sess.invalidate(nil)

	action := eventlog.ActionDiscarded
	if closeIt {
		if err := sess.hw.Close(); err != nil {
			p.debugLog("session close failed", "handleID", sess.id, "error", err)
		}
		action = eventlog.ActionClosed
	} else {
		p.abortQuietly(sess)
	}
	p.emitResource(eventlog.ResourceSession, action, sess.device.deviceID, sess.id, reason)
}

// closeDevice closes and drops the owned device.
func (p *PersistentSession) closeDevice(reason string) {
	dev := p.device.Swap(nil)
	if dev == nil {
		return
	}
	dev.invalidate(nil)
	p.closeQuietly(dev, reason)
}

func (p *PersistentSession) closeQuietly(dev *deviceHandle, reason string) {
	if err := dev.hw.Close(); err != nil {
		p.debugLog("device close failed", "deviceID", dev.deviceID, "handleID", dev.id, "error", err)
	}
	p.emitResource(eventlog.ResourceDevice, eventlog.ActionClosed, dev.deviceID, dev.id, reason)
}

// abortQuietly aborts in-flight captures; failures are logged only.
func (p *PersistentSession) abortQuietly(sess *sessionHandle) {
	if err := sess.hw.AbortInFlight(); err != nil {
		p.debugLog("abort in-flight captures failed", "handleID", sess.id, "error", err)
	}
}

func (p *PersistentSession) emitError(op string, id hardware.Identifier, err error) {
	p.emit(eventlog.Event{
		Category: eventlog.CategoryError,
		DeviceID: string(id),
		Error: &eventlog.ErrorEventData{
			Op:      op,
			Message: err.Error(),
		},
	})
}
