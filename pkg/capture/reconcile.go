package capture

import (
	"context"
	"fmt"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
)

// reconcile derives the hardware state from the desired inputs. It runs
// under the transaction lock, once per transaction. Missing inputs defer
// reconciliation without error.
func (p *PersistentSession) reconcile(ctx context.Context) error {
	id, outputs, spec := p.identifier, p.outputs, p.spec
	if id == "" || spec == nil || outputs.Empty() {
		p.debugLog("reconcile deferred",
			"hasIdentifier", id != "",
			"hasSpec", spec != nil,
			"outputs", len(outputs))
		return nil
	}

	details, err := p.details.get(id)
	if err != nil {
		return fmt.Errorf("device details for %q: %w", id, err)
	}

	dev, err := p.resolveDevice(ctx, id)
	if err != nil {
		return err
	}
	sess, err := p.resolveSession(ctx, dev, outputs)
	if err != nil {
		return err
	}

	if !p.active {
		if err := sess.hw.Stop(); err != nil {
			p.repeat.Store(uint32(repeatNone))
			return &HardwareError{Op: OpStop, DeviceID: id, Err: err}
		}
		p.repeat.Store(uint32(repeatStopped))
		p.emitResource(eventlog.ResourceRepeating, eventlog.ActionStopped, id, sess.id, "")
		return nil
	}

	req, err := spec.Materialize(dev.hw, details, outputs)
	if err != nil {
		return fmt.Errorf("%w: materialize request: %w", ErrConfiguration, err)
	}
	if err := sess.hw.Submit(req); err != nil {
		p.repeat.Store(uint32(repeatNone))
		return &HardwareError{Op: OpSubmit, DeviceID: id, Err: err}
	}
	p.repeat.Store(uint32(repeatOn))
	p.debugLog("repeating request submitted", "deviceID", id, "template", req.Template, "fps", req.FPS)
	p.emitResource(eventlog.ResourceRepeating, eventlog.ActionSubmitted, id, sess.id, req.Template)
	return nil
}
