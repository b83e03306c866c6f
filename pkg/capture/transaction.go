package capture

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// txKey marks a context as running inside a transaction of one session.
type txKey struct {
	p *PersistentSession
}

// Tx is the mutation handle of one transaction. It is only valid until the
// mutation function passed to Transaction returns.
type Tx struct {
	p       *PersistentSession
	seq     uint64
	done    atomic.Bool
	changes []string
}

// Transaction runs mutate while holding the session's transaction lock and,
// if mutate succeeds, reconciles the hardware once with the new desired
// state. A nil mutate runs an empty transaction, which only reconciles.
//
// The lock is FIFO and not reentrant: calling Transaction with a context
// derived from a running transaction of the same session returns
// ErrReentrantTransaction. Waiting for the lock honours ctx.
//
// When mutate fails the reconciler is skipped and the error returned. Inputs
// set before the failure stay as desired state for the next transaction.
func (p *PersistentSession) Transaction(ctx context.Context, mutate func(ctx context.Context, tx *Tx) error) error {
	if ctx.Value(txKey{p}) != nil {
		return ErrReentrantTransaction
	}
	if p.disposed.Load() {
		return ErrDisposed
	}

	if err := p.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.lock.Release(1)

	if p.disposed.Load() {
		return ErrDisposed
	}

	tx := &Tx{p: p, seq: p.txSeq.Add(1)}
	p.activeTx.Store(tx)
	defer func() {
		tx.done.Store(true)
		p.activeTx.CompareAndSwap(tx, nil)
	}()

	start := time.Now()
	p.emitTx(tx, eventlog.PhaseBegin, 0, nil)

	if mutate != nil {
		if err := mutate(context.WithValue(ctx, txKey{p}, tx), tx); err != nil {
			p.debugLog("transaction mutation failed", "tx", tx.seq, "error", err)
			p.emitTx(tx, eventlog.PhaseAbort, time.Since(start), err)
			p.notifyStateChange("mutation failed")
			return err
		}
	}
	// Setters are rejected from here on.
	tx.done.Store(true)

	err := p.reconcile(ctx)
	if err != nil {
		p.debugLog("reconcile failed", "tx", tx.seq, "error", err)
		p.emitTx(tx, eventlog.PhaseAbort, time.Since(start), err)
	} else {
		p.emitTx(tx, eventlog.PhaseCommit, time.Since(start), nil)
	}
	p.notifyStateChange("reconcile")
	return err
}

func (p *PersistentSession) emitTx(tx *Tx, phase eventlog.TransactionPhase, d time.Duration, err error) {
	ev := &eventlog.TransactionEvent{
		Seq:      tx.seq,
		Phase:    phase,
		Duration: d,
	}
	if phase != eventlog.PhaseBegin {
		ev.Changes = tx.changes
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.emit(eventlog.Event{
		Category:    eventlog.CategoryTransaction,
		DeviceID:    string(p.identifier),
		Transaction: ev,
	})
}

// owner returns the session if tx is the transaction currently holding the lock.
func (t *Tx) owner() (*PersistentSession, error) {
	if t == nil || t.done.Load() || t.p.activeTx.Load() != t {
		return nil, ErrLockContractViolation
	}
	return t.p, nil
}

// SetIdentifier selects the device. On change the owned session is discarded
// (in-flight captures aborted) and the owned device closed.
func (t *Tx) SetIdentifier(id hardware.Identifier) error {
	p, err := t.owner()
	if err != nil {
		return err
	}
	if id == p.identifier {
		return nil
	}

	p.discardSession("identifier changed", false)
	p.closeDevice("identifier changed")
	p.repeat.Store(uint32(repeatNone))

	p.setDesired(func() { p.identifier = id })
	t.changes = append(t.changes, "identifier")
	return nil
}

// SetOutputs sets the output targets, compared by value. On change the owned
// session is dropped: with new non-empty outputs only its in-flight captures
// are aborted so its surfaces can be reused; with empty outputs it is closed.
func (t *Tx) SetOutputs(outputs hardware.OutputSet) error {
	p, err := t.owner()
	if err != nil {
		return err
	}
	if outputs.Equal(p.outputs) {
		return nil
	}

	if outputs.Empty() {
		p.discardSession("outputs cleared", true)
	} else {
		p.discardSession("outputs changed", false)
	}
	p.repeat.Store(uint32(repeatNone))

	outputs = outputs.Clone()
	p.setDesired(func() { p.outputs = outputs })
	t.changes = append(t.changes, "outputs")
	return nil
}

// SetRepeatingSpec sets the repeating request spec. It takes effect at
// reconciliation.
func (t *Tx) SetRepeatingSpec(spec hardware.RequestSpec) error {
	p, err := t.owner()
	if err != nil {
		return err
	}
	if hardware.SpecsEqual(spec, p.spec) {
		return nil
	}

	p.setDesired(func() { p.spec = spec })
	t.changes = append(t.changes, "spec")
	return nil
}

// SetActive sets whether the repeating request should run. It takes effect
// at reconciliation.
func (t *Tx) SetActive(active bool) error {
	p, err := t.owner()
	if err != nil {
		return err
	}
	if active == p.active {
		return nil
	}

	p.setDesired(func() { p.active = active })
	t.changes = append(t.changes, "active")
	return nil
}

// Seq returns the transaction's sequence number, starting at 1.
func (t *Tx) Seq() uint64 {
	return t.seq
}
