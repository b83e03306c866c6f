package capture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/capture/mocks"
	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
	"github.com/persistcam/persistcam-go/pkg/hardware/sim"
)

func TestNewRequiresCollaborators(t *testing.T) {
	hw := sim.NewProvider()

	_, err := capture.New(capture.Config{Details: hw})
	assert.ErrorIs(t, err, capture.ErrInvalidConfig)

	_, err = capture.New(capture.Config{Provider: hw})
	assert.ErrorIs(t, err, capture.ErrInvalidConfig)

	ps, err := capture.New(capture.Config{Provider: hw, Details: hw})
	require.NoError(t, err)
	assert.NotEmpty(t, ps.ID())
	assert.Equal(t, capture.StateNoDevice, ps.State())
	assert.False(t, ps.IsRunning())
}

func TestInitialConfigurationOpensOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)

	c := f.hw.Counts()
	assert.Equal(t, 1, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 1, c.Submits)
	assert.Equal(t, 0, c.Stops)

	req, ok := f.hw.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "preview", req.Template)
	assert.Equal(t, 30, req.FPS)
	assert.True(t, req.Targets.Equal(outputsS1))

	assert.True(t, f.ps.IsRunning())
	assert.Equal(t, capture.StateRepeating, f.ps.State())
	assert.True(t, f.hw.Repeating("0"))
}

func TestDeactivateStopsWithoutReopen(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	before := f.ps.Snapshot()
	f.hw.ResetCounts()

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetActive(false) }))

	assert.Equal(t, sim.Counts{Stops: 1}, f.hw.Counts())
	assert.Equal(t, capture.StateStopped, f.ps.State())
	assert.False(t, f.ps.IsRunning())

	after := f.ps.Snapshot()
	assert.Equal(t, before.DeviceHandle, after.DeviceHandle)
	assert.Equal(t, before.SessionHandle, after.SessionHandle)

	// Resume on the same session.
	f.hw.ResetCounts()
	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetActive(true) }))
	assert.Equal(t, sim.Counts{Submits: 1}, f.hw.Counts())
	assert.True(t, f.ps.IsRunning())
}

func TestDisconnectThenEmptyTransactionResumes(t *testing.T) {
	cb := mocks.NewMockCallback(t)
	f := newFixture(t, cb)
	f.configureBackCamera(t)

	cause := errors.New("usb unplugged")
	cb.EXPECT().OnError(mock.MatchedBy(func(err error) bool {
		var hwErr *capture.HardwareError
		return errors.As(err, &hwErr) &&
			hwErr.Op == capture.OpDisconnect &&
			hwErr.DeviceID == "0" &&
			errors.Is(err, cause) &&
			errors.Is(err, capture.ErrHardware)
	})).Once()

	require.NoError(t, f.hw.Disconnect("0", cause))

	assert.False(t, f.ps.IsRunning())
	assert.Equal(t, capture.StateNoDevice, f.ps.State())
	snap := f.ps.Snapshot()
	assert.Empty(t, snap.DeviceHandle)
	assert.Empty(t, snap.SessionHandle)
	assert.True(t, snap.Active, "desired active flag survives the disconnect")

	f.hw.ResetCounts()
	require.NoError(t, f.ps.Transaction(context.Background(), nil))

	c := f.hw.Counts()
	assert.Equal(t, 1, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 1, c.Submits)
	assert.True(t, f.ps.IsRunning())
}

func TestDisconnectClosesLostDevice(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	require.NoError(t, f.hw.Disconnect("0", nil))
	f.hw.WaitNotifications()

	c := f.hw.Counts()
	assert.Equal(t, 1, c.Closes)
	assert.Equal(t, 0, c.SessionCloses, "device close cascades to the session")
	assert.Len(t, f.events.Resources(eventlog.ResourceDevice, eventlog.ActionInvalidated), 1)
	assert.Len(t, f.events.Resources(eventlog.ResourceDevice, eventlog.ActionClosed), 1)

	// The lost device is not closed again on dispose.
	f.ps.Dispose()
	assert.Equal(t, 1, f.hw.Counts().Closes)
}

// invalidatingProvider reports every opened device as lost before
// OpenDevice returns.
type invalidatingProvider struct {
	hardware.Provider
}

func (p invalidatingProvider) OpenDevice(ctx context.Context, id hardware.Identifier, onInvalidated hardware.InvalidationFunc) (hardware.Device, error) {
	dev, err := p.Provider.OpenDevice(ctx, id, onInvalidated)
	if err == nil {
		onInvalidated(errors.New("lost during open"))
	}
	return dev, err
}

func TestDeviceLostDuringOpenIsClosed(t *testing.T) {
	hw := sim.NewProvider(sim.DefaultDevices()...)
	ps, err := capture.New(capture.Config{Provider: invalidatingProvider{hw}, Details: hw})
	require.NoError(t, err)
	t.Cleanup(ps.Dispose)

	err = ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		require.NoError(t, tx.SetIdentifier("0"))
		require.NoError(t, tx.SetOutputs(outputsS1))
		require.NoError(t, tx.SetRepeatingSpec(specR1))
		return tx.SetActive(true)
	})

	var hwErr *capture.HardwareError
	require.ErrorAs(t, err, &hwErr)
	assert.Equal(t, capture.OpOpen, hwErr.Op)
	assert.Equal(t, 1, hw.Counts().Closes)
	assert.False(t, hw.IsOpen("0"))
	assert.Empty(t, ps.Snapshot().DeviceHandle)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	for i := 0; i < 2; i++ {
		require.NoError(t, f.ps.Transaction(context.Background(), nil))
	}

	c := f.hw.Counts()
	assert.Equal(t, 0, c.Opens)
	assert.Equal(t, 0, c.Creates)
	assert.Equal(t, 0, c.Closes)
	assert.Equal(t, 0, c.SessionCloses)
}

func TestTransactionBatchesChanges(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	err := f.apply(t, func(tx *capture.Tx) error {
		require.NoError(t, tx.SetIdentifier("1"))
		require.NoError(t, tx.SetOutputs(outputsS2))
		require.NoError(t, tx.SetOutputs(outputsS1))
		require.NoError(t, tx.SetOutputs(outputsS2))
		return tx.SetRepeatingSpec(hardware.TemplateSpec{Template: "still", FPS: 15})
	})
	require.NoError(t, err)

	c := f.hw.Counts()
	assert.Equal(t, 1, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 1, c.Closes, "previous device closed once")
	assert.False(t, f.hw.IsOpen("0"))
	assert.True(t, f.hw.IsOpen("1"))

	req, ok := f.hw.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "still", req.Template)
	assert.True(t, req.Targets.Equal(outputsS2))
}

func TestSetIdentifierUnchangedIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetIdentifier("0") }))

	c := f.hw.Counts()
	assert.Equal(t, 0, c.Closes)
	assert.Equal(t, 0, c.Opens)
	assert.Equal(t, 0, c.Aborts)
}

func TestOutputsChangedToNonEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	oldSession := f.ps.Snapshot().SessionHandle
	f.hw.ResetCounts()

	f.hw.HoldCaptures()
	errc := make(chan error, 1)
	go func() {
		_, err := f.ps.Capture(context.Background(), hardware.Request{Template: "still"}, hardware.CaptureOptions{})
		errc <- err
	}()
	require.Eventually(t, func() bool { return f.hw.InFlight() == 1 }, defaultWait, tick)

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetOutputs(outputsS2) }))
	f.hw.WaitNotifications()

	err := <-errc
	assert.ErrorIs(t, err, capture.ErrNotReady)

	c := f.hw.Counts()
	assert.GreaterOrEqual(t, c.Aborts, 1)
	assert.Equal(t, 0, c.SessionCloses, "surfaces are not closed")
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 0, c.Opens)

	assert.Len(t, f.events.Resources(eventlog.ResourceSession, eventlog.ActionDiscarded), 1)
	assert.Len(t, f.events.Resources(eventlog.ResourceSession, eventlog.ActionStaleRejected), 1,
		"the replaced session's close notification is rejected")
	assert.NotEqual(t, oldSession, f.ps.Snapshot().SessionHandle)
	assert.True(t, f.ps.IsRunning())
}

func TestOutputsChangedToEmpty(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetOutputs(nil) }))

	assert.Equal(t, 1, f.hw.Counts().SessionCloses)
	assert.Equal(t, capture.StateDeviceOpen, f.ps.State())
	assert.False(t, f.ps.IsRunning())

	// Reconciliation is deferred until outputs are repopulated.
	f.hw.ResetCounts()
	require.NoError(t, f.ps.Transaction(context.Background(), nil))
	assert.Equal(t, sim.Counts{}, f.hw.Counts())

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetOutputs(outputsS1) }))
	c := f.hw.Counts()
	assert.Equal(t, 0, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 1, c.Submits)
}

func TestSpecChangeResubmitsWithoutReconfigure(t *testing.T) {
	f := newFixture(t, nil)
	f.configureBackCamera(t)
	f.hw.ResetCounts()

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error {
		return tx.SetRepeatingSpec(hardware.TemplateSpec{Template: "record", FPS: 24})
	}))

	assert.Equal(t, sim.Counts{Submits: 1}, f.hw.Counts())
	req, _ := f.hw.LastRequest()
	assert.Equal(t, 24, req.FPS)
}

func TestStaleDeviceNotificationRejected(t *testing.T) {
	hw := sim.NewProvider(sim.DefaultDevices()...)
	rec := &recordingProvider{Provider: hw}
	events := eventlog.NewRecorder()
	cb := mocks.NewMockCallback(t)

	ps, err := capture.New(capture.Config{Provider: rec, Details: hw, Callback: cb, EventLogger: events})
	require.NoError(t, err)
	t.Cleanup(ps.Dispose)
	f := &fixture{ps: ps, hw: hw, events: events}

	f.configureBackCamera(t)
	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetIdentifier("1") }))
	current := ps.Snapshot()
	require.NotEmpty(t, current.DeviceHandle)

	// The first device's notification arrives late.
	rec.callback(0)(errors.New("late disconnect"))

	assert.Equal(t, current.DeviceHandle, ps.Snapshot().DeviceHandle)
	assert.Equal(t, current.SessionHandle, ps.Snapshot().SessionHandle)
	assert.True(t, ps.IsRunning())
	assert.Len(t, events.Resources(eventlog.ResourceDevice, eventlog.ActionStaleRejected), 1)
}

func TestStaleNotificationAfterReopenSameIdentifier(t *testing.T) {
	hw := sim.NewProvider(sim.DefaultDevices()...)
	rec := &recordingProvider{Provider: hw}
	cb := mocks.NewMockCallback(t)
	cb.EXPECT().OnError(mock.Anything).Once()

	ps, err := capture.New(capture.Config{Provider: rec, Details: hw, Callback: cb})
	require.NoError(t, err)
	t.Cleanup(ps.Dispose)
	f := &fixture{ps: ps, hw: hw}

	f.configureBackCamera(t)
	require.NoError(t, hw.Disconnect("0", nil))
	require.NoError(t, ps.Transaction(context.Background(), nil))
	require.True(t, ps.IsRunning())

	// A duplicate notification for the first handle must not clear the
	// reopened device, nor reach the callback again.
	rec.callback(0)(nil)

	assert.True(t, ps.IsRunning())
	assert.Equal(t, capture.StateRepeating, ps.State())
}

func TestSessionClosedBySystem(t *testing.T) {
	cb := &callbackRecorder{}
	f := newFixture(t, cb)
	f.configureBackCamera(t)

	require.NoError(t, f.hw.CloseSession("0", errors.New("camera service restarted")))

	assert.Equal(t, capture.StateDeviceOpen, f.ps.State())
	assert.False(t, f.ps.IsRunning())
	errs, losts := cb.counts()
	assert.Equal(t, 0, errs, "session loss is not a device-level error")
	assert.Equal(t, 1, losts)

	f.hw.ResetCounts()
	require.NoError(t, f.ps.Transaction(context.Background(), nil))
	c := f.hw.Counts()
	assert.Equal(t, 0, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 1, c.Submits)
	assert.True(t, f.ps.IsRunning())
}

func TestPartialInputsDeferReconcile(t *testing.T) {
	f := newFixture(t, nil)

	steps := []func(tx *capture.Tx) error{
		func(tx *capture.Tx) error { return tx.SetIdentifier("0") },
		func(tx *capture.Tx) error { return tx.SetActive(true) },
		func(tx *capture.Tx) error { return tx.SetOutputs(outputsS1) },
	}
	for _, step := range steps {
		require.NoError(t, f.apply(t, step))
		assert.Equal(t, sim.Counts{}, f.hw.Counts())
		assert.Equal(t, capture.StateNoDevice, f.ps.State())
	}

	require.NoError(t, f.apply(t, func(tx *capture.Tx) error { return tx.SetRepeatingSpec(specR1) }))
	assert.True(t, f.ps.IsRunning())
}

func TestInactiveConfigurationStopsRepeating(t *testing.T) {
	f := newFixture(t, nil)

	err := f.apply(t, func(tx *capture.Tx) error {
		require.NoError(t, tx.SetIdentifier("0"))
		require.NoError(t, tx.SetOutputs(outputsS1))
		return tx.SetRepeatingSpec(specR1)
	})
	require.NoError(t, err)

	assert.Equal(t, capture.StateStopped, f.ps.State())
	assert.Equal(t, 0, f.hw.Counts().Submits)

	_, err = f.ps.Capture(context.Background(), hardware.Request{Template: "still"}, hardware.CaptureOptions{})
	assert.NoError(t, err, "captures work on a configured, stopped session")
}
