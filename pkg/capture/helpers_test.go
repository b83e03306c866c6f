package capture_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
	"github.com/persistcam/persistcam-go/pkg/hardware/sim"
)

const (
	defaultWait = 2 * time.Second
	tick        = time.Millisecond
)

var (
	outputsS1 = hardware.OutputSet{{Name: "s1", Width: 1920, Height: 1080}}
	outputsS2 = hardware.OutputSet{{Name: "s2", Width: 640, Height: 480}}
	specR1    = hardware.TemplateSpec{Template: "preview", FPS: 30}
)

type fixture struct {
	ps     *capture.PersistentSession
	hw     *sim.Provider
	events *eventlog.Recorder
}

// newFixture builds a session over the simulated back and front cameras.
func newFixture(t *testing.T, callback capture.Callback) *fixture {
	t.Helper()

	hw := sim.NewProvider(sim.DefaultDevices()...)
	events := eventlog.NewRecorder()
	ps, err := capture.New(capture.Config{
		Provider:    hw,
		Details:     hw,
		Callback:    callback,
		EventLogger: events,
	})
	require.NoError(t, err)
	t.Cleanup(ps.Dispose)

	return &fixture{ps: ps, hw: hw, events: events}
}

// configureBackCamera configures device "0" with outputs [s1], spec r1, active.
func (f *fixture) configureBackCamera(t *testing.T) {
	t.Helper()
	err := f.ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		require.NoError(t, tx.SetIdentifier("0"))
		require.NoError(t, tx.SetOutputs(outputsS1))
		require.NoError(t, tx.SetRepeatingSpec(specR1))
		return tx.SetActive(true)
	})
	require.NoError(t, err)
}

func (f *fixture) apply(t *testing.T, mutate func(tx *capture.Tx) error) error {
	t.Helper()
	return f.ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		return mutate(tx)
	})
}

// recordingProvider remembers every device invalidation callback it handed
// to the hardware so tests can fire stale notifications.
type recordingProvider struct {
	hardware.Provider

	mu        sync.Mutex
	callbacks []hardware.InvalidationFunc
}

func (r *recordingProvider) OpenDevice(ctx context.Context, id hardware.Identifier, onInvalidated hardware.InvalidationFunc) (hardware.Device, error) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, onInvalidated)
	r.mu.Unlock()
	return r.Provider.OpenDevice(ctx, id, onInvalidated)
}

func (r *recordingProvider) callback(i int) hardware.InvalidationFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callbacks[i]
}

// callbackRecorder records device errors and session losses.
type callbackRecorder struct {
	mu           sync.Mutex
	errors       []error
	sessionLosts []error
}

func (c *callbackRecorder) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

func (c *callbackRecorder) OnSessionLost(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionLosts = append(c.sessionLosts, err)
}

func (c *callbackRecorder) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors), len(c.sessionLosts)
}

// stateRecorder records observed transitions.
type stateRecorder struct {
	mu          sync.Mutex
	transitions [][2]capture.State
}

func (s *stateRecorder) observe(old, new capture.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, [2]capture.State{old, new})
}

func (s *stateRecorder) get() [][2]capture.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][2]capture.State, len(s.transitions))
	copy(out, s.transitions)
	return out
}
