package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/config"
	"github.com/persistcam/persistcam-go/pkg/hardware"
	"github.com/persistcam/persistcam-go/pkg/hardware/sim"
)

const sample = `
device: "0"
outputs:
  - name: preview
    width: 1280
    height: 720
  - name: still
    width: 4032
    height: 3024
repeating:
  template: preview
  fps: 24
  params:
    stabilization: "on"
active: true
recovery:
  enabled: true
  initial: 250ms
  max: 5s
  max_attempts: 3
event_log:
  path: /tmp/trace.plog
journal:
  path: /tmp/journal.db
`

func TestParseSample(t *testing.T) {
	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "0", cfg.Device)
	require.Len(t, cfg.Outputs, 2)
	assert.Equal(t, hardware.Output{Name: "preview", Width: 1280, Height: 720}, cfg.Outputs[0])
	require.NotNil(t, cfg.Repeating)
	assert.Equal(t, "preview", cfg.Repeating.Template)
	assert.Equal(t, 24, cfg.Repeating.FPS)
	assert.Equal(t, "on", cfg.Repeating.Params["stabilization"])
	assert.True(t, cfg.Active)

	assert.True(t, cfg.Recovery.Enabled)
	assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Recovery.Initial)
	assert.Equal(t, 5*time.Second, cfg.Recovery.Max)
	// Unset fields keep their defaults.
	assert.Equal(t, 2.0, cfg.Recovery.Multiplier)

	assert.Equal(t, "/tmp/trace.plog", cfg.EventLog.Path)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal.Path)

	sc := cfg.SupervisorConfig()
	assert.Equal(t, 3, sc.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, sc.Backoff.Initial)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.Device)
	assert.Nil(t, cfg.Spec())
	assert.Empty(t, cfg.OutputSet())
	assert.True(t, cfg.Recovery.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unnamed output", "outputs: [{width: 10, height: 10}]"},
		{"duplicate output", "outputs: [{name: a}, {name: a}]"},
		{"negative size", "outputs: [{name: a, width: -1}]"},
		{"missing template", "repeating: {fps: 30}"},
		{"negative fps", "repeating: {template: preview, fps: -1}"},
		{"negative attempts", "recovery: {max_attempts: -1}"},
		{"jitter above one", "recovery: {jitter: 1.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalid)

			var le *config.LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, "validation failed", le.Message)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := config.Parse([]byte("outputs: [unterminated"))
	require.Error(t, err)

	var le *config.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "failed to parse YAML", le.Message)
	assert.NotErrorIs(t, err, config.ErrInvalid)
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.yaml")
		_, err := config.Load(path)
		require.Error(t, err)

		var le *config.LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, path, le.File)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("repeating: {fps: 1}"), 0o600))

		_, err := config.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), path)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "0", cfg.Device)
	})
}

func TestSpec(t *testing.T) {
	cfg, err := config.Parse([]byte("repeating: {template: still, fps: 5}"))
	require.NoError(t, err)

	spec, ok := cfg.Spec().(hardware.TemplateSpec)
	require.True(t, ok)
	assert.Equal(t, "still", spec.Template)
	assert.Equal(t, 5, spec.FPS)
}

func newSession(t *testing.T) (*capture.PersistentSession, *sim.Provider) {
	t.Helper()
	hw := sim.NewProvider(sim.DefaultDevices()...)
	ps, err := capture.New(capture.Config{Provider: hw, Details: hw})
	require.NoError(t, err)
	t.Cleanup(ps.Dispose)
	return ps, hw
}

func TestApply(t *testing.T) {
	ps, hw := newSession(t)

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)

	err = ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		return cfg.Apply(tx)
	})
	require.NoError(t, err)

	assert.True(t, ps.IsRunning())
	assert.True(t, hw.Repeating("0"))
	assert.Equal(t, 1, hw.Counts().Opens)
	assert.Equal(t, 1, hw.Counts().Submits)

	// Applying the same file again keeps the device and session and only
	// refreshes the repeating request.
	err = ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		return cfg.Apply(tx)
	})
	require.NoError(t, err)
	c := hw.Counts()
	assert.Equal(t, 1, c.Opens)
	assert.Equal(t, 1, c.Creates)
	assert.Equal(t, 0, c.Closes)
	assert.Equal(t, 0, c.SessionCloses)
	assert.Equal(t, 2, c.Submits)
	assert.True(t, ps.IsRunning())
}

func TestApplyOutsideTransaction(t *testing.T) {
	ps, _ := newSession(t)

	var leaked *capture.Tx
	require.NoError(t, ps.Transaction(context.Background(), func(_ context.Context, tx *capture.Tx) error {
		leaked = tx
		return nil
	}))

	cfg, err := config.Parse([]byte(sample))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Apply(leaked), capture.ErrLockContractViolation)
}
