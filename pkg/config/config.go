package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/hardware"
	"github.com/persistcam/persistcam-go/pkg/recovery"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the desired state of one capture session plus the ambient
// settings of the tools.
type Config struct {
	Device    string            `yaml:"device"`
	Outputs   []hardware.Output `yaml:"outputs"`
	Repeating *RepeatingConfig  `yaml:"repeating,omitempty"`
	Active    bool              `yaml:"active"`

	Recovery RecoveryConfig `yaml:"recovery"`
	EventLog EventLogConfig `yaml:"event_log"`
	Journal  JournalConfig  `yaml:"journal"`
}

// RepeatingConfig describes the repeating request.
type RepeatingConfig struct {
	Template string            `yaml:"template"`
	FPS      int               `yaml:"fps,omitempty"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// RecoveryConfig configures the recovery supervisor.
type RecoveryConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`

	recovery.BackoffConfig `yaml:",inline"`
}

// EventLogConfig configures the CBOR lifecycle trace.
type EventLogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// JournalConfig configures the SQLite event journal.
type JournalConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoadError reports a config file that could not be loaded.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns a config with recovery enabled and nothing else set.
func Default() *Config {
	return &Config{
		Recovery: RecoveryConfig{
			Enabled:       true,
			BackoffConfig: recovery.DefaultBackoffConfig(),
		},
	}
}

// Parse parses and validates YAML. Unset fields keep their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: "validation failed", Cause: err}
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Outputs))
	for i, o := range c.Outputs {
		if o.Name == "" {
			return fmt.Errorf("%w: outputs[%d] has no name", ErrInvalid, i)
		}
		if seen[o.Name] {
			return fmt.Errorf("%w: duplicate output %q", ErrInvalid, o.Name)
		}
		seen[o.Name] = true
		if o.Width < 0 || o.Height < 0 {
			return fmt.Errorf("%w: output %q has a negative size", ErrInvalid, o.Name)
		}
	}

	if r := c.Repeating; r != nil {
		if r.Template == "" {
			return fmt.Errorf("%w: repeating.template is required", ErrInvalid)
		}
		if r.FPS < 0 {
			return fmt.Errorf("%w: repeating.fps must not be negative", ErrInvalid)
		}
	}

	if c.Recovery.MaxAttempts < 0 {
		return fmt.Errorf("%w: recovery.max_attempts must not be negative", ErrInvalid)
	}
	if c.Recovery.Jitter > 1 {
		return fmt.Errorf("%w: recovery.jitter must be at most 1", ErrInvalid)
	}
	return nil
}

// OutputSet returns the outputs as a hardware.OutputSet.
func (c *Config) OutputSet() hardware.OutputSet {
	return hardware.OutputSet(c.Outputs).Clone()
}

// Spec returns the repeating request spec, or nil if none is configured.
func (c *Config) Spec() hardware.RequestSpec {
	if c.Repeating == nil {
		return nil
	}
	return hardware.TemplateSpec{
		Template: c.Repeating.Template,
		FPS:      c.Repeating.FPS,
		Params:   c.Repeating.Params,
	}
}

// Apply sets the device, outputs, repeating spec and active flag on tx.
func (c *Config) Apply(tx *capture.Tx) error {
	if err := tx.SetIdentifier(hardware.Identifier(c.Device)); err != nil {
		return err
	}
	if err := tx.SetOutputs(c.OutputSet()); err != nil {
		return err
	}
	if err := tx.SetRepeatingSpec(c.Spec()); err != nil {
		return err
	}
	return tx.SetActive(c.Active)
}

// SupervisorConfig returns the recovery supervisor settings.
func (c *Config) SupervisorConfig() recovery.Config {
	return recovery.Config{
		Backoff:     c.Recovery.BackoffConfig,
		MaxAttempts: c.Recovery.MaxAttempts,
	}
}
