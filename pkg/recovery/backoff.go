package recovery

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Defaults for BackoffConfig.
const (
	InitialBackoff    = 500 * time.Millisecond
	MaxBackoff        = 30 * time.Second
	BackoffMultiplier = 2.0
	JitterFactor      = 0.25
)

// BackoffConfig shapes the delays between recovery attempts. The base delay
// of attempt n (zero-based) is Initial * Multiplier^n, capped at Max. Up to
// Jitter times the base delay is added on top.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// DefaultBackoffConfig returns the default parameters.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

// normalized replaces unusable values with defaults. A Max below Initial is
// raised to Initial, a negative Jitter disables jitter.
func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	c.Max = max(c.Max, c.Initial)
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	c.Jitter = max(c.Jitter, 0)
	return c
}

// Delay returns the base delay of the zero-based attempt, without jitter.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	d := float64(c.Initial) * math.Pow(c.Multiplier, float64(attempt))
	if d >= float64(c.Max) {
		return c.Max
	}
	return time.Duration(d)
}

// Backoff counts recovery attempts and hands out the delay for the next one.
// It is safe for concurrent use.
type Backoff struct {
	config BackoffConfig

	mu       sync.Mutex
	attempts int
}

// NewBackoff creates a Backoff with the default parameters.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig creates a Backoff. Zero values take the defaults.
func NewBackoffWithConfig(config BackoffConfig) *Backoff {
	return &Backoff{config: config.normalized()}
}

// Next returns the jittered delay for the upcoming attempt and counts it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	d := b.config.Delay(b.attempts)
	b.attempts++
	b.mu.Unlock()

	if b.config.Jitter > 0 {
		d += time.Duration(float64(d) * b.config.Jitter * rand.Float64())
	}
	return d
}

// Reset starts over from the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay Next will use.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config.Delay(b.attempts)
}
