package recovery

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/persistcam/persistcam-go/pkg/capture"
)

// DefaultAttemptTimeout bounds a single recovery transaction.
const DefaultAttemptTimeout = 10 * time.Second

// Supervisor errors.
var (
	ErrNotBound = errors.New("supervisor not bound to a session")
	ErrClosed   = errors.New("supervisor closed")
)

// State represents the supervisor state.
type State uint8

const (
	// StateIdle - nothing to recover.
	StateIdle State = iota

	// StateRecovering - recovery attempts are scheduled.
	StateRecovering

	// StateGaveUp - MaxAttempts was reached without success.
	StateGaveUp

	// StateClosed - the supervisor has been closed.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecovering:
		return "RECOVERING"
	case StateGaveUp:
		return "GAVE_UP"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Transactor runs configuration transactions. *capture.PersistentSession
// implements it.
type Transactor interface {
	Transaction(ctx context.Context, mutate func(ctx context.Context, tx *capture.Tx) error) error
}

// Config configures a Supervisor.
type Config struct {
	Backoff BackoffConfig

	// MaxAttempts stops recovery after this many failed attempts.
	// 0 means unlimited.
	MaxAttempts int

	// AttemptTimeout bounds each transaction. Defaults to DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// Downstream receives every error before recovery is scheduled (optional).
	Downstream capture.Callback

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Supervisor implements capture.Callback and re-runs empty transactions
// after hardware loss until the session is restored.
type Supervisor struct {
	mu sync.RWMutex

	state      State
	session    Transactor
	backoff    *Backoff
	config     Config
	lastErr    error
	recoveries int

	// gen counts triggers so a success does not swallow a newer loss.
	gen uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	triggerCh chan struct{}

	onRecovering func(attempt int, delay time.Duration, cause error)
	onRecovered  func(attempts int)
	onGaveUp     func(err error)
}

// NewSupervisor creates a supervisor. Bind it to a session and call Start.
func NewSupervisor(config Config) *Supervisor {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultAttemptTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Supervisor{
		state:     StateIdle,
		backoff:   NewBackoffWithConfig(config.Backoff),
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		triggerCh: make(chan struct{}, 1),
	}
}

// Bind sets the session to recover. The supervisor is usually passed as the
// session's Callback, so binding happens after the session was created.
func (s *Supervisor) Bind(session Transactor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Start starts the background recovery loop.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Close stops the recovery loop and waits for it to exit.
func (s *Supervisor) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// State returns the current supervisor state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the most recent error that triggered or failed recovery.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Recoveries returns the number of successful recoveries.
func (s *Supervisor) Recoveries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recoveries
}

// OnError implements capture.Callback.
func (s *Supervisor) OnError(err error) {
	if s.config.Downstream != nil {
		s.config.Downstream.OnError(err)
	}
	s.trigger(err)
}

// OnSessionLost implements capture.SessionLostHandler.
func (s *Supervisor) OnSessionLost(err error) {
	if h, ok := s.config.Downstream.(capture.SessionLostHandler); ok {
		h.OnSessionLost(err)
	}
	s.trigger(err)
}

// Trigger schedules recovery as if the hardware had reported err.
func (s *Supervisor) Trigger(err error) {
	s.trigger(err)
}

func (s *Supervisor) trigger(err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	s.state = StateRecovering
	s.gen++
	s.mu.Unlock()

	select {
	case s.triggerCh <- struct{}{}:
	default:
		// Already pending
	}
}

// OnRecovering sets a callback invoked before each delayed attempt.
func (s *Supervisor) OnRecovering(fn func(attempt int, delay time.Duration, cause error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecovering = fn
}

// OnRecovered sets a callback invoked after a successful attempt.
func (s *Supervisor) OnRecovered(fn func(attempts int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRecovered = fn
}

// OnGaveUp sets a callback invoked when MaxAttempts is exhausted.
func (s *Supervisor) OnGaveUp(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGaveUp = fn
}

func (s *Supervisor) loop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.triggerCh:
			s.attemptRecovery()
		}
	}
}

// attemptRecovery retries with backoff until a transaction succeeds, the session is
// disposed, attempts run out or the supervisor closes.
func (s *Supervisor) attemptRecovery() {
	for {
		s.mu.RLock()
		state := s.state
		session := s.session
		cause := s.lastErr
		gen := s.gen
		onRecovering := s.onRecovering
		s.mu.RUnlock()

		if state != StateRecovering {
			return
		}
		if session == nil {
			s.finish(StateIdle, ErrNotBound)
			return
		}

		if limit := s.config.MaxAttempts; limit > 0 && s.backoff.Attempts() >= limit {
			s.giveUp(cause)
			return
		}

		delay := s.backoff.Next()
		attempt := s.backoff.Attempts()
		if onRecovering != nil {
			onRecovering(attempt, delay, cause)
		}
		s.debugLog("recovery scheduled", "attempt", attempt, "delay", delay, "cause", cause)

		timer := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.config.AttemptTimeout)
		err := session.Transaction(ctx, nil)
		cancel()

		switch {
		case err == nil:
			s.backoff.Reset()
			s.mu.Lock()
			s.recoveries++
			onRecovered := s.onRecovered
			retrigger := s.gen != gen
			if !retrigger && s.state == StateRecovering {
				s.state = StateIdle
			}
			s.mu.Unlock()
			s.debugLog("recovered", "attempts", attempt)
			if onRecovered != nil {
				onRecovered(attempt)
			}
			if retrigger {
				continue
			}
			return
		case errors.Is(err, capture.ErrDisposed):
			s.finish(StateIdle, err)
			return
		default:
			s.debugLog("recovery attempt failed", "attempt", attempt, "error", err)
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}
}

func (s *Supervisor) finish(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
	if err != nil {
		s.lastErr = err
	}
}

func (s *Supervisor) giveUp(err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateGaveUp
	onGaveUp := s.onGaveUp
	s.mu.Unlock()

	s.backoff.Reset()
	if s.config.Logger != nil {
		s.config.Logger.Warn("recovery gave up", "attempts", s.config.MaxAttempts, "error", err)
	}
	if onGaveUp != nil {
		onGaveUp(err)
	}
}

// debugLog logs a debug message if logging is enabled.
func (s *Supervisor) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ capture.Callback           = (*Supervisor)(nil)
	_ capture.SessionLostHandler = (*Supervisor)(nil)
	_ Transactor                 = (*capture.PersistentSession)(nil)
)
