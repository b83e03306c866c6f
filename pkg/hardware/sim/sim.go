package sim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/persistcam/persistcam-go/pkg/hardware"
)

// Simulation errors.
var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrDeviceInUse    = errors.New("device already open")
	ErrDeviceClosed   = errors.New("device closed")
	ErrSessionClosed  = errors.New("session closed")
	ErrCaptureAborted = errors.New("capture aborted")
	ErrDisconnected   = errors.New("device disconnected")
)

// Counts tallies the hardware calls issued against the provider.
type Counts struct {
	Opens         int
	Closes        int
	Creates       int
	SessionCloses int
	Submits       int
	Stops         int
	Captures      int
	Aborts        int
}

// Provider is an in-memory hardware.Provider and hardware.DetailsProvider.
// It is safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	known map[hardware.Identifier]hardware.Details
	open  map[hardware.Identifier]*Device

	counts      Counts
	lastRequest *hardware.Request
	requests    []hardware.Request

	failOpen      error
	failConfigure error
	failCapture   error

	hold     bool
	inFlight map[*pendingCapture]struct{}

	// CaptureLatency delays every one-shot capture.
	CaptureLatency time.Duration

	// Notifications run on their own goroutines. pending counts the ones
	// not yet delivered.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	pending    int
}

type pendingCapture struct {
	release chan struct{}
	abort   chan struct{}
}

// NewProvider creates a provider that knows the given devices.
func NewProvider(devices ...hardware.Details) *Provider {
	p := &Provider{
		known:    make(map[hardware.Identifier]hardware.Details),
		open:     make(map[hardware.Identifier]*Device),
		inFlight: make(map[*pendingCapture]struct{}),
	}
	p.notifyCond = sync.NewCond(&p.notifyMu)
	for _, d := range devices {
		p.known[d.ID] = d
	}
	return p
}

// DefaultDevices returns a back and a front camera.
func DefaultDevices() []hardware.Details {
	return []hardware.Details{
		{
			ID:                "0",
			Name:              "Back Camera",
			Facing:            "back",
			SensorOrientation: 90,
			MaxFPS:            60,
			Capabilities:      []string{"preview", "record", "still"},
		},
		{
			ID:                "1",
			Name:              "Front Camera",
			Facing:            "front",
			SensorOrientation: 270,
			MaxFPS:            30,
			Capabilities:      []string{"preview", "still"},
		},
	}
}

// AddDevice registers a device, e.g. to simulate hot-plug.
func (p *Provider) AddDevice(d hardware.Details) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[d.ID] = d
}

// DetailsFor implements hardware.DetailsProvider.
func (p *Provider) DetailsFor(id hardware.Identifier) (hardware.Details, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	d, ok := p.known[id]
	if !ok {
		return hardware.Details{}, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	return d, nil
}

// OpenDevice implements hardware.Provider.
func (p *Provider) OpenDevice(ctx context.Context, id hardware.Identifier, onInvalidated hardware.InvalidationFunc) (hardware.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Opens++

	if err := p.failOpen; err != nil {
		p.failOpen = nil
		return nil, err
	}
	if _, ok := p.known[id]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	if _, busy := p.open[id]; busy {
		return nil, fmt.Errorf("%w: %q", ErrDeviceInUse, id)
	}

	d := &Device{p: p, id: id, onInvalidated: onInvalidated}
	p.open[id] = d
	return d, nil
}

// Counts returns a snapshot of the call counters.
func (p *Provider) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts
}

// ResetCounts zeroes the call counters.
func (p *Provider) ResetCounts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts = Counts{}
}

// LastRequest returns the most recently submitted repeating request.
func (p *Provider) LastRequest() (hardware.Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRequest == nil {
		return hardware.Request{}, false
	}
	return *p.lastRequest, true
}

// IsOpen reports whether the device is currently open.
func (p *Provider) IsOpen(id hardware.Identifier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.open[id]
	return ok
}

// Repeating reports whether the open device has a session with an active
// repeating request.
func (p *Provider) Repeating(id hardware.Identifier) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.open[id]
	if !ok || d.session == nil {
		return false
	}
	return d.session.repeating != nil
}

// FailNextOpen makes the next OpenDevice call fail with err.
func (p *Provider) FailNextOpen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOpen = err
}

// FailNextConfigure makes the next CreateSession call fail with err.
func (p *Provider) FailNextConfigure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failConfigure = err
}

// FailNextCapture makes the next CaptureOnce call fail with err.
func (p *Provider) FailNextCapture(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCapture = err
}

// HoldCaptures keeps subsequent captures in flight until ReleaseCaptures
// or AbortInFlight.
func (p *Provider) HoldCaptures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = true
}

// ReleaseCaptures completes every held capture and stops holding.
func (p *Provider) ReleaseCaptures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hold = false
	for pc := range p.inFlight {
		close(pc.release)
		delete(p.inFlight, pc)
	}
}

// InFlight returns the number of held captures.
func (p *Provider) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// Disconnect simulates the device being unplugged. The device's
// invalidation callback runs on a separate goroutine; Disconnect returns
// after it completed.
func (p *Provider) Disconnect(id hardware.Identifier, cause error) error {
	p.mu.Lock()
	d, ok := p.open[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q is not open", ErrDeviceClosed, id)
	}
	delete(p.open, id)
	d.closed = true
	sess := d.session
	d.session = nil
	if sess != nil {
		sess.closed = true
		p.abortLocked()
	}
	p.mu.Unlock()

	if cause == nil {
		cause = ErrDisconnected
	}
	<-p.notify(d.onInvalidated, cause)
	return nil
}

// CloseSession simulates the system closing the session on the open
// device id. The session's callback runs on a separate goroutine;
// CloseSession returns after it completed.
func (p *Provider) CloseSession(id hardware.Identifier, cause error) error {
	p.mu.Lock()
	d, ok := p.open[id]
	if !ok || d.session == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: no session on %q", ErrSessionClosed, id)
	}
	sess := d.session
	d.session = nil
	sess.closed = true
	p.abortLocked()
	p.mu.Unlock()

	<-p.notify(sess.onInvalidated, cause)
	return nil
}

// WaitNotifications blocks until all pending notifications were delivered.
func (p *Provider) WaitNotifications() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	for p.pending > 0 {
		p.notifyCond.Wait()
	}
}

// notify delivers err to fn on a new goroutine. The returned channel is
// closed once fn returned.
func (p *Provider) notify(fn hardware.InvalidationFunc, err error) <-chan struct{} {
	done := make(chan struct{})
	if fn == nil {
		close(done)
		return done
	}

	p.notifyMu.Lock()
	p.pending++
	p.notifyMu.Unlock()

	go func() {
		defer func() {
			p.notifyMu.Lock()
			p.pending--
			if p.pending == 0 {
				p.notifyCond.Broadcast()
			}
			p.notifyMu.Unlock()
			close(done)
		}()
		fn(err)
	}()
	return done
}

// abortLocked fails all in-flight captures. Caller holds p.mu.
func (p *Provider) abortLocked() {
	for pc := range p.inFlight {
		close(pc.abort)
		delete(p.inFlight, pc)
	}
}

// Device is a simulated open device.
type Device struct {
	p             *Provider
	id            hardware.Identifier
	onInvalidated hardware.InvalidationFunc

	// guarded by p.mu
	closed  bool
	session *Session
}

// ID implements hardware.Device.
func (d *Device) ID() hardware.Identifier {
	return d.id
}

// CreateSession implements hardware.Device. A previous session on the
// device is closed by the hardware and its callback notified.
func (d *Device) CreateSession(ctx context.Context, outputs hardware.OutputSet, onInvalidated hardware.InvalidationFunc) (hardware.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := d.p
	p.mu.Lock()

	p.counts.Creates++

	if d.closed {
		p.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	if err := p.failConfigure; err != nil {
		p.failConfigure = nil
		p.mu.Unlock()
		return nil, err
	}
	if outputs.Empty() {
		p.mu.Unlock()
		return nil, errors.New("no outputs")
	}

	prev := d.session
	if prev != nil {
		prev.closed = true
		p.abortLocked()
	}

	s := &Session{p: p, device: d, outputs: outputs.Clone(), onInvalidated: onInvalidated}
	d.session = s
	p.mu.Unlock()

	if prev != nil {
		p.notify(prev.onInvalidated, nil)
	}
	return s, nil
}

// Close implements hardware.Device.
func (d *Device) Close() error {
	p := d.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Closes++
	if d.closed {
		return nil
	}
	d.closed = true
	if d.session != nil {
		d.session.closed = true
		d.session = nil
		p.abortLocked()
	}
	if p.open[d.id] == d {
		delete(p.open, d.id)
	}
	return nil
}

// Session is a simulated capture session.
type Session struct {
	p             *Provider
	device        *Device
	outputs       hardware.OutputSet
	onInvalidated hardware.InvalidationFunc

	// guarded by p.mu
	closed    bool
	repeating *hardware.Request
}

// Outputs returns the outputs the session was configured with.
func (s *Session) Outputs() hardware.OutputSet {
	return s.outputs.Clone()
}

// Submit implements hardware.Session.
func (s *Session) Submit(req hardware.Request) error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Submits++
	if s.closed {
		return ErrSessionClosed
	}
	s.repeating = &req
	p.lastRequest = &req
	p.requests = append(p.requests, req)
	return nil
}

// Stop implements hardware.Session.
func (s *Session) Stop() error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Stops++
	if s.closed {
		return ErrSessionClosed
	}
	s.repeating = nil
	return nil
}

// CaptureOnce implements hardware.Session.
func (s *Session) CaptureOnce(ctx context.Context, req hardware.Request, opts hardware.CaptureOptions) (hardware.CaptureResult, error) {
	p := s.p
	p.mu.Lock()
	p.counts.Captures++

	if s.closed {
		p.mu.Unlock()
		return hardware.CaptureResult{}, ErrSessionClosed
	}
	if err := p.failCapture; err != nil {
		p.failCapture = nil
		p.mu.Unlock()
		return hardware.CaptureResult{}, err
	}

	var pc *pendingCapture
	if p.hold {
		pc = &pendingCapture{release: make(chan struct{}), abort: make(chan struct{})}
		p.inFlight[pc] = struct{}{}
	}
	latency := p.CaptureLatency
	p.mu.Unlock()

	if pc != nil {
		select {
		case <-pc.release:
		case <-pc.abort:
			return hardware.CaptureResult{}, ErrCaptureAborted
		case <-ctx.Done():
			p.mu.Lock()
			delete(p.inFlight, pc)
			p.mu.Unlock()
			return hardware.CaptureResult{}, ctx.Err()
		}
	}
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return hardware.CaptureResult{}, ctx.Err()
		}
	}

	meta := map[string]string{
		"device":   string(s.device.id),
		"template": req.Template,
	}
	if opts.Flash != "" {
		meta["flash"] = opts.Flash
	}
	if opts.Quality > 0 {
		meta["quality"] = strconv.Itoa(opts.Quality)
	}
	return hardware.CaptureResult{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Metadata:  meta,
	}, nil
}

// AbortInFlight implements hardware.Session.
func (s *Session) AbortInFlight() error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.Aborts++
	p.abortLocked()
	return nil
}

// Close implements hardware.Session.
func (s *Session) Close() error {
	p := s.p
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts.SessionCloses++
	if s.closed {
		return nil
	}
	s.closed = true
	s.repeating = nil
	if s.device.session == s {
		s.device.session = nil
	}
	p.abortLocked()
	return nil
}

// Compile-time interface satisfaction checks.
var (
	_ hardware.Provider        = (*Provider)(nil)
	_ hardware.DetailsProvider = (*Provider)(nil)
	_ hardware.Device          = (*Device)(nil)
	_ hardware.Session         = (*Session)(nil)
)
