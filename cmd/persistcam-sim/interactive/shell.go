// Package interactive provides the command-line interface of
// persistcam-sim.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware"
	"github.com/persistcam/persistcam-go/pkg/hardware/sim"
	"github.com/persistcam/persistcam-go/pkg/recovery"
)

// DefaultCaptureTimeout bounds the capture command.
const DefaultCaptureTimeout = 5 * time.Second

// Config wires the shell to a session and its simulated hardware.
type Config struct {
	Session  *capture.PersistentSession
	Hardware *sim.Provider

	// Supervisor is shown by status (optional).
	Supervisor *recovery.Supervisor

	// Events backs the events command (optional).
	Events *eventlog.Recorder
}

// staged is a setter call waiting for commit.
type staged struct {
	desc  string
	apply func(tx *capture.Tx) error
}

// Shell handles interactive mode for persistcam-sim.
type Shell struct {
	config Config
	rl     *readline.Instance
	out    io.Writer

	staged         []staged
	captureTimeout time.Duration
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("device"),
	readline.PcItem("outputs"),
	readline.PcItem("template", readline.PcItem("preview"), readline.PcItem("record"), readline.PcItem("still"), readline.PcItem("none")),
	readline.PcItem("active", readline.PcItem("on"), readline.PcItem("off")),
	readline.PcItem("pending"),
	readline.PcItem("discard"),
	readline.PcItem("commit"),
	readline.PcItem("apply"),
	readline.PcItem("capture"),
	readline.PcItem("disconnect"),
	readline.PcItem("close-session"),
	readline.PcItem("status"),
	readline.PcItem("events"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

// New creates a shell reading from the terminal.
func New(config Config) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "camera> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(config, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(config Config, out io.Writer) *Shell {
	return &Shell{
		config:         config,
		out:            out,
		captureTimeout: DefaultCaptureTimeout,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	if s.rl != nil {
		return s.rl.Stdout()
	}
	return s.out
}

// Stderr returns a writer that properly coordinates with the readline input.
func (s *Shell) Stderr() io.Writer {
	if s.rl != nil {
		return s.rl.Stderr()
	}
	return s.out
}

// PrintStateChange prints a session state transition. Register it with
// PersistentSession.OnStateChange.
func (s *Shell) PrintStateChange(old, new capture.State) {
	fmt.Fprintf(s.out, "[STATE] %s -> %s\n", old, new)
}

// Run starts the interactive command loop. It calls cancel when the user
// exits.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) error {
	defer s.rl.Close()

	// Readline blocks; closing it unblocks the loop on shutdown.
	go func() {
		<-ctx.Done()
		s.rl.Close()
	}()

	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(s.out, "Exiting...")
			}
			cancel()
			return nil
		}

		if s.Execute(ctx, line) {
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "device", "dev":
		s.cmdDevice(args)
	case "outputs", "out":
		s.cmdOutputs(args)
	case "template", "tpl":
		s.cmdTemplate(args)
	case "active":
		s.cmdActive(args)
	case "pending":
		s.cmdPending()
	case "discard":
		s.staged = nil
		fmt.Fprintln(s.out, "Staged changes discarded")
	case "commit", "c":
		s.cmdCommit(ctx)
	case "apply":
		s.cmdApply(ctx)
	case "capture", "cap":
		s.cmdCapture(ctx, args)
	case "disconnect":
		s.cmdDisconnect(args)
	case "close-session":
		s.cmdCloseSession(args)
	case "status", "s":
		s.cmdStatus()
	case "events", "ev":
		s.cmdEvents(args)
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Camera Session Commands:
  Desired state (staged until commit):
    device <id>               - Select the camera device
    outputs [name[:WxH]]...   - Set the output surfaces (none clears them)
    template <name> [fps]     - Set the repeating request ("none" clears it)
    active on|off             - Start or stop repeating
    pending                   - List staged changes
    discard                   - Drop staged changes

  Transactions:
    commit                    - Apply staged changes in one transaction
    apply                     - Run an empty transaction (re-reconcile)

  Capture:
    capture [template] [quality] - Take a one-shot capture

  Hardware simulation:
    disconnect [reason]       - Unplug the current device
    close-session [reason]    - Let the system close the current session

  Inspection:
    status                    - Show session, hardware and recovery state
    events [n]                - Show the last n lifecycle events (default 20)

  help, exit`)
}

func (s *Shell) stage(desc string, apply func(tx *capture.Tx) error) {
	s.staged = append(s.staged, staged{desc: desc, apply: apply})
	fmt.Fprintf(s.out, "Staged: %s (%d pending, 'commit' to apply)\n", desc, len(s.staged))
}

func (s *Shell) cmdDevice(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: device <id>")
		return
	}
	id := hardware.Identifier(args[0])
	s.stage("device "+args[0], func(tx *capture.Tx) error {
		return tx.SetIdentifier(id)
	})
}

func (s *Shell) cmdOutputs(args []string) {
	outputs, err := ParseOutputs(args)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.stage("outputs "+outputs.String(), func(tx *capture.Tx) error {
		return tx.SetOutputs(outputs)
	})
}

func (s *Shell) cmdTemplate(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(s.out, "Usage: template <name> [fps]")
		return
	}
	if strings.EqualFold(args[0], "none") {
		s.stage("template none", func(tx *capture.Tx) error {
			return tx.SetRepeatingSpec(nil)
		})
		return
	}

	spec := hardware.TemplateSpec{Template: args[0]}
	if len(args) == 2 {
		fps, err := strconv.Atoi(args[1])
		if err != nil || fps < 0 {
			fmt.Fprintf(s.out, "Error: invalid fps %q\n", args[1])
			return
		}
		spec.FPS = fps
	}
	s.stage("template "+describeSpec(spec), func(tx *capture.Tx) error {
		return tx.SetRepeatingSpec(spec)
	})
}

func (s *Shell) cmdActive(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: active on|off")
		return
	}
	var active bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		active = true
	case "off", "false", "0":
	default:
		fmt.Fprintf(s.out, "Error: expected on or off, got %q\n", args[0])
		return
	}
	s.stage(fmt.Sprintf("active %t", active), func(tx *capture.Tx) error {
		return tx.SetActive(active)
	})
}

func (s *Shell) cmdPending() {
	if len(s.staged) == 0 {
		fmt.Fprintln(s.out, "No staged changes")
		return
	}
	for i, c := range s.staged {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, c.desc)
	}
}

func (s *Shell) cmdCommit(ctx context.Context) {
	changes := s.staged
	s.staged = nil

	err := s.config.Session.Transaction(ctx, func(_ context.Context, tx *capture.Tx) error {
		for _, c := range changes {
			if err := c.apply(tx); err != nil {
				return fmt.Errorf("%s: %w", c.desc, err)
			}
		}
		return nil
	})
	s.report("commit", len(changes), err)
}

func (s *Shell) cmdApply(ctx context.Context) {
	err := s.config.Session.Transaction(ctx, func(context.Context, *capture.Tx) error {
		return nil
	})
	s.report("apply", 0, err)
}

func (s *Shell) report(op string, changes int, err error) {
	if err != nil {
		fmt.Fprintf(s.out, "%s failed: %v\n", op, err)
		var hwErr *capture.HardwareError
		if errors.As(err, &hwErr) {
			fmt.Fprintf(s.out, "  hardware %s on device %q\n", hwErr.Op, hwErr.DeviceID)
		}
		return
	}
	fmt.Fprintf(s.out, "%s ok (%d changes), state %s, running %t\n",
		op, changes, s.config.Session.State(), s.config.Session.IsRunning())
}

func (s *Shell) cmdCapture(ctx context.Context, args []string) {
	req := hardware.Request{Template: "still"}
	var opts hardware.CaptureOptions
	if len(args) > 0 {
		req.Template = args[0]
	}
	if len(args) > 1 {
		q, err := strconv.Atoi(args[1])
		if err != nil || q < 0 || q > 100 {
			fmt.Fprintf(s.out, "Error: quality must be 0-100, got %q\n", args[1])
			return
		}
		opts.Quality = q
	}
	req.Targets = s.config.Session.Snapshot().Outputs

	ctx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	res, err := s.config.Session.Capture(ctx, req, opts)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrNotReady):
			fmt.Fprintf(s.out, "Capture rejected: %v\n", err)
		default:
			fmt.Fprintf(s.out, "Capture failed: %v\n", err)
		}
		return
	}

	fmt.Fprintf(s.out, "Captured %s at %s\n", res.ID, res.Timestamp.Format(time.RFC3339Nano))
	for k, v := range res.Metadata {
		fmt.Fprintf(s.out, "  %s: %s\n", k, v)
	}
}

func (s *Shell) currentDevice() (hardware.Identifier, bool) {
	id := s.config.Session.Snapshot().Identifier
	if id == "" {
		fmt.Fprintln(s.out, "No device selected")
		return "", false
	}
	return id, true
}

func causeFrom(args []string) error {
	if len(args) == 0 {
		return nil
	}
	return errors.New(strings.Join(args, " "))
}

func (s *Shell) cmdDisconnect(args []string) {
	id, ok := s.currentDevice()
	if !ok {
		return
	}
	if err := s.config.Hardware.Disconnect(id, causeFrom(args)); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Device %q disconnected\n", id)
}

func (s *Shell) cmdCloseSession(args []string) {
	id, ok := s.currentDevice()
	if !ok {
		return
	}
	if err := s.config.Hardware.CloseSession(id, causeFrom(args)); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Session on %q closed\n", id)
}

func (s *Shell) cmdStatus() {
	snap := s.config.Session.Snapshot()

	fmt.Fprintf(s.out, "Session:      %s\n", snap.SessionID)
	fmt.Fprintf(s.out, "State:        %s (running %t)\n", snap.State, s.config.Session.IsRunning())
	fmt.Fprintf(s.out, "Transactions: %d\n", snap.Transactions)
	fmt.Fprintln(s.out, "Desired:")
	fmt.Fprintf(s.out, "  device:   %s\n", orNone(string(snap.Identifier)))
	fmt.Fprintf(s.out, "  outputs:  %s\n", snap.Outputs.String())
	fmt.Fprintf(s.out, "  template: %s\n", describeSpec(snap.Spec))
	fmt.Fprintf(s.out, "  active:   %t\n", snap.Active)
	fmt.Fprintln(s.out, "Owned:")
	fmt.Fprintf(s.out, "  device:   %s\n", orNone(snap.DeviceHandle))
	fmt.Fprintf(s.out, "  session:  %s\n", orNone(snap.SessionHandle))

	if hw := s.config.Hardware; hw != nil {
		c := hw.Counts()
		fmt.Fprintf(s.out, "Hardware:     opens=%d closes=%d creates=%d session-closes=%d submits=%d stops=%d captures=%d aborts=%d\n",
			c.Opens, c.Closes, c.Creates, c.SessionCloses, c.Submits, c.Stops, c.Captures, c.Aborts)
	}

	if sup := s.config.Supervisor; sup != nil {
		fmt.Fprintf(s.out, "Recovery:     %s (recoveries %d", sup.State(), sup.Recoveries())
		if err := sup.LastError(); err != nil {
			fmt.Fprintf(s.out, ", last error: %v", err)
		}
		fmt.Fprintln(s.out, ")")
	}

	if len(s.staged) > 0 {
		fmt.Fprintf(s.out, "Staged:       %d changes\n", len(s.staged))
	}
}

func (s *Shell) cmdEvents(args []string) {
	if s.config.Events == nil {
		fmt.Fprintln(s.out, "Event recording is disabled")
		return
	}
	n := 20
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			fmt.Fprintf(s.out, "Error: invalid count %q\n", args[0])
			return
		}
		n = v
	}

	events := s.config.Events.Events()
	if len(events) > n {
		events = events[len(events)-n:]
	}
	for _, e := range events {
		fmt.Fprintf(s.out, "%s %-11s %s\n", e.Timestamp.Format("15:04:05.000"), e.Category, e.Summary())
	}
}

// ParseOutputs parses "name[:WxH]" arguments.
func ParseOutputs(args []string) (hardware.OutputSet, error) {
	var outputs hardware.OutputSet
	for _, arg := range args {
		name, size, hasSize := strings.Cut(arg, ":")
		if name == "" {
			return nil, fmt.Errorf("output %q has no name", arg)
		}
		o := hardware.Output{Name: name}
		if hasSize {
			ws, hs, ok := strings.Cut(strings.ToLower(size), "x")
			if !ok {
				return nil, fmt.Errorf("output %q: size must be WxH", arg)
			}
			w, err := strconv.Atoi(ws)
			if err != nil || w < 0 {
				return nil, fmt.Errorf("output %q: invalid width", arg)
			}
			h, err := strconv.Atoi(hs)
			if err != nil || h < 0 {
				return nil, fmt.Errorf("output %q: invalid height", arg)
			}
			o.Width, o.Height = w, h
		}
		outputs = append(outputs, o)
	}
	return outputs, nil
}

func describeSpec(spec hardware.RequestSpec) string {
	switch s := spec.(type) {
	case nil:
		return "none"
	case hardware.TemplateSpec:
		if s.FPS > 0 {
			return fmt.Sprintf("%s@%dfps", s.Template, s.FPS)
		}
		return s.Template
	default:
		return fmt.Sprintf("%T", spec)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
