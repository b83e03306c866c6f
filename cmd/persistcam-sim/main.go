// Command persistcam-sim runs a persistent capture session over simulated
// camera hardware and lets you drive it interactively.
//
// Usage:
//
//	persistcam-sim [flags]
//
// Flags:
//
//	-config string      Desired-state YAML file applied at startup
//	-watch              Re-apply the config file whenever it changes
//	-event-log string   Write the lifecycle trace to this CBOR file
//	-journal string     Write lifecycle events to this SQLite journal
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-no-recovery        Do not restore the session after hardware loss
//
// Examples:
//
//	# Start with an empty session
//	persistcam-sim
//
//	# Apply a config file, keep it in sync and record a trace
//	persistcam-sim -config camera.yaml -watch -event-log trace.plog
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/persistcam/persistcam-go/cmd/persistcam-sim/interactive"
	"github.com/persistcam/persistcam-go/pkg/capture"
	"github.com/persistcam/persistcam-go/pkg/config"
	"github.com/persistcam/persistcam-go/pkg/eventlog"
	"github.com/persistcam/persistcam-go/pkg/hardware/sim"
	"github.com/persistcam/persistcam-go/pkg/journal"
	"github.com/persistcam/persistcam-go/pkg/recovery"
)

// Options holds the command-line flags.
type Options struct {
	ConfigFile string
	Watch      bool
	EventLog   string
	Journal    string
	LogLevel   string
	NoRecovery bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Desired-state YAML file applied at startup")
	flag.BoolVar(&opts.Watch, "watch", false, "Re-apply the config file whenever it changes")
	flag.StringVar(&opts.EventLog, "event-log", "", "Write the lifecycle trace to this CBOR file")
	flag.StringVar(&opts.Journal, "journal", "", "Write lifecycle events to this SQLite journal")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.NoRecovery, "no-recovery", false, "Do not restore the session after hardware loss")
}

func main() {
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	if opts.Watch && opts.ConfigFile == "" {
		return fmt.Errorf("-watch requires -config")
	}

	cfg := config.Default()
	if opts.ConfigFile != "" {
		cfg, err = config.Load(opts.ConfigFile)
		if err != nil {
			return err
		}
	}
	if opts.EventLog != "" {
		cfg.EventLog.Path = opts.EventLog
	}
	if opts.Journal != "" {
		cfg.Journal.Path = opts.Journal
	}
	if opts.NoRecovery {
		cfg.Recovery.Enabled = false
	}

	// Log output goes to the terminal until the shell owns it.
	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	events := eventlog.NewRecorder()
	loggers := []eventlog.Logger{events}
	if level <= slog.LevelDebug {
		loggers = append(loggers, eventlog.NewSlogAdapter(logger))
	}

	if path := cfg.EventLog.Path; path != "" {
		fl, err := eventlog.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("event log: %w", err)
		}
		defer fl.Close()
		loggers = append(loggers, fl)
		logger.Info("writing lifecycle trace", "path", path)
	}

	if path := cfg.Journal.Path; path != "" {
		store, err := journal.NewStore(path)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer func() {
			if n, err := store.Dropped(); n > 0 {
				logger.Warn("journal dropped events", "count", n, "error", err)
			}
			store.Close()
		}()
		loggers = append(loggers, store)
		logger.Info("writing journal", "path", path)
	}

	hw := sim.NewProvider(sim.DefaultDevices()...)

	report := capture.CallbackFunc(func(err error) {
		logger.Warn("hardware error", "error", err)
	})

	var callback capture.Callback = report
	var supervisor *recovery.Supervisor
	if cfg.Recovery.Enabled {
		sc := cfg.SupervisorConfig()
		sc.Downstream = report
		sc.Logger = logger
		supervisor = recovery.NewSupervisor(sc)
		supervisor.OnRecovered(func(attempts int) {
			logger.Info("session restored", "attempts", attempts)
		})
		supervisor.OnGaveUp(func(err error) {
			logger.Error("recovery gave up", "error", err)
		})
		callback = supervisor
	}

	session, err := capture.New(capture.Config{
		Provider:    hw,
		Details:     hw,
		Callback:    callback,
		Logger:      logger,
		EventLogger: eventlog.NewMultiLogger(loggers...),
	})
	if err != nil {
		return err
	}
	defer session.Dispose()

	if supervisor != nil {
		supervisor.Bind(session)
		supervisor.Start()
		defer supervisor.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.ConfigFile != "" {
		err := session.Transaction(ctx, func(_ context.Context, tx *capture.Tx) error {
			return cfg.Apply(tx)
		})
		if err != nil {
			// The desired state is kept; recovery or a later edit retries.
			logger.Warn("initial config not applied", "path", opts.ConfigFile, "error", err)
			if supervisor != nil {
				supervisor.Trigger(err)
			}
		} else {
			logger.Info("config applied", "path", opts.ConfigFile, "state", session.State())
		}
	}

	shell, err := interactive.New(interactive.Config{
		Session:    session,
		Hardware:   hw,
		Supervisor: supervisor,
		Events:     events,
	})
	if err != nil {
		return err
	}
	logOut.Set(shell.Stderr())
	session.OnStateChange(shell.PrintStateChange)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return shell.Run(gctx, cancel)
	})

	if opts.Watch {
		watcher, err := config.NewWatcher(opts.ConfigFile, session, logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
