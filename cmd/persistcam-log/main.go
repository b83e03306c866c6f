// Command persistcam-log views and analyzes capture session lifecycle logs.
//
// Logs are CBOR trace files (.plog) written by persistcam-sim -event-log, or
// SQLite journals (.db) written with -journal. The file extension selects
// the format.
//
// Usage:
//
//	persistcam-log <command> [flags] <file>
//
// Commands:
//
//	view     View events in human-readable format
//	stats    Show statistics about the log
//	export   Export events to JSONL or CSV
//	import   Append a trace file to a journal
//
// Examples:
//
//	# View all events
//	persistcam-log view trace.plog
//
//	# View only resource events of device 0
//	persistcam-log view -category resource -device-id 0 trace.plog
//
//	# Statistics of one session from a journal
//	persistcam-log stats -session-id 1b4e28ba journal.db
//
//	# Import a trace into a journal
//	persistcam-log import -journal journal.db trace.plog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/persistcam/persistcam-go/cmd/persistcam-log/commands"
	"github.com/persistcam/persistcam-go/pkg/eventlog"
)

const usage = `persistcam-log - Capture Session Log Analyzer

Usage:
  persistcam-log <command> [flags] <file.plog|file.db>

Commands:
  view     View events in human-readable format
  stats    Show statistics about the log
  export   Export events to JSONL or CSV
  import   Append a trace file to a journal

Use "persistcam-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "export":
		runExport(args)
	case "import":
		runImport(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared filter flags.
func newFlagSet(name, synopsis string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "persistcam-log %s - %s\n\nUsage:\n  persistcam-log %s [flags] <file>\n\nFlags:\n",
			name, synopsis, name)
		fs.PrintDefaults()
	}

	var opts commands.FilterOptions
	fs.StringVar(&opts.SessionID, "session-id", "", "Filter by session ID")
	fs.StringVar(&opts.DeviceID, "device-id", "", "Filter by device identifier")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (transaction, resource, state, capture, error)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return fs, &opts
}

// parse parses args and returns the log path and filter, exiting on error.
func parse(fs *flag.FlagSet, opts *commands.FilterOptions, args []string) (string, eventlog.Filter) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
	if err != nil {
		fail(err)
	}
	return fs.Arg(0), filter
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs, opts := newFlagSet("view", "View events in human-readable format")
	path, filter := parse(fs, opts, args)

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the log")
	path, filter := parse(fs, opts, args)

	if err := commands.RunStats(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export events to JSONL or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path, filter := parse(fs, opts, args)

	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fail(err)
	}
}

func runImport(args []string) {
	fs, opts := newFlagSet("import", "Append a trace file to a journal")
	dbPath := fs.String("journal", "", "Journal database (required)")
	path, filter := parse(fs, opts, args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: journal (-journal) required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunImport(path, *dbPath, filter, os.Stdout); err != nil {
		fail(err)
	}
}
