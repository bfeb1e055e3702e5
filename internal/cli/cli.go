package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/framegraph/internal/app"
	"github.com/vk/framegraph/internal/publish"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(msg string) error {
	return &ExitError{Code: 2, Message: msg}
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("framegraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
framegraph - compiles a frame graph declaration into an execution plan of
waves, physical resource assignments and synchronization.

Usage:
  framegraph [options] [GRAPH_PATH]

Arguments:
  GRAPH_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	graphFlag := flagSet.String("graph", "", "Path to the graph file or directory.")
	gFlag := flagSet.String("g", "", "Path to the graph file or directory (shorthand).")
	outputFlag := flagSet.String("output", app.OutputText, "Plan output format. Options: 'text' or 'json'.")
	fmtFlag := flagSet.Bool("fmt", false, "Print the declaration in canonical HCL form and exit.")
	replayFlag := flagSet.Bool("replay", false, "Replay the compiled plan against the recording device.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers used by -replay.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	publishURLFlag := flagSet.String("publish-url", "", "Socket.IO endpoint the compiled plan is sent to. Empty disables publishing.")
	publishNSFlag := flagSet.String("publish-namespace", "", "Socket.IO namespace used by -publish-url.")
	publishAckFlag := flagSet.String("publish-ack", "", "Event the inspector acknowledges a plan with. Empty does not wait.")
	publishTimeoutFlag := flagSet.Duration("publish-timeout", publish.DefaultTimeout, "Connection and acknowledgement timeout for -publish-url.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError(err.Error())
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	switch {
	case *graphFlag != "":
		path = *graphFlag
	case *gFlag != "":
		path = *gFlag
	case flagSet.NArg() > 0:
		path = flagSet.Arg(0)
	}
	slog.Debug("Graph path determined.", "path", path)

	if path == "" {
		slog.Debug("No graph path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if *workersFlag < 1 {
		return nil, false, usageError("invalid workers: must be at least 1")
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		GraphPath:        path,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
		Output:           strings.ToLower(*outputFlag),
		Format:           *fmtFlag,
		Replay:           *replayFlag,
		Workers:          *workersFlag,
		PublishURL:       *publishURLFlag,
		PublishNamespace: *publishNSFlag,
		PublishAckEvent:  *publishAckFlag,
		PublishTimeout:   *publishTimeoutFlag,
	})
	if err != nil {
		return nil, false, usageError(err.Error())
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
