package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/vk/framegraph/internal/app"
	"github.com/vk/framegraph/internal/cli"
	"github.com/vk/framegraph/internal/hcl_adapter"
)

// main is the entrypoint for the framegraph application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run holds the main logic so it can be tested without exiting the process.
// Plans go to outW and logs to logW.
func run(outW, logW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// NewApp panics when the graph cannot be loaded.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	fg := app.NewApp(outW, logW, appConfig, hcl_adapter.NewLoader())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fg.Run(ctx)
}
