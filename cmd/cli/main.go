package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/gifdeploy/internal/app"
	"github.com/specialistvlad/gifdeploy/internal/cli"
	"github.com/specialistvlad/gifdeploy/internal/pipeline"
)

// main is the entrypoint for the gifdeploy application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, action, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}

	switch action {
	case cli.ActionStages:
		return app.PrintPlan(outW, pipeline.Plan())
	case cli.ActionRun:
		_, err := app.NewApp(outW, appConfig).Run(ctx)
		return err
	}
	return nil
}
