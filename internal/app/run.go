package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"github.com/specialistvlad/gifdeploy/internal/pipeline"
	"github.com/specialistvlad/gifdeploy/internal/registry"
	"github.com/specialistvlad/gifdeploy/internal/tracing"
	"github.com/specialistvlad/gifdeploy/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// Run deploys the configured network's oracle type, oracle and product. The
// result is nil only when the run could not start (bad network file,
// unreachable transport); otherwise it describes how far the run got.
func (a *App) Run(ctx context.Context) (*pipeline.Result, error) {
	runID := uuid.NewString()
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", runID))
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	network, params, err := a.loadNetwork(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load network: %w", err)
	}
	logger.Info("▶️ Starting deployment.", "network", network.Name, "transport", network.Transport, "file", network.File)

	provider, err := tracing.NewProvider(ctx, a.config.Trace)
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("Trace provider shutdown failed.", "error", err)
		}
	}()

	caller := a.caller
	if caller == nil {
		caller, err = a.openTransport(ctx, network, params)
		if err != nil {
			return nil, fmt.Errorf("failed to open transport: %w", err)
		}
		defer closeCaller(ctx, caller)
	}

	var from pipeline.StageID
	if a.config.From != "" {
		if from, err = pipeline.ParseStageID(a.config.From); err != nil {
			return nil, err
		}
	}

	orch := pipeline.New(
		registry.New(params.Registry, caller),
		caller,
		pipeline.WithStages(a.stages...),
		pipeline.WithTracer(provider.Tracer()),
	)
	res, runErr := orch.Run(ctx, pipeline.Request{RunID: runID, Params: params, From: from})

	if a.config.JournalPath != "" {
		if err := res.Journal.WriteFile(a.config.JournalPath); err != nil {
			logger.Error("Failed to write run journal.", "path", a.config.JournalPath, "error", err)
			runErr = errors.Join(runErr, err)
		} else {
			logger.Info("Run journal written.", "path", a.config.JournalPath)
		}
	}

	if runErr != nil {
		return res, runErr
	}
	logger.Info("✅ Deployment finished.", "state", res.State.String(), "bindings", res.Bindings)
	return res, nil
}

func closeCaller(ctx context.Context, c transport.Caller) {
	if err := c.Close(); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to close transport.", "error", err)
	}
}
