package pipeline

import (
	"context"

	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs one stage at a time, recording every operation in a journal.
type Executor struct {
	journal *Journal
	tracer  trace.Tracer
}

// NewExecutor returns an executor that records into j.
func NewExecutor(j *Journal, tracer trace.Tracer) *Executor {
	return &Executor{journal: j, tracer: tracer}
}

// Execute runs the operations of st in order and returns the first error,
// tagged with the stage. Operations after a failure are journaled as not run;
// operations before it are not undone.
func (e *Executor) Execute(ctx context.Context, st *Stage, env *Env) error {
	ctx = ctxlog.With(ctx, "stage", string(st.ID))
	logger := ctxlog.FromContext(ctx)

	ctx, span := e.tracer.Start(ctx, "stage."+string(st.ID), trace.WithAttributes(
		attribute.String("stage.id", string(st.ID)),
		attribute.String("stage.name", st.Name),
	))
	defer span.End()

	if missing := env.Bindings.Missing(st.Requires); len(missing) > 0 {
		err := &SequenceViolationError{Stage: st.ID, Missing: missing}
		logger.Error("Stage prerequisites missing.", "missing", missing)
		e.skipFrom(st, 0)
		fail(span, err)
		return err
	}

	logger.Info("▶️ Starting stage", "name", st.Name, "operations", len(st.Operations))
	for i, op := range st.Operations {
		before := env.Bindings.Snapshot()
		err := e.run(ctx, st, op, env)
		outputs := diff(before, env.Bindings.Snapshot())
		if err != nil {
			err = tagStage(err, st.ID, op.Name)
			logger.Error("Operation failed.", "operation", op.Name, "error", err)
			e.journal.record(st.ID, op.Name, StatusFailed, outputs, err)
			e.skipFrom(st, i+1)
			fail(span, err)
			return err
		}
		e.journal.record(st.ID, op.Name, StatusOK, outputs, nil)
	}

	if missing := env.Bindings.Missing(st.Produces); len(missing) > 0 {
		err := &SequenceViolationError{Stage: st.ID, Missing: missing, Produced: true}
		fail(span, err)
		return err
	}
	logger.Info("✅ Finished stage", "reached", st.Reached.String())
	return nil
}

func (e *Executor) run(ctx context.Context, st *Stage, op Operation, env *Env) error {
	logger := ctxlog.FromContext(ctx).With("operation", op.Name)
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := e.tracer.Start(ctx, "operation."+op.Name, trace.WithAttributes(
		attribute.String("stage.id", string(st.ID)),
		attribute.String("operation", op.Name),
	))
	defer span.End()

	logger.Debug("Calling operation.")
	if err := op.Do(ctx, env); err != nil {
		fail(span, err)
		return err
	}
	logger.Info("Operation acknowledged.")
	return nil
}

func (e *Executor) skipFrom(st *Stage, i int) {
	for _, op := range st.Operations[i:] {
		e.journal.record(st.ID, op.Name, StatusNotRun, nil, nil)
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
