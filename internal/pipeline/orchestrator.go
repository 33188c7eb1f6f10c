package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Request is one invocation of the pipeline.
type Request struct {
	// RunID labels logs, spans and the journal. A new one is generated when empty.
	RunID  string
	Params Params
	// From is the first stage to run; empty means the first stage of the plan.
	// Stages before it are assumed complete.
	From StageID
}

// Result describes how far a run got.
type Result struct {
	RunID string
	State State
	// FailedAt and FailedOperation are set when State is Failed.
	FailedAt        StageID
	FailedOperation string
	Completed       []StageID
	Bindings        map[string]string
	Journal         *Journal
}

// Orchestrator runs the plan against one backend.
type Orchestrator struct {
	resolver gif.Resolver
	caller   transport.Caller
	stages   []*Stage
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStages replaces the default plan.
func WithStages(stages ...*Stage) Option {
	return func(o *Orchestrator) { o.stages = stages }
}

// WithTracer sets the tracer used for run, stage and operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithClock overrides the journal clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an orchestrator that resolves services through resolver and
// calls them through caller.
func New(resolver gif.Resolver, caller transport.Caller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		caller:   caller,
		stages:   Plan(),
		tracer:   noop.NewTracerProvider().Tracer("gifdeploy"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Stages returns the plan the orchestrator runs.
func (o *Orchestrator) Stages() []*Stage { return o.stages }

// Run executes the planned stages in order. It always returns a Result; the
// error is non-nil unless every planned stage completed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	journal := newJournal(req.RunID, o.now)
	journal.Registry = req.Params.Registry.String()
	journal.From = req.From
	res := &Result{RunID: req.RunID, State: NotStarted, Journal: journal}

	ctx = ctxlog.With(ctx, "run_id", req.RunID)
	logger := ctxlog.FromContext(ctx)
	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", req.RunID),
		attribute.String("registry", req.Params.Registry.String()),
	))
	defer span.End()

	bindings := NewBindings()
	finish := func(err error) (*Result, error) {
		res.Bindings = bindings.Snapshot()
		journal.State = res.State.String()
		journal.FailedAt = res.FailedAt
		journal.Bindings = res.Bindings
		journal.FinishedAt = o.now()
		if err != nil {
			fail(span, err)
		}
		span.SetAttributes(attribute.String("run.state", res.State.String()))
		return res, err
	}

	if err := req.Params.Validate(); err != nil {
		return finish(err)
	}

	planned, skipped, err := o.split(req.From)
	if err != nil {
		return finish(err)
	}
	seed(bindings, req.Params)
	for _, st := range skipped {
		st.Assume(req.Params, bindings)
		res.State = st.Reached
		logger.Info("Assuming stage already complete.", "stage", st.ID)
	}

	logger.Info("Registry address.", "registry", req.Params.Registry.String())
	services, err := gif.ResolveServices(ctx, o.resolver, o.caller, serviceNames(planned)...)
	if err != nil {
		res.State, res.FailedAt = Failed, StageResolution
		res.FailedOperation = gif.OpGetContract
		journal.record(StageResolution, gif.OpGetContract, StatusFailed, nil, err)
		logger.Error("❌ Service resolution failed.", "error", err)
		return finish(err)
	}
	journal.Services = serviceAddresses(services)

	env := &Env{Params: req.Params, Services: services, Bindings: bindings}
	exec := NewExecutor(journal, o.tracer)
	for _, st := range planned {
		if err := exec.Execute(ctx, st, env); err != nil {
			res.State, res.FailedAt = Failed, st.ID
			res.FailedOperation = operationOf(err)
			logger.Error("❌ Pipeline failed.", "stage", st.ID, "operation", res.FailedOperation, "error", err)
			return finish(err)
		}
		res.State = st.Reached
		res.Completed = append(res.Completed, st.ID)
	}

	logger.Info("🏁 Pipeline finished.", "state", res.State.String())
	return finish(nil)
}

// split divides the plan into the stages to skip and the stages to run.
func (o *Orchestrator) split(from StageID) (planned, skipped []*Stage, err error) {
	if from == "" {
		return o.stages, nil, nil
	}
	for i, st := range o.stages {
		if st.ID != from {
			continue
		}
		for _, s := range o.stages[:i] {
			if s.Assume == nil {
				return nil, nil, fmt.Errorf("cannot start at stage %s: stage %s cannot be skipped", from, s.ID)
			}
		}
		return o.stages[i:], o.stages[:i], nil
	}
	return nil, nil, fmt.Errorf("cannot start at stage %s: not in plan", from)
}

// seed binds the values supplied by the operator rather than by a stage.
func seed(b *Bindings, p Params) {
	b.SetString(KeyTypeName, p.OracleType.Name)
	b.SetString(KeyOracleName, p.OracleName)
	b.SetString(KeyProductName, p.ProductName)
}

// serviceNames lists the services of stages in first-use order, once each.
func serviceNames(stages []*Stage) []gif.ServiceName {
	seen := make(map[gif.ServiceName]bool)
	var out []gif.ServiceName
	for _, st := range stages {
		for _, name := range st.Services {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

func serviceAddresses(s *gif.Services) map[string]string {
	out := make(map[string]string)
	if s.Owner != nil {
		out[string(gif.OracleOwnerServiceName)] = s.Owner.Address().String()
	}
	if s.Operator != nil {
		out[string(gif.OperatorServiceName)] = s.Operator.Address().String()
	}
	if s.Oracle != nil {
		out[string(gif.OracleServiceName)] = s.Oracle.Address().String()
	}
	if s.Product != nil {
		out[string(gif.ProductServiceName)] = s.Product.Address().String()
	}
	return out
}

// operationOf extracts the failing operation name from a stage error.
func operationOf(err error) string {
	var rc *gif.RemoteCallError
	if errors.As(err, &rc) {
		return rc.Operation
	}
	var rj *gif.RejectedError
	if errors.As(err, &rj) {
		return rj.Operation
	}
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Operation
	}
	return ""
}
