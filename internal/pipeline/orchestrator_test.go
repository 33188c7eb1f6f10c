package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/registry"
	"github.com/specialistvlad/gifdeploy/internal/testutil"
	"github.com/specialistvlad/gifdeploy/internal/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry gif.Address = "0x00000000000000000000000000000000000a11ce"

func helloWorldParams() Params {
	return Params{
		Registry: testRegistry,
		OracleType: gif.OracleType{
			Name:         "HelloWorld",
			InputFormat:  gif.DefaultInputFormat,
			OutputFormat: gif.DefaultOutputFormat,
		},
		OracleName:  "HelloWorldOracle",
		OracleID:    big.NewInt(7),
		ProductName: "HelloWorldInsurance",
		ProductID:   big.NewInt(3),
	}
}

func newBackend(opts ...memory.Option) *memory.Backend {
	opts = append([]memory.Option{
		memory.WithFirstOracleID(big.NewInt(7)),
		memory.WithFirstProductID(big.NewInt(3)),
	}, opts...)
	return memory.New(testRegistry, opts...)
}

func newOrchestrator(b *memory.Backend, opts ...Option) *Orchestrator {
	return New(registry.New(testRegistry, b), b, opts...)
}

// serviceCalls drops the registry lookups from the recorded calls.
func serviceCalls(b *memory.Backend) []string {
	var out []string
	for _, m := range b.Methods() {
		if m != gif.MethodGetContract {
			out = append(out, m)
		}
	}
	return out
}

func TestRun_AllStages(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	o := newOrchestrator(backend)

	// --- Act ---
	res, err := o.Run(ctx, Request{Params: helloWorldParams()})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, ProductRegistered, res.State)
	require.Equal(t, []StageID{StageType, StageOracle, StageProduct}, res.Completed)
	require.Equal(t, []string{
		gif.MethodProposeOracleType,
		gif.MethodApproveOracleType,
		gif.MethodDeployOracle,
		gif.MethodApproveOracle,
		gif.MethodAssignOracleToOracleType,
		gif.MethodDeployProduct,
		gif.MethodApproveProduct,
	}, serviceCalls(backend))
	assert.True(t, backend.TypeApproved("HelloWorld"))
	assert.True(t, backend.OracleAssigned(big.NewInt(7)))
	assert.True(t, backend.ProductApproved(big.NewInt(3)))
	assert.Equal(t, "7", res.Bindings[string(KeyOracleID)])
	assert.Equal(t, "3", res.Bindings[string(KeyProductID)])
	assert.NotEmpty(t, res.RunID)
	assert.Len(t, res.Journal.Operations(StatusOK), 7)
	assert.Len(t, res.Journal.Services, 4)
}

func TestRun_ResolvesEachServiceOnce(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()

	_, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})
	require.NoError(t, err)

	var lookups int
	for _, m := range backend.Methods() {
		if m == gif.MethodGetContract {
			lookups++
		}
	}
	require.Equal(t, 4, lookups)
}

// Scenario A: the type stage alone issues propose then approve.
func TestRun_TypeStageOnly(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	o := newOrchestrator(backend, WithStages(Plan()[0]))

	res, err := o.Run(ctx, Request{Params: helloWorldParams()})

	require.NoError(t, err)
	require.Equal(t, TypeRegistered, res.State)
	calls := backend.Calls()
	var service []string
	for _, c := range calls {
		if c.Method == gif.MethodGetContract {
			continue
		}
		service = append(service, c.Method)
		name, err := gif.DecodeBytes32(c.Params["name"])
		require.NoError(t, err)
		require.Equal(t, "HelloWorld", name)
	}
	require.Equal(t, []string{gif.MethodProposeOracleType, gif.MethodApproveOracleType}, service)
}

// Scenario B: the oracle stage threads the deployed id into approve and assign.
func TestRun_OracleStage(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	_, err := newOrchestrator(backend, WithStages(Plan()[0])).Run(ctx, Request{Params: helloWorldParams()})
	require.NoError(t, err)
	before := len(backend.Calls())
	o := newOrchestrator(backend, WithStages(Plan()[:2]...))

	// --- Act ---
	res, err := o.Run(ctx, Request{Params: helloWorldParams(), From: StageOracle})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, OracleRegistered, res.State)
	require.Equal(t, []StageID{StageOracle}, res.Completed)

	var service []string
	for _, c := range backend.Calls()[before:] {
		if c.Method != gif.MethodGetContract {
			service = append(service, c.Method)
		}
		switch c.Method {
		case gif.MethodApproveOracle:
			require.Equal(t, "7", c.Params["oracleId"])
		case gif.MethodAssignOracleToOracleType:
			require.Equal(t, "7", c.Params["oracleId"])
			name, err := gif.DecodeBytes32(c.Params["oracleType"])
			require.NoError(t, err)
			require.Equal(t, "HelloWorld", name)
		}
	}
	require.Equal(t, []string{
		gif.MethodDeployOracle,
		gif.MethodApproveOracle,
		gif.MethodAssignOracleToOracleType,
	}, service)
}

// Scenario C: the product stage deploys against oracle 7 and approves product 3.
func TestRun_ProductStage(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	_, err := newOrchestrator(backend, WithStages(Plan()[:2]...)).Run(ctx, Request{Params: helloWorldParams()})
	require.NoError(t, err)
	before := len(backend.Calls())

	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams(), From: StageProduct})

	require.NoError(t, err)
	require.Equal(t, ProductRegistered, res.State)
	var service []string
	for _, c := range backend.Calls()[before:] {
		if c.Method == gif.MethodGetContract {
			continue
		}
		service = append(service, c.Method)
		switch c.Method {
		case gif.MethodDeployProduct:
			require.Equal(t, "7", c.Params["oracleId"])
		case gif.MethodApproveProduct:
			require.Equal(t, "3", c.Params["productId"])
		}
	}
	require.Equal(t, []string{gif.MethodDeployProduct, gif.MethodApproveProduct}, service)
}

// Scenario D: a refused approveOracle stops the run inside the oracle stage.
func TestRun_RejectedApproveOracle(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	backend.Reject(gif.MethodApproveOracle, "unknown id")

	// --- Act ---
	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})

	// --- Assert ---
	require.Error(t, err)
	var rej *gif.RejectedError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "unknown id", rej.Reason)
	require.Equal(t, string(StageOracle), rej.Stage)
	require.Equal(t, gif.OpApproveOracle, rej.Operation)

	require.Equal(t, Failed, res.State)
	require.Equal(t, StageOracle, res.FailedAt)
	require.Equal(t, gif.OpApproveOracle, res.FailedOperation)
	require.Equal(t, []StageID{StageType}, res.Completed)

	methods := serviceCalls(backend)
	require.NotContains(t, methods, gif.MethodAssignOracleToOracleType)
	require.NotContains(t, methods, gif.MethodDeployProduct)
	require.NotContains(t, methods, gif.MethodApproveProduct)

	require.Equal(t, []string{"oracle/assignOracleToType"}, res.Journal.Operations(StatusNotRun))
	require.Equal(t, []string{"oracle/approveOracle"}, res.Journal.Operations(StatusFailed))
}

// Scenario E: an unregistered service fails the run before any service call.
func TestRun_ResolutionFailure(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend(memory.WithoutService(gif.OracleServiceName))

	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})

	require.Error(t, err)
	var resErr *registry.ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, string(gif.OracleServiceName), resErr.Name)
	require.ErrorIs(t, err, registry.ErrUnknownName)
	require.Equal(t, Failed, res.State)
	require.Equal(t, StageResolution, res.FailedAt)
	require.Empty(t, serviceCalls(backend))
}

func TestRun_RemoteCallErrorPropagatesUnchanged(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	cause := errors.New("connection reset by peer")
	backend.Fail(gif.MethodDeployProduct, cause)

	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})

	var rc *gif.RemoteCallError
	require.ErrorAs(t, err, &rc)
	require.ErrorIs(t, err, cause)
	require.Equal(t, string(StageProduct), rc.Stage)
	require.Equal(t, gif.OpDeployProduct, rc.Operation)
	require.Equal(t, StageProduct, res.FailedAt)
	require.Equal(t, []StageID{StageType, StageOracle}, res.Completed)
	require.NotContains(t, serviceCalls(backend), gif.MethodApproveProduct)
	require.Equal(t, 1, countMethod(backend, gif.MethodDeployProduct), "a failed call must not be retried")
}

func TestRun_OracleIDMismatchIsRejected(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := memory.New(testRegistry, memory.WithFirstOracleID(big.NewInt(8)))

	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})

	var rej *gif.RejectedError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "oracle id mismatch: expected 7, deployed 8", rej.Reason)
	require.Equal(t, StageOracle, res.FailedAt)
	require.Equal(t, gif.OpDeployOracle, res.FailedOperation)
	require.Equal(t, "8", res.Bindings[string(KeyOracleID)], "the deployed id stays visible")
	require.NotContains(t, serviceCalls(backend), gif.MethodApproveOracle)
}

func TestRun_ProductIDMismatchIsRejected(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := memory.New(testRegistry,
		memory.WithFirstOracleID(big.NewInt(7)),
		memory.WithFirstProductID(big.NewInt(1)),
	)

	// --- Act ---
	res, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams()})

	// --- Assert ---
	var rej *gif.RejectedError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "product id mismatch: expected 3, deployed 1", rej.Reason)
	require.Equal(t, string(StageProduct), rej.Stage)
	require.Equal(t, Failed, res.State)
	require.Equal(t, StageProduct, res.FailedAt)
	require.Equal(t, gif.OpDeployProduct, res.FailedOperation)
	require.Equal(t, []StageID{StageType, StageOracle}, res.Completed)
	require.Equal(t, "1", res.Bindings[string(KeyProductID)], "the deployed id stays visible")
	require.NotContains(t, serviceCalls(backend), gif.MethodApproveProduct)
}

func TestRun_StageThatDoesNotBindItsOutputs(t *testing.T) {
	// --- Arrange ---
	// The oracle stage deploys but never binds the oracle id it produces.
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	stages := Plan()
	oracle := stages[1]
	oracle.Operations = []Operation{{
		Name: gif.OpDeployOracle,
		Do: func(ctx context.Context, env *Env) error {
			d, err := env.Services.Oracle.DeployOracle(ctx, env.Services.Owner.Address(),
				env.Params.OracleType.Name, env.Params.OracleName)
			if err != nil {
				return err
			}
			env.Bindings.SetString(KeyOracleAddress, d.Address.String())
			return nil
		},
	}}

	// --- Act ---
	res, err := newOrchestrator(backend, WithStages(stages...)).Run(ctx, Request{Params: helloWorldParams()})

	// --- Assert ---
	var sv *SequenceViolationError
	require.ErrorAs(t, err, &sv)
	require.True(t, sv.Produced)
	require.Equal(t, StageOracle, sv.Stage)
	require.Equal(t, []Key{KeyOracleID}, sv.Missing)
	require.Equal(t, Failed, res.State)
	require.Equal(t, StageOracle, res.FailedAt)
	require.Equal(t, []StageID{StageType}, res.Completed)
	require.Equal(t, 1, countMethod(backend, gif.MethodDeployOracle))
	require.Equal(t, 0, countMethod(backend, gif.MethodDeployProduct))
	require.Equal(t, 0, countMethod(backend, gif.MethodApproveProduct))
}

func TestRun_InvalidParamsIssueNoCalls(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	params := helloWorldParams()
	params.OracleName = ""
	params.ProductID = nil

	res, err := newOrchestrator(backend).Run(ctx, Request{Params: params})

	require.Error(t, err)
	require.Contains(t, err.Error(), "oracle name is required")
	require.Contains(t, err.Error(), "product id is required")
	require.Equal(t, NotStarted, res.State)
	require.Empty(t, backend.Calls())
}

func TestRun_UnknownStartStage(t *testing.T) {
	ctx, _ := testutil.Context(t)
	backend := newBackend()

	_, err := newOrchestrator(backend).Run(ctx, Request{Params: helloWorldParams(), From: "policy"})

	require.Error(t, err)
	require.Empty(t, backend.Calls())
}

func TestRun_SequenceViolationStopsBeforeStageCalls(t *testing.T) {
	// --- Arrange ---
	// Without the oracle stage nothing binds the oracle id the product stage requires.
	ctx, _ := testutil.Context(t)
	backend := newBackend()
	plan := Plan()
	typeOnly := plan[0]
	product := plan[2]
	o := newOrchestrator(backend, WithStages(typeOnly, product))

	// --- Act ---
	res, err := o.Run(ctx, Request{Params: helloWorldParams()})

	// --- Assert ---
	var sv *SequenceViolationError
	require.ErrorAs(t, err, &sv)
	require.Equal(t, StageProduct, sv.Stage)
	require.Equal(t, []Key{KeyOracleID}, sv.Missing)
	require.Equal(t, StageProduct, res.FailedAt)
	require.NotContains(t, serviceCalls(backend), gif.MethodDeployProduct)
}

func TestRun_CancelledContextStopsBetweenOperations(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	backend := newBackend()
	stages := Plan()
	// Cancel once the type is proposed; approve must not be issued.
	propose := stages[0].Operations[0].Do
	stages[0].Operations[0].Do = func(c context.Context, env *Env) error {
		err := propose(c, env)
		cancel()
		return err
	}

	res, err := newOrchestrator(backend, WithStages(stages...)).Run(ctx, Request{Params: helloWorldParams()})

	require.Error(t, err)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, gif.OpApproveType, oe.Operation)
	require.Equal(t, StageType, res.FailedAt)
	require.Equal(t, []string{gif.MethodProposeOracleType}, serviceCalls(backend))
}

func countMethod(b *memory.Backend, method string) int {
	n := 0
	for _, m := range b.Methods() {
		if m == method {
			n++
		}
	}
	return n
}
