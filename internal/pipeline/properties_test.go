package pipeline

import (
	"errors"
	"math/big"
	"testing"

	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/testutil"
	"github.com/specialistvlad/gifdeploy/internal/transport/memory"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fullSequence is every service call of a complete run, in order.
var fullSequence = []string{
	gif.MethodProposeOracleType,
	gif.MethodApproveOracleType,
	gif.MethodDeployOracle,
	gif.MethodApproveOracle,
	gif.MethodAssignOracleToOracleType,
	gif.MethodDeployProduct,
	gif.MethodApproveProduct,
}

// stageOf maps each service call to the stage that issues it.
var stageOf = map[string]StageID{
	gif.MethodProposeOracleType:        StageType,
	gif.MethodApproveOracleType:        StageType,
	gif.MethodDeployOracle:             StageOracle,
	gif.MethodApproveOracle:            StageOracle,
	gif.MethodAssignOracleToOracleType: StageOracle,
	gif.MethodDeployProduct:            StageProduct,
	gif.MethodApproveProduct:           StageProduct,
}

func drawParams(rt *rapid.T) Params {
	return Params{
		Registry: testRegistry,
		OracleType: gif.OracleType{
			Name:         rapid.StringMatching(`T[A-Za-z0-9]{0,30}`).Draw(rt, "typeName"),
			InputFormat:  gif.DefaultInputFormat,
			OutputFormat: gif.DefaultOutputFormat,
		},
		OracleName:  rapid.StringMatching(`O[A-Za-z0-9]{0,30}`).Draw(rt, "oracleName"),
		OracleID:    big.NewInt(rapid.Int64Range(0, 1<<40).Draw(rt, "oracleID")),
		ProductName: rapid.StringMatching(`P[A-Za-z0-9]{0,30}`).Draw(rt, "productName"),
		ProductID:   big.NewInt(rapid.Int64Range(0, 1<<40).Draw(rt, "productID")),
	}
}

func backendFor(p Params) *memory.Backend {
	return memory.New(p.Registry, memory.WithFirstOracleID(p.OracleID), memory.WithFirstProductID(p.ProductID))
}

// Ordering and fail-fast: whatever call fails, the calls issued are exactly
// the prefix of the full sequence ending at the failing call, and the run
// reports that call's stage and operation with the backend's own reason.
func TestProperty_OrderingAndFailFast(t *testing.T) {
	ctx, _ := testutil.Context(t)
	rapid.Check(t, func(rt *rapid.T) {
		p := drawParams(rt)
		backend := backendFor(p)
		failAt := rapid.IntRange(-1, len(fullSequence)-1).Draw(rt, "failAt")
		reject := rapid.Bool().Draw(rt, "reject")
		cause := errors.New("connection reset")
		if failAt >= 0 {
			if reject {
				backend.Reject(fullSequence[failAt], "refused")
			} else {
				backend.Fail(fullSequence[failAt], cause)
			}
		}

		res, err := newOrchestrator(backend).Run(ctx, Request{Params: p})

		calls := serviceCalls(backend)
		if failAt < 0 {
			require.NoError(rt, err)
			require.Equal(rt, fullSequence, calls)
			require.Equal(rt, ProductRegistered, res.State)
			return
		}
		require.Equal(rt, fullSequence[:failAt+1], calls)
		require.Equal(rt, Failed, res.State)
		require.Equal(rt, stageOf[fullSequence[failAt]], res.FailedAt)
		if reject {
			var rej *gif.RejectedError
			require.ErrorAs(rt, err, &rej)
			require.Equal(rt, "refused", rej.Reason)
			require.Equal(rt, string(res.FailedAt), rej.Stage)
		} else {
			var rc *gif.RemoteCallError
			require.ErrorAs(rt, err, &rc)
			require.ErrorIs(rt, err, cause)
			require.Equal(rt, string(res.FailedAt), rc.Stage)
		}
	})
}

// Identifier threading: the type name approved in the type stage is the one
// the oracle is deployed and assigned under, and the oracle id the oracle
// stage produced is the one the product is deployed against.
func TestProperty_IdentifierThreading(t *testing.T) {
	ctx, _ := testutil.Context(t)
	rapid.Check(t, func(rt *rapid.T) {
		p := drawParams(rt)
		backend := backendFor(p)

		_, err := newOrchestrator(backend).Run(ctx, Request{Params: p})
		require.NoError(rt, err)

		wantType, err := gif.Bytes32(p.OracleType.Name)
		require.NoError(rt, err)
		var approvedType, deployedOracleID string
		for _, c := range backend.Calls() {
			switch c.Method {
			case gif.MethodApproveOracleType:
				approvedType = c.Params["name"]
			case gif.MethodDeployOracle:
				require.Equal(rt, approvedType, c.Params["oracleType"])
			case gif.MethodApproveOracle:
				deployedOracleID = c.Params["oracleId"]
			case gif.MethodAssignOracleToOracleType:
				require.Equal(rt, approvedType, c.Params["oracleType"])
				require.Equal(rt, deployedOracleID, c.Params["oracleId"])
			case gif.MethodDeployProduct:
				require.Equal(rt, approvedType, c.Params["oracleType"])
				require.Equal(rt, deployedOracleID, c.Params["oracleId"])
			}
		}
		require.Equal(rt, wantType, approvedType)
		require.Equal(rt, p.OracleID.String(), deployedOracleID)
	})
}
