package pipeline

import (
	"context"
	"fmt"
	"math/big"

	"github.com/specialistvlad/gifdeploy/internal/gif"
)

// Plan returns the three registration stages in dependency order.
func Plan() []*Stage {
	return []*Stage{typeStage(), oracleStage(), productStage()}
}

func typeStage() *Stage {
	return &Stage{
		ID:       StageType,
		Name:     "register oracle type",
		Requires: []Key{KeyTypeName},
		Produces: []Key{KeyApprovedType},
		Services: []gif.ServiceName{gif.OracleOwnerServiceName, gif.OperatorServiceName},
		Reached:  TypeRegistered,
		Operations: []Operation{
			{Name: gif.OpProposeType, Do: func(ctx context.Context, env *Env) error {
				name, err := env.Bindings.Text(KeyTypeName)
				if err != nil {
					return err
				}
				return env.Services.Owner.ProposeType(ctx, gif.OracleType{
					Name:         name,
					InputFormat:  env.Params.OracleType.InputFormat,
					OutputFormat: env.Params.OracleType.OutputFormat,
				})
			}},
			{Name: gif.OpApproveType, Do: func(ctx context.Context, env *Env) error {
				name, err := env.Bindings.Text(KeyTypeName)
				if err != nil {
					return err
				}
				if err := env.Services.Operator.ApproveType(ctx, name); err != nil {
					return err
				}
				env.Bindings.SetString(KeyApprovedType, name)
				return nil
			}},
		},
		Assume: func(p Params, b *Bindings) {
			b.SetString(KeyApprovedType, p.OracleType.Name)
		},
	}
}

func oracleStage() *Stage {
	return &Stage{
		ID:       StageOracle,
		Name:     "register oracle",
		Requires: []Key{KeyApprovedType, KeyOracleName},
		Produces: []Key{KeyOracleAddress, KeyOracleID},
		Services: []gif.ServiceName{gif.OracleServiceName, gif.OracleOwnerServiceName, gif.OperatorServiceName},
		Reached:  OracleRegistered,
		Operations: []Operation{
			{Name: gif.OpDeployOracle, Do: func(ctx context.Context, env *Env) error {
				typeName, err := env.Bindings.Text(KeyApprovedType)
				if err != nil {
					return err
				}
				name, err := env.Bindings.Text(KeyOracleName)
				if err != nil {
					return err
				}
				d, err := env.Services.Oracle.DeployOracle(ctx, env.Services.Owner.Address(), typeName, name)
				if err != nil {
					return err
				}
				env.Bindings.SetString(KeyOracleAddress, d.Address.String())
				env.Bindings.SetID(KeyOracleID, d.ID)
				return checkExpectedID(gif.OpDeployOracle, "oracle", env.Params.OracleID, d.ID)
			}},
			{Name: gif.OpApproveOracle, Do: func(ctx context.Context, env *Env) error {
				id, err := env.Bindings.ID(KeyOracleID)
				if err != nil {
					return err
				}
				return env.Services.Operator.ApproveOracle(ctx, id)
			}},
			{Name: gif.OpAssignOracleToType, Do: func(ctx context.Context, env *Env) error {
				typeName, err := env.Bindings.Text(KeyApprovedType)
				if err != nil {
					return err
				}
				id, err := env.Bindings.ID(KeyOracleID)
				if err != nil {
					return err
				}
				return env.Services.Operator.AssignOracleToType(ctx, typeName, id)
			}},
		},
		Assume: func(p Params, b *Bindings) {
			if p.OracleID != nil {
				b.SetID(KeyOracleID, p.OracleID)
			}
		},
	}
}

func productStage() *Stage {
	return &Stage{
		ID:       StageProduct,
		Name:     "register product",
		Requires: []Key{KeyApprovedType, KeyOracleID, KeyProductName},
		Produces: []Key{KeyProductAddress, KeyProductID},
		Services: []gif.ServiceName{gif.ProductServiceName, gif.OperatorServiceName},
		Reached:  ProductRegistered,
		Operations: []Operation{
			{Name: gif.OpDeployProduct, Do: func(ctx context.Context, env *Env) error {
				typeName, err := env.Bindings.Text(KeyApprovedType)
				if err != nil {
					return err
				}
				name, err := env.Bindings.Text(KeyProductName)
				if err != nil {
					return err
				}
				oracleID, err := env.Bindings.ID(KeyOracleID)
				if err != nil {
					return err
				}
				d, err := env.Services.Product.DeployProduct(ctx, typeName, name, oracleID)
				if err != nil {
					return err
				}
				env.Bindings.SetString(KeyProductAddress, d.Address.String())
				env.Bindings.SetID(KeyProductID, d.ID)
				return checkExpectedID(gif.OpDeployProduct, "product", env.Params.ProductID, d.ID)
			}},
			{Name: gif.OpApproveProduct, Do: func(ctx context.Context, env *Env) error {
				id, err := env.Bindings.ID(KeyProductID)
				if err != nil {
					return err
				}
				return env.Services.Operator.ApproveProduct(ctx, id)
			}},
		},
	}
}

// checkExpectedID refuses to go on with an id other than the one the
// operator configured. The deployed id stays bound so the journal shows it.
func checkExpectedID(op, kind string, expected, deployed *big.Int) error {
	if expected == nil || expected.Cmp(deployed) == 0 {
		return nil
	}
	return &gif.RejectedError{
		Operation: op,
		Reason:    fmt.Sprintf("%s id mismatch: expected %s, deployed %s", kind, expected, deployed),
	}
}
