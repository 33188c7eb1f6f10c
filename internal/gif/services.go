package gif

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/specialistvlad/gifdeploy/internal/transport"
)

// Default oracle formats of the hello world oracle type.
const (
	DefaultInputFormat  = "(bytes input)"
	DefaultOutputFormat = "(bytes1 greetingResponseCode)"
)

// OracleType is a named input/output schema that oracles conform to. The
// formats are opaque strings agreed with consumers out of band.
type OracleType struct {
	Name         string
	InputFormat  string
	OutputFormat string
}

// Deployment is what a deploy call produces: the new contract address and
// the id the deploying service assigned to it.
type Deployment struct {
	Address Address
	ID      *big.Int
}

type deploymentReceipt struct {
	Address string `json:"address"`
	ID      string `json:"id"`
}

// invoke performs one call and sorts the failure into the error taxonomy.
func invoke(ctx context.Context, c transport.Caller, to Address, op, method string, params map[string]string) (json.RawMessage, error) {
	raw, err := c.Call(ctx, transport.Request{To: string(to), Method: method, Params: params})
	if err == nil {
		return raw, nil
	}
	var rej *transport.Rejection
	if errors.As(err, &rej) {
		return nil, &RejectedError{Operation: op, Reason: rej.Reason}
	}
	return nil, &RemoteCallError{Operation: op, Cause: err}
}

// encodeNames converts human-readable names to bytes32 before any call is
// issued, so an oversized name never reaches the backend.
func encodeNames(op string, names map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for k, v := range names {
		enc, err := Bytes32(v)
		if err != nil {
			return nil, &RejectedError{Operation: op, Reason: fmt.Sprintf("%s: %v", k, err)}
		}
		out[k] = enc
	}
	return out, nil
}

func decodeDeployment(op string, raw json.RawMessage) (Deployment, error) {
	var r deploymentReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return Deployment{}, &RemoteCallError{Operation: op, Cause: fmt.Errorf("decode receipt: %w", err)}
	}
	addr, err := ParseAddress(r.Address)
	if err != nil {
		return Deployment{}, &RemoteCallError{Operation: op, Cause: fmt.Errorf("receipt: %w", err)}
	}
	id, err := ParseID(r.ID)
	if err != nil {
		return Deployment{}, &RemoteCallError{Operation: op, Cause: fmt.Errorf("receipt: %w", err)}
	}
	return Deployment{Address: addr, ID: id}, nil
}

// OwnerService is the oracle owner service, which proposes oracle types.
type OwnerService struct {
	addr   Address
	caller transport.Caller
}

// NewOwnerService wraps addr.
func NewOwnerService(addr Address, c transport.Caller) *OwnerService {
	return &OwnerService{addr: addr, caller: c}
}

func (s *OwnerService) Address() Address { return s.addr }

// ProposeType proposes a new oracle type. It is unusable until approved.
func (s *OwnerService) ProposeType(ctx context.Context, t OracleType) error {
	params, err := encodeNames(OpProposeType, map[string]string{"name": t.Name})
	if err != nil {
		return err
	}
	params["inputFormat"] = t.InputFormat
	params["outputFormat"] = t.OutputFormat
	_, err = invoke(ctx, s.caller, s.addr, OpProposeType, MethodProposeOracleType, params)
	return err
}

// OperatorService is the instance operator service, which approves what
// owners propose and binds oracles to types.
type OperatorService struct {
	addr   Address
	caller transport.Caller
}

func NewOperatorService(addr Address, c transport.Caller) *OperatorService {
	return &OperatorService{addr: addr, caller: c}
}

func (s *OperatorService) Address() Address { return s.addr }

func (s *OperatorService) ApproveType(ctx context.Context, name string) error {
	params, err := encodeNames(OpApproveType, map[string]string{"name": name})
	if err != nil {
		return err
	}
	_, err = invoke(ctx, s.caller, s.addr, OpApproveType, MethodApproveOracleType, params)
	return err
}

func (s *OperatorService) ApproveOracle(ctx context.Context, id *big.Int) error {
	_, err := invoke(ctx, s.caller, s.addr, OpApproveOracle, MethodApproveOracle,
		map[string]string{"oracleId": id.String()})
	return err
}

func (s *OperatorService) AssignOracleToType(ctx context.Context, typeName string, id *big.Int) error {
	params, err := encodeNames(OpAssignOracleToType, map[string]string{"oracleType": typeName})
	if err != nil {
		return err
	}
	params["oracleId"] = id.String()
	_, err = invoke(ctx, s.caller, s.addr, OpAssignOracleToType, MethodAssignOracleToOracleType, params)
	return err
}

func (s *OperatorService) ApproveProduct(ctx context.Context, id *big.Int) error {
	_, err := invoke(ctx, s.caller, s.addr, OpApproveProduct, MethodApproveProduct,
		map[string]string{"productId": id.String()})
	return err
}

// OracleService deploys oracle contracts bound to it and to an oracle owner
// service.
type OracleService struct {
	addr   Address
	caller transport.Caller
}

func NewOracleService(addr Address, c transport.Caller) *OracleService {
	return &OracleService{addr: addr, caller: c}
}

func (s *OracleService) Address() Address { return s.addr }

// DeployOracle creates an oracle conforming to typeName. The returned id is
// the one the service assigned; it is the only authoritative id.
func (s *OracleService) DeployOracle(ctx context.Context, owner Address, typeName, name string) (Deployment, error) {
	params, err := encodeNames(OpDeployOracle, map[string]string{"oracleType": typeName, "name": name})
	if err != nil {
		return Deployment{}, err
	}
	params["oracleService"] = string(s.addr)
	params["oracleOwnerService"] = string(owner)
	raw, err := invoke(ctx, s.caller, s.addr, OpDeployOracle, MethodDeployOracle, params)
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(OpDeployOracle, raw)
}

// ProductService deploys products that consume an oracle type.
type ProductService struct {
	addr   Address
	caller transport.Caller
}

func NewProductService(addr Address, c transport.Caller) *ProductService {
	return &ProductService{addr: addr, caller: c}
}

func (s *ProductService) Address() Address { return s.addr }

func (s *ProductService) DeployProduct(ctx context.Context, typeName, name string, oracleID *big.Int) (Deployment, error) {
	params, err := encodeNames(OpDeployProduct, map[string]string{"oracleType": typeName, "name": name})
	if err != nil {
		return Deployment{}, err
	}
	params["productService"] = string(s.addr)
	params["oracleId"] = oracleID.String()
	raw, err := invoke(ctx, s.caller, s.addr, OpDeployProduct, MethodDeployProduct, params)
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(OpDeployProduct, raw)
}
