// Package memory is an in-process stand-in for a deployed instance: a
// registry plus the owner, operator, oracle and product services, enforcing
// the same preconditions the real services do. It backs dry runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/transport"
)

// Backend implements transport.Caller. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	registry  gif.Address
	contracts map[string]gif.Address // service name -> address
	nextAddr  uint64

	types    map[string]*oracleType
	oracles  map[string]*oracle  // id -> oracle
	products map[string]*product // id -> product
	names    map[string]bool     // deployed oracle/product names

	nextOracleID  *big.Int
	nextProductID *big.Int

	faults map[string]error
	calls  []transport.Request
	closed bool
}

type oracleType struct {
	inputFormat, outputFormat string
	approved                  bool
	oracles                   map[string]bool
}

type oracle struct {
	typeName string
	approved bool
	assigned bool
}

type product struct {
	typeName string
	oracleID string
	approved bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithFirstOracleID sets the id assigned to the first deployed oracle.
func WithFirstOracleID(id *big.Int) Option {
	return func(b *Backend) { b.nextOracleID = new(big.Int).Set(id) }
}

// WithFirstProductID sets the id assigned to the first deployed product.
func WithFirstProductID(id *big.Int) Option {
	return func(b *Backend) { b.nextProductID = new(big.Int).Set(id) }
}

// WithoutService leaves name out of the registry.
func WithoutService(name gif.ServiceName) Option {
	return func(b *Backend) { delete(b.contracts, string(name)) }
}

// New returns a backend whose registry lives at registry and already knows
// the four standard services.
func New(registry gif.Address, opts ...Option) *Backend {
	b := &Backend{
		registry:      registry,
		contracts:     make(map[string]gif.Address),
		nextAddr:      0x1000,
		types:         make(map[string]*oracleType),
		oracles:       make(map[string]*oracle),
		products:      make(map[string]*product),
		names:         make(map[string]bool),
		nextOracleID:  big.NewInt(1),
		nextProductID: big.NewInt(1),
		faults:        make(map[string]error),
	}
	for _, name := range []gif.ServiceName{
		gif.OracleOwnerServiceName,
		gif.OperatorServiceName,
		gif.OracleServiceName,
		gif.ProductServiceName,
	} {
		b.contracts[string(name)] = b.newAddress()
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Fail makes the next calls of method fail with err. A *transport.Rejection
// behaves as a refusal, anything else as a delivery failure.
func (b *Backend) Fail(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[method] = err
}

// Reject makes the next calls of method be refused with reason.
func (b *Backend) Reject(method, reason string) {
	b.Fail(method, &transport.Rejection{Method: method, Reason: reason})
}

// Calls returns every request received so far, in order.
func (b *Backend) Calls() []transport.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]transport.Request, len(b.calls))
	copy(out, b.calls)
	return out
}

// Methods returns the method of every request received so far, in order.
func (b *Backend) Methods() []string {
	calls := b.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// ServiceAddress returns the address the registry holds for name.
func (b *Backend) ServiceAddress(name gif.ServiceName) gif.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contracts[string(name)]
}

// TypeApproved reports whether the oracle type exists and is approved.
func (b *Backend) TypeApproved(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.types[name]
	return ok && t.approved
}

// OracleAssigned reports whether oracle id is approved and bound to a type.
func (b *Backend) OracleAssigned(id *big.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.oracles[id.String()]
	return ok && o.approved && o.assigned
}

// ProductApproved reports whether product id exists and is approved.
func (b *Backend) ProductApproved(id *big.Int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.products[id.String()]
	return ok && p.approved
}

// Close implements transport.Caller.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Call implements transport.Caller.
func (b *Backend) Call(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, transport.ErrClosed
	}
	b.calls = append(b.calls, req)
	if err, ok := b.faults[req.Method]; ok {
		return nil, err
	}

	result, reason, err := b.dispatch(req)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return nil, &transport.Rejection{Method: req.Method, Reason: reason}
	}
	if result == nil {
		return nil, nil
	}
	return json.Marshal(result)
}

func (b *Backend) newAddress() gif.Address {
	b.nextAddr++
	return gif.Address(fmt.Sprintf("0x%040x", b.nextAddr))
}

// dispatch applies req. A non-empty reason is a business refusal; err is a
// malformed request, reported as a delivery failure.
func (b *Backend) dispatch(req transport.Request) (result any, reason string, err error) {
	p := req.Params
	if req.Method == gif.MethodGetContract {
		if !gif.Address(req.To).Equal(b.registry) {
			return nil, "", fmt.Errorf("no registry deployed at %s", req.To)
		}
		name, err := gif.DecodeBytes32(p["name"])
		if err != nil {
			return nil, "", err
		}
		addr, ok := b.contracts[name]
		if !ok {
			addr = gif.ZeroAddress
		}
		return map[string]string{"address": string(addr)}, "", nil
	}

	svc, ok := b.serviceAt(gif.Address(req.To))
	if !ok {
		return nil, "", fmt.Errorf("no service deployed at %s", req.To)
	}

	switch req.Method {
	case gif.MethodProposeOracleType:
		if svc != gif.OracleOwnerServiceName {
			return nil, "caller is not the oracle owner service", nil
		}
		name, err := gif.DecodeBytes32(p["name"])
		if err != nil {
			return nil, "", err
		}
		if _, exists := b.types[name]; exists {
			return nil, "oracle type already proposed", nil
		}
		b.types[name] = &oracleType{
			inputFormat:  p["inputFormat"],
			outputFormat: p["outputFormat"],
			oracles:      make(map[string]bool),
		}
		return nil, "", nil

	case gif.MethodApproveOracleType:
		if svc != gif.OperatorServiceName {
			return nil, "caller is not the instance operator", nil
		}
		name, err := gif.DecodeBytes32(p["name"])
		if err != nil {
			return nil, "", err
		}
		t, exists := b.types[name]
		if !exists {
			return nil, "oracle type not proposed", nil
		}
		if t.approved {
			return nil, "oracle type already approved", nil
		}
		t.approved = true
		return nil, "", nil

	case gif.MethodDeployOracle:
		if svc != gif.OracleServiceName {
			return nil, "not an oracle service", nil
		}
		typeName, err := gif.DecodeBytes32(p["oracleType"])
		if err != nil {
			return nil, "", err
		}
		name, err := gif.DecodeBytes32(p["name"])
		if err != nil {
			return nil, "", err
		}
		if !gif.Address(p["oracleOwnerService"]).Equal(b.contracts[string(gif.OracleOwnerServiceName)]) {
			return nil, "unknown oracle owner service", nil
		}
		if _, exists := b.types[typeName]; !exists {
			return nil, "unknown oracle type", nil
		}
		if b.names[name] {
			return nil, "name already taken", nil
		}
		id := new(big.Int).Set(b.nextOracleID)
		b.nextOracleID.Add(b.nextOracleID, big.NewInt(1))
		b.names[name] = true
		b.oracles[id.String()] = &oracle{typeName: typeName}
		return map[string]string{"address": string(b.newAddress()), "id": id.String()}, "", nil

	case gif.MethodApproveOracle:
		if svc != gif.OperatorServiceName {
			return nil, "caller is not the instance operator", nil
		}
		o, exists := b.oracles[p["oracleId"]]
		if !exists {
			return nil, "unknown id", nil
		}
		o.approved = true
		return nil, "", nil

	case gif.MethodAssignOracleToOracleType:
		if svc != gif.OperatorServiceName {
			return nil, "caller is not the instance operator", nil
		}
		typeName, err := gif.DecodeBytes32(p["oracleType"])
		if err != nil {
			return nil, "", err
		}
		t, exists := b.types[typeName]
		if !exists || !t.approved {
			return nil, "oracle type not approved", nil
		}
		o, exists := b.oracles[p["oracleId"]]
		if !exists {
			return nil, "unknown id", nil
		}
		if !o.approved {
			return nil, "oracle not approved", nil
		}
		if o.typeName != typeName {
			return nil, "oracle does not conform to oracle type", nil
		}
		if o.assigned {
			return nil, "oracle already assigned", nil
		}
		o.assigned = true
		t.oracles[p["oracleId"]] = true
		return nil, "", nil

	case gif.MethodDeployProduct:
		if svc != gif.ProductServiceName {
			return nil, "not a product service", nil
		}
		typeName, err := gif.DecodeBytes32(p["oracleType"])
		if err != nil {
			return nil, "", err
		}
		name, err := gif.DecodeBytes32(p["name"])
		if err != nil {
			return nil, "", err
		}
		t, exists := b.types[typeName]
		if !exists || !t.approved {
			return nil, "oracle type not approved", nil
		}
		if !t.oracles[p["oracleId"]] {
			return nil, "oracle not assigned to oracle type", nil
		}
		if b.names[name] {
			return nil, "name already taken", nil
		}
		id := new(big.Int).Set(b.nextProductID)
		b.nextProductID.Add(b.nextProductID, big.NewInt(1))
		b.names[name] = true
		b.products[id.String()] = &product{typeName: typeName, oracleID: p["oracleId"]}
		return map[string]string{"address": string(b.newAddress()), "id": id.String()}, "", nil

	case gif.MethodApproveProduct:
		if svc != gif.OperatorServiceName {
			return nil, "caller is not the instance operator", nil
		}
		pr, exists := b.products[p["productId"]]
		if !exists {
			return nil, "unknown id", nil
		}
		pr.approved = true
		return nil, "", nil
	}
	return nil, "", fmt.Errorf("unknown method %q", req.Method)
}

func (b *Backend) serviceAt(addr gif.Address) (gif.ServiceName, bool) {
	for name, a := range b.contracts {
		if a.Equal(addr) {
			return gif.ServiceName(name), true
		}
	}
	return "", false
}
