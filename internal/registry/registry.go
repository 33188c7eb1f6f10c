package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gocache "github.com/patrickmn/go-cache"
	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/transport"
)

// ErrUnknownName is the cause of a ResolutionError when the registry answered
// with the zero address.
var ErrUnknownName = errors.New("name not registered")

// ResolutionError reports a failed lookup. It is always fatal for the run.
type ResolutionError struct {
	Name     string
	Registry gif.Address
	Cause    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q at registry %s: %v", e.Name, e.Registry, e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// Resolver looks names up in one registry contract.
type Resolver struct {
	registry gif.Address
	caller   transport.Caller
	resolved *gocache.Cache
}

// New returns a Resolver for the registry at addr.
func New(addr gif.Address, c transport.Caller) *Resolver {
	return &Resolver{
		registry: addr,
		caller:   c,
		resolved: gocache.New(gocache.NoExpiration, 0),
	}
}

// Registry returns the registry address the resolver reads from.
func (r *Resolver) Registry() gif.Address { return r.registry }

type getContractResult struct {
	Address string `json:"address"`
}

// Resolve returns the address registered under name.
func (r *Resolver) Resolve(ctx context.Context, name string) (gif.Address, error) {
	if cached, ok := r.resolved.Get(name); ok {
		return cached.(gif.Address), nil
	}
	logger := ctxlog.FromContext(ctx).With("service", name, "registry", r.registry.String())

	key, err := gif.Bytes32(name)
	if err != nil {
		return "", r.fail(name, err)
	}

	logger.Debug("Resolving service address.")
	raw, err := r.caller.Call(ctx, transport.Request{
		To:     string(r.registry),
		Method: gif.MethodGetContract,
		Params: map[string]string{"name": key},
	})
	if err != nil {
		logger.Error("Registry lookup failed.", "error", err)
		return "", r.fail(name, err)
	}

	var res getContractResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", r.fail(name, fmt.Errorf("decode getContract result: %w", err))
	}
	if res.Address == "" {
		return "", r.fail(name, ErrUnknownName)
	}
	addr, err := gif.ParseAddress(res.Address)
	if err != nil {
		return "", r.fail(name, err)
	}
	if addr.IsZero() {
		return "", r.fail(name, ErrUnknownName)
	}

	r.resolved.Set(name, addr, gocache.NoExpiration)
	logger.Info("Resolved service address.", "address", addr.String())
	return addr, nil
}

func (r *Resolver) fail(name string, cause error) error {
	return &ResolutionError{Name: name, Registry: r.registry, Cause: cause}
}
