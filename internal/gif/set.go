package gif

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gifdeploy/internal/transport"
)

// ServiceName is the symbolic name a service is registered under.
type ServiceName string

const (
	OracleOwnerServiceName ServiceName = "OracleOwnerService"
	OperatorServiceName    ServiceName = "InstanceOperatorService"
	OracleServiceName      ServiceName = "OracleService"
	ProductServiceName     ServiceName = "ProductService"
)

// Resolver maps a symbolic service name to its live address.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Address, error)
}

// Services is the facade set of one run. Only the handles for the names
// passed to ResolveServices are populated.
type Services struct {
	Owner    *OwnerService
	Operator *OperatorService
	Oracle   *OracleService
	Product  *ProductService
}

// ResolveServices resolves each name once, in the order given, and stops at
// the first resolution failure. The resolver's error is returned unwrapped.
func ResolveServices(ctx context.Context, r Resolver, c transport.Caller, names ...ServiceName) (*Services, error) {
	set := &Services{}
	for _, name := range names {
		addr, err := r.Resolve(ctx, string(name))
		if err != nil {
			return nil, err
		}
		switch name {
		case OracleOwnerServiceName:
			set.Owner = NewOwnerService(addr, c)
		case OperatorServiceName:
			set.Operator = NewOperatorService(addr, c)
		case OracleServiceName:
			set.Oracle = NewOracleService(addr, c)
		case ProductServiceName:
			set.Product = NewProductService(addr, c)
		default:
			return nil, fmt.Errorf("no facade for service %q", name)
		}
	}
	return set, nil
}
