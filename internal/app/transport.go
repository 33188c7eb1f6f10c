package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gifdeploy/internal/config"
	"github.com/specialistvlad/gifdeploy/internal/pipeline"
	"github.com/specialistvlad/gifdeploy/internal/transport"
	"github.com/specialistvlad/gifdeploy/internal/transport/memory"
	"github.com/specialistvlad/gifdeploy/internal/transport/rpc"
	"github.com/specialistvlad/gifdeploy/internal/transport/socketio"
)

// openTransport builds the caller the network asks for. The memory backend
// starts empty, seeded so that it assigns the expected ids.
func (a *App) openTransport(ctx context.Context, n *config.Network, p pipeline.Params) (transport.Caller, error) {
	switch n.Transport {
	case TransportRPC:
		if n.Endpoint == "" {
			return nil, fmt.Errorf("network %q: the rpc transport needs an endpoint", n.Name)
		}
		return rpc.New(n.Endpoint, a.config.CallTimeout), nil
	case TransportSocketIO:
		if n.Endpoint == "" {
			return nil, fmt.Errorf("network %q: the socketio transport needs an endpoint", n.Name)
		}
		return socketio.Dial(ctx, socketio.Options{URL: n.Endpoint, Namespace: n.Namespace})
	case TransportMemory:
		var opts []memory.Option
		if p.OracleID != nil {
			opts = append(opts, memory.WithFirstOracleID(p.OracleID))
		}
		if p.ProductID != nil {
			opts = append(opts, memory.WithFirstProductID(p.ProductID))
		}
		return memory.New(p.Registry, opts...), nil
	}
	return nil, fmt.Errorf("network %q: unknown transport %q", n.Name, n.Transport)
}
