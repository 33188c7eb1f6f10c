// Package transport defines the request/acknowledge contract used to reach the
// remote registry and services. Every call is synchronous: it returns only
// after the backend has acknowledged it or the call has failed.
//
// Concrete transports live in sub-packages: rpc (JSON-RPC over HTTP),
// socketio (socket.io emit with acknowledgement) and memory (an in-process
// simulated backend used for dry runs and tests).
package transport
