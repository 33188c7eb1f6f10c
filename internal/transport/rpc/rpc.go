// Package rpc reaches the backend with JSON-RPC 2.0 over HTTP. Each remote
// operation is one POST; the HTTP response is the acknowledgement.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/gifdeploy/internal/transport"
	"resty.dev/v3"
)

// Error codes the backend uses for refused calls. 3 is "execution reverted",
// -32000 is the generic server error most nodes use for the same thing.
const (
	codeReverted    = 3
	codeServerError = -32000
)

type request struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Method  string              `json:"method"`
	Params  []transport.Request `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is a transport.Caller over HTTP.
type Client struct {
	http     *resty.Client
	endpoint string
	nextID   atomic.Uint64
}

// New returns a client posting to endpoint. A zero timeout leaves calls
// bounded only by the caller's context.
func New(endpoint string, timeout time.Duration) *Client {
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c, endpoint: endpoint}
}

// Call implements transport.Caller.
func (c *Client) Call(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	var out response
	// Error responses are decoded too: some nodes report reverts with a
	// non-2xx status and a JSON-RPC error body.
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(request{JSONRPC: "2.0", ID: id, Method: req.Method, Params: []transport.Request{req}}).
		SetResult(&out).
		SetError(&out).
		Post(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", req.Method, err)
	}
	if out.Error != nil {
		if out.Error.Code == codeReverted || out.Error.Code == codeServerError {
			return nil, &transport.Rejection{Method: req.Method, Reason: out.Error.Message}
		}
		return nil, fmt.Errorf("post %s: rpc error %d: %s", req.Method, out.Error.Code, out.Error.Message)
	}
	if res.IsError() {
		return nil, fmt.Errorf("post %s: unexpected HTTP status %d", req.Method, res.StatusCode())
	}
	if out.ID != id {
		return nil, fmt.Errorf("post %s: response id %d does not match request id %d", req.Method, out.ID, id)
	}
	return out.Result, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}
