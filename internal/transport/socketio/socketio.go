// Package socketio reaches the backend over a persistent socket.io
// connection. Each remote operation is emitted as one event and is complete
// when the server invokes the acknowledgement callback.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/specialistvlad/gifdeploy/internal/ctxlog"
	"github.com/specialistvlad/gifdeploy/internal/transport"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// CallEvent is the event every request is emitted on.
const CallEvent = "gif:call"

const connectTimeout = 15 * time.Second

// Options configures Dial.
type Options struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
}

// ack is the payload the server passes to the acknowledgement callback.
type ack struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

type ackResult struct {
	raw json.RawMessage
	err error
}

// Client is a transport.Caller over socket.io.
type Client struct {
	io *socket.Socket
}

// Dial connects and waits for the server to accept the connection.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "url", opts.URL)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	ioOpts := socket.DefaultOptions()
	ioOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		ioOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	ioOpts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, ioOpts)
	io := manager.Socket(opts.Namespace, ioOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Connected to backend.", "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	logger.Debug("Connecting...")
	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &Client{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(connectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", connectTimeout)
	}
}

// Call implements transport.Caller. It blocks until the server acknowledges
// or ctx is done; a late acknowledgement after ctx is done is dropped.
func (c *Client) Call(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	if !c.io.Connected() {
		return nil, fmt.Errorf("emit %s: socket is not connected", req.Method)
	}

	done := make(chan ackResult, 1)
	c.io.Emit(CallEvent, req, func(args []any, err error) {
		if err != nil {
			done <- ackResult{err: err}
			return
		}
		done <- decodeAck(req.Method, args)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("emit %s: waiting for acknowledgement: %w", req.Method, ctx.Err())
	case res := <-done:
		return res.raw, res.err
	}
}

func decodeAck(method string, args []any) ackResult {
	if len(args) == 0 {
		return ackResult{err: fmt.Errorf("emit %s: empty acknowledgement", method)}
	}
	payload, err := json.Marshal(args[0])
	if err != nil {
		return ackResult{err: fmt.Errorf("emit %s: encode acknowledgement: %w", method, err)}
	}
	var a ack
	if err := json.Unmarshal(payload, &a); err != nil {
		return ackResult{err: fmt.Errorf("emit %s: decode acknowledgement: %w", method, err)}
	}
	if !a.OK {
		return ackResult{err: &transport.Rejection{Method: method, Reason: a.Reason}}
	}
	return ackResult{raw: a.Result}
}

// Close disconnects the socket.
func (c *Client) Close() error {
	c.io.Disconnect()
	return nil
}
