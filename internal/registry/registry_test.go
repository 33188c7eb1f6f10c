package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/specialistvlad/gifdeploy/internal/gif"
	"github.com/specialistvlad/gifdeploy/internal/testutil"
	"github.com/specialistvlad/gifdeploy/internal/transport"
	"github.com/specialistvlad/gifdeploy/internal/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegistry gif.Address = "0x00000000000000000000000000000000000a11ce"

func TestResolve_CachesAddresses(t *testing.T) {
	// --- Arrange ---
	ctx, logs := testutil.Context(t)
	backend := memory.New(testRegistry)
	r := New(testRegistry, backend)

	// --- Act ---
	first, err := r.Resolve(ctx, string(gif.OracleServiceName))
	require.NoError(t, err)
	second, err := r.Resolve(ctx, string(gif.OracleServiceName))
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, backend.ServiceAddress(gif.OracleServiceName), first)
	assert.Equal(t, first, second)
	assert.Len(t, backend.Calls(), 1)
	assert.Contains(t, logs.String(), "Resolved service address.")
}

func TestResolve_UnknownName(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := memory.New(testRegistry, memory.WithoutService(gif.ProductServiceName))
	r := New(testRegistry, backend)

	// --- Act ---
	_, err := r.Resolve(ctx, string(gif.ProductServiceName))

	// --- Assert ---
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "ProductService", resErr.Name)
	assert.Equal(t, testRegistry, resErr.Registry)
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestResolve_TransportFailureIsResolutionError(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.Context(t)
	backend := memory.New(testRegistry)
	backend.Reject(gif.MethodGetContract, "registry paused")
	r := New(testRegistry, backend)

	// --- Act ---
	_, err := r.Resolve(ctx, string(gif.OperatorServiceName))

	// --- Assert ---
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.True(t, transport.IsRejection(err))
	assert.Contains(t, err.Error(), "registry paused")
}

type rawCaller json.RawMessage

func (c rawCaller) Call(context.Context, transport.Request) (json.RawMessage, error) {
	return json.RawMessage(c), nil
}

func (rawCaller) Close() error { return nil }

func TestResolve_MalformedAnswers(t *testing.T) {
	ctx, _ := testutil.Context(t)
	for name, raw := range map[string]string{
		"not json":     `[`,
		"bad address":  `{"address":"0x12"}`,
		"zero address": `{"address":"0x0000000000000000000000000000000000000000"}`,
		"empty":        `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(testRegistry, rawCaller(raw)).Resolve(ctx, "OracleService")
			var resErr *ResolutionError
			require.ErrorAs(t, err, &resErr)
		})
	}
}

func TestResolve_NamesThatDoNotFit(t *testing.T) {
	ctx, _ := testutil.Context(t)
	_, err := New(testRegistry, rawCaller(`{}`)).Resolve(ctx, "")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.False(t, errors.Is(err, ErrUnknownName))
}
