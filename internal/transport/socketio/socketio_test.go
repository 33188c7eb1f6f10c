package socketio

import (
	"testing"

	"github.com/specialistvlad/gifdeploy/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestDecodeAck_Success(t *testing.T) {
	res := decodeAck("deployOracle", []any{map[string]any{
		"ok":     true,
		"result": map[string]any{"address": "0x00000000000000000000000000000000000000aa", "id": "7"},
	}})

	require.NoError(t, res.err)
	require.JSONEq(t, `{"address":"0x00000000000000000000000000000000000000aa","id":"7"}`, string(res.raw))
}

func TestDecodeAck_Refusal(t *testing.T) {
	res := decodeAck("approveOracle", []any{map[string]any{"ok": false, "reason": "unknown id"}})

	var rej *transport.Rejection
	require.ErrorAs(t, res.err, &rej)
	require.Equal(t, "unknown id", rej.Reason)
	require.Equal(t, "approveOracle", rej.Method)
}

func TestDecodeAck_Empty(t *testing.T) {
	res := decodeAck("approveOracle", nil)

	require.Error(t, res.err)
	require.False(t, transport.IsRejection(res.err))
}
