package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRPCServer serves eth_chainId and a PoA-style eth_getBlockByNumber whose
// extraData is longer than a strict header decoder accepts.
func newRPCServer(t *testing.T, chainID string) *httptest.Server {
	t.Helper()
	extra := "0x" + strings.Repeat("ab", 97)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		switch req.Method {
		case "eth_chainId":
			result = chainID
		case "eth_getTransactionCount":
			result = "0x5"
		case "eth_getBlockByNumber":
			result = map[string]any{
				"number":        "0x10",
				"hash":          "0x" + strings.Repeat("11", 32),
				"extraData":     extra,
				"baseFeePerGas": "0x3b9aca00",
			}
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func poaEndpoint(urls ...string) Endpoint {
	ep := DefaultEndpoints()[Optimism]
	ep.RPCURLs = urls
	return ep
}

func TestDial(t *testing.T) {
	ctx := context.Background()

	t.Run("PoA endpoint with long extraData", func(t *testing.T) {
		srv := newRPCServer(t, "0xa")

		c, err := Dial(ctx, poaEndpoint(srv.URL), nil)
		require.NoError(t, err)
		defer c.Close()

		n, err := c.LatestBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(16), n)
		assert.Equal(t, Optimism, c.Network())
		assert.True(t, c.IsConnected(ctx))
	})

	t.Run("falls through to the next URL", func(t *testing.T) {
		srv := newRPCServer(t, "0xa")

		c, err := Dial(ctx, poaEndpoint("http://127.0.0.1:1", srv.URL), nil)
		require.NoError(t, err)
		c.Close()
	})

	t.Run("chain id mismatch", func(t *testing.T) {
		srv := newRPCServer(t, "0x1")

		_, err := Dial(ctx, poaEndpoint(srv.URL), nil)
		require.ErrorIs(t, err, ErrConnection)
		assert.Contains(t, err.Error(), "chain ID mismatch")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := Dial(ctx, poaEndpoint("http://127.0.0.1:1"), nil)
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("no URLs", func(t *testing.T) {
		_, err := Dial(ctx, poaEndpoint(), nil)
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("missing chain id", func(t *testing.T) {
		ep := poaEndpoint("http://127.0.0.1:1")
		ep.ChainID = nil
		_, err := Dial(ctx, ep, nil)
		assert.ErrorIs(t, err, ErrUnsupportedNetwork)
	})
}

func TestClient_Reconnect(t *testing.T) {
	ctx := context.Background()
	optimism := newRPCServer(t, "0xa")
	arbitrum := newRPCServer(t, "0xa4b1")

	c, err := Dial(ctx, poaEndpoint(optimism.URL), nil)
	require.NoError(t, err)
	defer c.Close()

	t.Run("switches network", func(t *testing.T) {
		ep := DefaultEndpoints()[Arbitrum]
		ep.RPCURLs = []string{arbitrum.URL}

		require.NoError(t, c.Reconnect(ctx, ep))
		assert.Equal(t, Arbitrum, c.Network())
		assert.Equal(t, 0, c.ChainID().Cmp(big.NewInt(42161)))
	})

	t.Run("failed reconnect keeps the active endpoint", func(t *testing.T) {
		err := c.Reconnect(ctx, poaEndpoint("http://127.0.0.1:1"))
		require.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, Arbitrum, c.Network())
	})
}

func TestReconnect_KeepsNonceReservations(t *testing.T) {
	ctx := context.Background()
	srv := newRPCServer(t, "0xa")
	addr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	c, err := Dial(ctx, poaEndpoint(srv.URL), nil)
	require.NoError(t, err)
	defer c.Close()

	t.Run("held reservation still blocks after reconnect", func(t *testing.T) {
		nonce, release, err := c.ReserveNonce(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), nonce)

		require.NoError(t, c.Reconnect(ctx, poaEndpoint(srv.URL)))

		waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		_, _, err = c.ReserveNonce(waitCtx, addr)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		release(true)
	})

	t.Run("nonce used before reconnect does not leak into new connection", func(t *testing.T) {
		_, release, err := c.ReserveNonce(ctx, addr)
		require.NoError(t, err)
		require.NoError(t, c.Reconnect(ctx, poaEndpoint(srv.URL)))
		release(true)

		nonce, release, err := c.ReserveNonce(ctx, addr)
		require.NoError(t, err)
		defer release(false)
		assert.Equal(t, uint64(5), nonce)
	})

	t.Run("nonce used on the same connection is tracked", func(t *testing.T) {
		_, release, err := c.ReserveNonce(ctx, addr)
		require.NoError(t, err)
		release(true)

		nonce, release, err := c.ReserveNonce(ctx, addr)
		require.NoError(t, err)
		defer release(false)
		assert.Equal(t, uint64(6), nonce)
	})
}
