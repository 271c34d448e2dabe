package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keySigner struct {
	t   *testing.T
	key []byte
}

func (s keySigner) Address() common.Address {
	k, err := crypto.ToECDSA(s.key)
	require.NoError(s.t, err)
	return crypto.PubkeyToAddress(k.PublicKey)
}

func (s keySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	k, err := crypto.ToECDSA(s.key)
	if err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k)
}

type wrongSigner struct{ keySigner }

func (s wrongSigner) Address() common.Address { return common.HexToAddress("0x01") }

func newTestSigner(t *testing.T) keySigner {
	return keySigner{t: t, key: common.FromHex("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")}
}

func testTx() *types.Transaction {
	to := common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	return types.NewTransaction(7, to, big.NewInt(1000), 21000, big.NewInt(100000000), []byte{0x7f, 0xf3, 0x6a, 0xb5})
}

func TestClient_Sign(t *testing.T) {
	c := NewClient(testEndpoint(), newFakeBackend(), nil)

	t.Run("signs for the endpoint chain", func(t *testing.T) {
		stx, err := c.Sign(testTx(), newTestSigner(t))
		require.NoError(t, err)
		assert.Equal(t, int64(42161), stx.Tx.ChainId().Int64())
		assert.Equal(t, stx.Tx.Hash(), stx.Hash)
		assert.Equal(t, crypto.Keccak256Hash(stx.Raw), stx.Hash)
	})

	t.Run("is deterministic", func(t *testing.T) {
		a, err := c.Sign(testTx(), newTestSigner(t))
		require.NoError(t, err)
		b, err := c.Sign(testTx(), newTestSigner(t))
		require.NoError(t, err)
		assert.Equal(t, a.Raw, b.Raw)
	})

	t.Run("sender mismatch is a signature error", func(t *testing.T) {
		_, err := c.Sign(testTx(), wrongSigner{newTestSigner(t)})
		assert.ErrorIs(t, err, ErrSignature)
	})

	t.Run("nil transaction is a signature error", func(t *testing.T) {
		_, err := c.Sign(nil, newTestSigner(t))
		assert.ErrorIs(t, err, ErrSignature)
	})
}

func TestClient_Broadcast(t *testing.T) {
	sign := func(t *testing.T, c *Client) *SignedTransaction {
		stx, err := c.Sign(testTx(), newTestSigner(t))
		require.NoError(t, err)
		return stx
	}

	t.Run("success", func(t *testing.T) {
		backend := newFakeBackend()
		c := NewClient(testEndpoint(), backend, nil)
		require.NoError(t, c.Broadcast(context.Background(), sign(t, c)))
		assert.Len(t, backend.sent, 1)
	})

	t.Run("insufficient funds is deterministic", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = testRPCError{"insufficient funds for gas * price + value"}
		c := NewClient(testEndpoint(), backend, nil)

		err := c.Broadcast(context.Background(), sign(t, c))
		require.ErrorIs(t, err, ErrBroadcast)
		var be *BroadcastError
		require.True(t, errors.As(err, &be))
		assert.False(t, be.Transient)
		assert.Equal(t, "insufficient funds", be.Reason)
	})

	t.Run("underpriced is transient", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = testRPCError{"transaction underpriced"}
		c := NewClient(testEndpoint(), backend, nil)

		var be *BroadcastError
		require.True(t, errors.As(c.Broadcast(context.Background(), sign(t, c)), &be))
		assert.True(t, be.Transient)
	})

	t.Run("nonce too low is transient", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = testRPCError{"nonce too low: address 0x.., tx: 1 state: 2"}
		c := NewClient(testEndpoint(), backend, nil)

		var be *BroadcastError
		require.True(t, errors.As(c.Broadcast(context.Background(), sign(t, c)), &be))
		assert.True(t, be.Transient)
	})

	t.Run("already known counts as success", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = testRPCError{"already known"}
		c := NewClient(testEndpoint(), backend, nil)
		assert.NoError(t, c.Broadcast(context.Background(), sign(t, c)))
	})

	t.Run("transport failure is a connection error", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = errors.New("dial tcp: connection refused")
		c := NewClient(testEndpoint(), backend, nil)

		err := c.Broadcast(context.Background(), sign(t, c))
		assert.ErrorIs(t, err, ErrConnection)
		assert.NotErrorIs(t, err, ErrBroadcast)
	})

	t.Run("deadline passes through", func(t *testing.T) {
		backend := newFakeBackend()
		backend.sendErr = context.DeadlineExceeded
		c := NewClient(testEndpoint(), backend, nil)

		err := c.Broadcast(context.Background(), sign(t, c))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrConnection)
	})
}

func TestClient_SignAndBroadcast(t *testing.T) {
	backend := newFakeBackend()
	c := NewClient(testEndpoint(), backend, nil)

	stx, err := c.SignAndBroadcast(context.Background(), testTx(), newTestSigner(t))
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, stx.Hash, backend.sent[0].Hash())
}

func TestClient_EstimateGas(t *testing.T) {
	t.Run("revert is a deterministic rejection", func(t *testing.T) {
		backend := newFakeBackend()
		backend.gasErr = testRPCError{"execution reverted: UniswapV2Router: EXPIRED"}
		c := NewClient(testEndpoint(), backend, nil)

		_, err := c.EstimateGas(context.Background(), ethereum.CallMsg{})
		var be *BroadcastError
		require.True(t, errors.As(err, &be))
		assert.False(t, be.Transient)
		assert.Equal(t, "execution reverted", be.Reason)
	})

	t.Run("transport failure", func(t *testing.T) {
		backend := newFakeBackend()
		backend.gasErr = errors.New("EOF")
		c := NewClient(testEndpoint(), backend, nil)

		_, err := c.EstimateGas(context.Background(), ethereum.CallMsg{})
		assert.ErrorIs(t, err, ErrConnection)
	})
}
