package wallet

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWallet(t *testing.T) Wallet {
	t.Helper()
	key := mustKey(t, testKey1)
	return Wallet{Key: key, Address: AddressOf(key)}
}

func TestKeySigner_SignTransaction(t *testing.T) {
	t.Run("signs transaction recoverable to wallet address", func(t *testing.T) {
		w := testWallet(t)
		signer := NewKeySigner(w)

		tx := types.NewTransaction(0, w.Address, big.NewInt(1000), 21000, big.NewInt(1000000000), nil)
		chainID := big.NewInt(42161)

		signed, err := signer.SignTransaction(tx, chainID)
		require.NoError(t, err)

		from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		require.NoError(t, err)
		assert.Equal(t, w.Address, from)
		assert.Equal(t, chainID, signed.ChainId())
	})

	t.Run("returns error when locked", func(t *testing.T) {
		w := testWallet(t)
		signer := NewKeySigner(w)
		signer.Lock()

		tx := types.NewTransaction(0, w.Address, big.NewInt(1000), 21000, big.NewInt(1000000000), nil)
		_, err := signer.SignTransaction(tx, big.NewInt(1))
		assert.ErrorIs(t, err, ErrSignerLocked)
	})
}

func TestKeySigner_Lock(t *testing.T) {
	t.Run("does not zero the wallet key", func(t *testing.T) {
		w := testWallet(t)
		signer := NewKeySigner(w)
		signer.Lock()

		assert.NotZero(t, w.Key.D.Sign())
		assert.Equal(t, testAddr1, AddressOf(w.Key).Hex())
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		signer := NewKeySigner(testWallet(t))
		signer.Lock()
		signer.Lock()
		signer.Lock()
	})
}

func TestKeySigner_Address(t *testing.T) {
	w := testWallet(t)
	assert.Equal(t, w.Address, NewKeySigner(w).Address())
}
