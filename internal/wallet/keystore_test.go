package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladweat/optiquest/internal/testutil"
)

func TestKeystoreManager_ImportKey(t *testing.T) {
	t.Run("imports valid private key", func(t *testing.T) {
		km, err := NewKeystoreManager(testutil.TempDir(t))
		require.NoError(t, err)

		account, err := km.ImportKey("0x"+testKey1, "testpassword")
		require.NoError(t, err)
		assert.Equal(t, testAddr1, account.Address.Hex())
		assert.Len(t, km.ListAccounts(), 1)
	})

	t.Run("rejects invalid hex", func(t *testing.T) {
		km, err := NewKeystoreManager(testutil.TempDir(t))
		require.NoError(t, err)

		_, err = km.ImportKey("not-a-valid-hex-key", "testpassword")
		assert.ErrorIs(t, err, ErrInvalidKeyFormat)
	})
}

func TestLoadKeystoreDir(t *testing.T) {
	dir := testutil.TempDir(t)
	km, err := NewKeystoreManager(dir)
	require.NoError(t, err)

	_, err = km.ImportKey(testKey1, "pw")
	require.NoError(t, err)
	_, err = km.ImportKey(testKey2, "pw")
	require.NoError(t, err)

	t.Run("decrypts all accounts", func(t *testing.T) {
		ks, err := LoadKeystoreDir(dir, "pw")
		require.NoError(t, err)
		require.Equal(t, 2, ks.Count())

		_, ok := ks.Lookup(AddressOf(mustKey(t, testKey1)))
		assert.True(t, ok)
		_, ok = ks.Lookup(AddressOf(mustKey(t, testKey2)))
		assert.True(t, ok)
	})

	t.Run("wrong password fails", func(t *testing.T) {
		_, err := LoadKeystoreDir(dir, "wrong")
		assert.ErrorIs(t, err, ErrAccountLocked)
	})
}
