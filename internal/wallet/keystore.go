package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
)

var ErrAccountLocked = errors.New("account could not be unlocked")

// KeystoreManager manages an encrypted go-ethereum keystore directory,
// an alternative to the plain key file.
type KeystoreManager struct {
	ks  *keystore.KeyStore
	dir string
}

// NewKeystoreManager opens (creating if needed) the keystore directory
func NewKeystoreManager(dir string) (*KeystoreManager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	// StandardScryptN and StandardScryptP are secure defaults
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)

	return &KeystoreManager{ks: ks, dir: dir}, nil
}

// ImportKey imports a private key and encrypts it with the password
func (km *KeystoreManager) ImportKey(privateKeyHex string, password string) (accounts.Account, error) {
	privateKey, err := ParseKey(privateKeyHex)
	if err != nil {
		return accounts.Account{}, err
	}

	return km.ks.ImportECDSA(privateKey, password)
}

// ListAccounts returns all accounts in the keystore
func (km *KeystoreManager) ListAccounts() []accounts.Account {
	return km.ks.Accounts()
}

// Wallets decrypts every account with password. All accounts must share
// the password; the first failure aborts.
func (km *KeystoreManager) Wallets(password string) ([]Wallet, error) {
	var out []Wallet
	for _, acc := range km.ks.Accounts() {
		keyJSON, err := os.ReadFile(acc.URL.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(acc.URL.Path), err)
		}

		key, err := keystore.DecryptKey(keyJSON, password)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccountLocked, acc.Address.Hex(), err)
		}
		out = append(out, Wallet{Key: key.PrivateKey, Address: key.Address})
	}
	return out, nil
}

// LoadKeystoreDir loads every account in dir into a KeyStore
func LoadKeystoreDir(dir, password string) (*KeyStore, error) {
	km, err := NewKeystoreManager(dir)
	if err != nil {
		return nil, err
	}

	wallets, err := km.Wallets(password)
	if err != nil {
		return nil, err
	}
	return NewKeyStore(wallets), nil
}
