package wallet

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrSignerLocked = errors.New("signer is locked")

// KeySigner signs with an in-memory private key.
type KeySigner struct {
	// mu protects key from concurrent access. Prevents signing operations from
	// racing with Lock() which zeros the key material.
	mu      sync.RWMutex
	address common.Address
	key     *ecdsa.PrivateKey // nil when locked
}

// NewKeySigner returns a signer holding its own copy of the wallet key, so
// Lock never touches the wallet's key.
func NewKeySigner(w Wallet) *KeySigner {
	key, err := crypto.ToECDSA(crypto.FromECDSA(w.Key))
	if err != nil {
		// w.Key came from ParseKey or the keystore, so this cannot fail.
		return &KeySigner{address: w.Address}
	}
	return &KeySigner{address: w.Address, key: key}
}

// Address returns the address of the signer
func (ks *KeySigner) Address() common.Address {
	return ks.address
}

// SignTransaction signs a transaction
func (ks *KeySigner) SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.key == nil {
		return nil, ErrSignerLocked
	}

	signer := types.LatestSignerForChainID(chainID)
	return types.SignTx(tx, signer, ks.key)
}

// Lock zeros private key material. Safe to call multiple times. After Lock(),
// all signing operations return ErrSignerLocked.
func (ks *KeySigner) Lock() {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.key != nil {
		ks.key.D.SetInt64(0)
		ks.key = nil
	}
}
