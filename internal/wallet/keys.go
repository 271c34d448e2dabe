package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidKeyFormat = errors.New("invalid private key format")
	ErrNoKeys           = errors.New("no private keys loaded")
)

// Wallet pairs a private key with the address derived from it.
// Wallets live only in memory for the lifetime of the process.
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// Prefix returns the short address form used in log lines
func (w Wallet) Prefix() string {
	hex := w.Address.Hex()
	if len(hex) > 9 {
		return hex[:9]
	}
	return hex
}

// LoadOptions controls how malformed entries are handled.
type LoadOptions struct {
	// SkipInvalid records malformed lines in KeyStore.Skipped instead of
	// failing the whole load.
	SkipInvalid bool
}

// KeyStore is an ordered, deduplicated set of wallets.
type KeyStore struct {
	wallets []Wallet
	byAddr  map[common.Address]int
	skipped []int
}

// ParseKey parses a hex private key, with or without 0x prefix
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyFormat, err)
	}
	return key, nil
}

// AddressOf derives the address controlled by key
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Load reads newline-delimited private keys. Blank lines and lines starting
// with '#' are ignored. Errors never include key material, only line numbers.
func Load(r io.Reader, opts LoadOptions) (*KeyStore, error) {
	ks := &KeyStore{byAddr: make(map[common.Address]int)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, err := ParseKey(line)
		if err != nil {
			if opts.SkipInvalid {
				ks.skipped = append(ks.skipped, lineNo)
				continue
			}
			return nil, fmt.Errorf("%w: line %d", ErrInvalidKeyFormat, lineNo)
		}
		ks.add(Wallet{Key: key, Address: AddressOf(key)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}

	return ks, nil
}

// LoadFile opens path and loads keys from it
func LoadFile(path string, opts LoadOptions) (*KeyStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	return Load(f, opts)
}

// NewKeyStore builds a KeyStore from already-parsed wallets
func NewKeyStore(wallets []Wallet) *KeyStore {
	ks := &KeyStore{byAddr: make(map[common.Address]int)}
	for _, w := range wallets {
		ks.add(w)
	}
	return ks
}

func (ks *KeyStore) add(w Wallet) {
	if _, dup := ks.byAddr[w.Address]; dup {
		return
	}
	ks.byAddr[w.Address] = len(ks.wallets)
	ks.wallets = append(ks.wallets, w)
}

// Wallets returns the wallets in load order
func (ks *KeyStore) Wallets() []Wallet {
	out := make([]Wallet, len(ks.wallets))
	copy(out, ks.wallets)
	return out
}

// Count returns the number of loaded wallets
func (ks *KeyStore) Count() int {
	return len(ks.wallets)
}

// Skipped returns the 1-based line numbers that were rejected
func (ks *KeyStore) Skipped() []int {
	return ks.skipped
}

// Lookup returns the wallet for address
func (ks *KeyStore) Lookup(address common.Address) (Wallet, bool) {
	i, ok := ks.byAddr[address]
	if !ok {
		return Wallet{}, false
	}
	return ks.wallets[i], true
}
