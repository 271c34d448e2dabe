// Package quest runs on-chain quests for a batch of wallets. A quest is one
// transaction per wallet; the Runner fans attempts out over a bounded pool
// and keeps each wallet's failure to itself.
package quest

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/quote"
	"github.com/vladweat/optiquest/internal/wallet"
)

// Quest performs one attempt for one wallet
type Quest interface {
	Name() string
	Network() chain.Network
	Attempt(ctx context.Context, w wallet.Wallet) (*Result, error)
}

// Result describes a broadcast transaction
type Result struct {
	Quest    string
	Address  common.Address
	Hash     common.Hash
	Nonce    uint64
	Gas      uint64
	GasPrice *big.Int
	Quote    quote.SwapQuote
	Receipt  *types.Receipt
}

// Factory builds a quest from its dependencies
type Factory func(deps Deps) (Quest, error)

// Registry maps quest names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in quests
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(StargateSwapName, func(deps Deps) (Quest, error) {
		q, err := NewSwapQuest(StargateSwapName, deps.Swap, deps)
		if err != nil {
			return nil, err
		}
		return q, nil
	})
	return r
}

// Register adds or replaces a factory
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the named quest
func (r *Registry) New(name string, deps Deps) (Quest, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown quest %q", ErrConfig, name)
	}
	return f(deps)
}

// Names lists registered quests in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
