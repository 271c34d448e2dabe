package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// nonceSlot serialises nonce use for one address. sem is a one-slot
// semaphore so waiters can give up when their context ends; next and known
// are only touched while holding it.
type nonceSlot struct {
	sem   chan struct{}
	next  uint64
	known bool
	gen   uint64
}

func (c *Client) generation() uint64 {
	c.nmu.Lock()
	defer c.nmu.Unlock()
	return c.nonceGen
}

func (c *Client) slot(address common.Address) *nonceSlot {
	c.nmu.Lock()
	defer c.nmu.Unlock()

	s, ok := c.nonces[address]
	if !ok {
		s = &nonceSlot{sem: make(chan struct{}, 1)}
		c.nonces[address] = s
	}
	return s
}

// ReserveNonce fetches the next nonce for address and holds it until
// release is called. Concurrent callers for the same address wait; other
// addresses are unaffected. The nonce is the larger of the node's pending
// count and one past the last nonce released as used, which covers nodes
// that report pending counts late.
func (c *Client) ReserveNonce(ctx context.Context, address common.Address) (uint64, func(used bool), error) {
	s := c.slot(address)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}

	gen := c.generation()
	if s.gen != gen {
		s.gen = gen
		s.known = false
	}

	pending, err := c.Nonce(ctx, address)
	if err != nil {
		<-s.sem
		return 0, nil, err
	}

	nonce := pending
	if s.known && s.next > nonce {
		nonce = s.next
	}

	var once sync.Once
	release := func(used bool) {
		once.Do(func() {
			if used && c.generation() == gen {
				s.next = nonce + 1
				s.known = true
			}
			<-s.sem
		})
	}
	return nonce, release, nil
}
