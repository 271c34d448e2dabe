package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// poaHeader decodes only the block fields the client reads. PoA-style
// networks return extraData longer than the 32 bytes a strict decoder allows
// and may omit fields types.Header requires, so headers on those networks
// are read through this type instead.
type poaHeader struct {
	Number    *hexutil.Big  `json:"number"`
	Hash      common.Hash   `json:"hash"`
	ExtraData hexutil.Bytes `json:"extraData"`
	BaseFee   *hexutil.Big  `json:"baseFeePerGas"`
}

var errNoHeader = errors.New("empty block header")

// LatestBlock returns the latest block number
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	raw, backend, poa := c.raw, c.backend, c.endpoint.RequiresPoA
	c.mu.RUnlock()

	if poa && raw != nil {
		var head *poaHeader
		if err := raw.CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
			return 0, wrapTransport("latest block", err)
		}
		if head == nil || head.Number == nil {
			return 0, fmt.Errorf("latest block: %w: %v", ErrConnection, errNoHeader)
		}
		return head.Number.ToInt().Uint64(), nil
	}

	n, err := backend.BlockNumber(ctx)
	return n, wrapTransport("latest block", err)
}
