package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxSigner signs transactions for one address.
type TxSigner interface {
	Address() common.Address
	SignTransaction(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// SignedTransaction is a signed, encoded transaction ready for submission.
type SignedTransaction struct {
	Raw  []byte
	Hash common.Hash
	Tx   *types.Transaction
}

// Sign signs tx for the active chain. The recovered sender must match the
// signer's address.
func (c *Client) Sign(tx *types.Transaction, signer TxSigner) (*SignedTransaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrSignature)
	}
	chainID := c.ChainID()

	signed, err := signer.SignTransaction(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if from != signer.Address() {
		return nil, fmt.Errorf("%w: recovered %s, want %s", ErrSignature, from.Hex(), signer.Address().Hex())
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't encode tx: %v", ErrSignature, err)
	}

	return &SignedTransaction{Raw: raw, Hash: signed.Hash(), Tx: signed}, nil
}

// Broadcast submits a signed transaction. Node rejections come back as
// *BroadcastError, transport failures wrap ErrConnection. A node answering
// "already known" has the transaction, which counts as success.
func (c *Client) Broadcast(ctx context.Context, stx *SignedTransaction) error {
	backend, _ := c.current()

	err := backend.SendTransaction(ctx, stx.Tx)
	if err == nil {
		return nil
	}
	if isRejection(err) {
		if strings.Contains(strings.ToLower(err.Error()), "already known") {
			return nil
		}
		return classifyRejection(err)
	}
	return wrapTransport("broadcast", err)
}

// SignAndBroadcast signs tx and submits it, returning the signed form
func (c *Client) SignAndBroadcast(ctx context.Context, tx *types.Transaction, signer TxSigner) (*SignedTransaction, error) {
	stx, err := c.Sign(tx, signer)
	if err != nil {
		return nil, err
	}
	if err := c.Broadcast(ctx, stx); err != nil {
		return nil, err
	}
	return stx, nil
}
