// Package tx assembles unsigned transactions. Nothing here touches the
// network: the same inputs always produce the same transaction.
package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrBuild = errors.New("couldn't build transaction")

// UnsignedTransaction is a fully specified legacy (EIP-155) transaction
type UnsignedTransaction struct {
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Nonce    uint64
	Data     []byte
}

// Transaction returns the go-ethereum form, ready for signing
func (u *UnsignedTransaction) Transaction() *types.Transaction {
	to := u.To
	return types.NewTx(&types.LegacyTx{
		Nonce:    u.Nonce,
		GasPrice: new(big.Int).Set(u.GasPrice),
		Gas:      u.Gas,
		To:       &to,
		Value:    new(big.Int).Set(u.Value),
		Data:     common.CopyBytes(u.Data),
	})
}

// Hash returns the EIP-155 signing hash
func (u *UnsignedTransaction) Hash() common.Hash {
	return types.LatestSignerForChainID(u.ChainID).Hash(u.Transaction())
}

// Cost is value + gas * gasPrice
func (u *UnsignedTransaction) Cost() *big.Int {
	total := new(big.Int).Mul(u.GasPrice, new(big.Int).SetUint64(u.Gas))
	return total.Add(total, u.Value)
}

// Context carries the transaction fields that are not part of the call
type Context struct {
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	Value    *big.Int
	GasPrice *big.Int
	Gas      uint64
	Nonce    uint64
}

// EncodeCall packs selector + ABI-encoded arguments for method
func EncodeCall(method *abi.Method, args ...interface{}) ([]byte, error) {
	if method == nil {
		return nil, fmt.Errorf("%w: no method", ErrBuild)
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBuild, method.Sig, err)
	}
	data := make([]byte, 0, len(method.ID)+len(packed))
	data = append(data, method.ID...)
	return append(data, packed...), nil
}

// Build encodes the call and combines it with ctx into an unsigned transaction
func Build(method *abi.Method, args []interface{}, ctx Context) (*UnsignedTransaction, error) {
	switch {
	case ctx.ChainID == nil || ctx.ChainID.Sign() <= 0:
		return nil, fmt.Errorf("%w: chain id missing", ErrBuild)
	case ctx.Value == nil || ctx.Value.Sign() < 0:
		return nil, fmt.Errorf("%w: value missing or negative", ErrBuild)
	case ctx.GasPrice == nil || ctx.GasPrice.Sign() <= 0:
		return nil, fmt.Errorf("%w: gas price missing", ErrBuild)
	case ctx.Gas == 0:
		return nil, fmt.Errorf("%w: gas limit missing", ErrBuild)
	}

	data, err := EncodeCall(method, args...)
	if err != nil {
		return nil, err
	}

	return &UnsignedTransaction{
		ChainID:  new(big.Int).Set(ctx.ChainID),
		From:     ctx.From,
		To:       ctx.To,
		Value:    new(big.Int).Set(ctx.Value),
		GasPrice: new(big.Int).Set(ctx.GasPrice),
		Gas:      ctx.Gas,
		Nonce:    ctx.Nonce,
		Data:     data,
	}, nil
}

// WithGasBuffer adds percent on top of a gas estimate
func WithGasBuffer(estimate uint64, percent uint64) uint64 {
	return estimate + estimate*percent/100
}
