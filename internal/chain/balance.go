package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Common ERC20 ABI function selectors
var (
	// balanceOf(address)
	balanceOfSelector = common.Hex2Bytes("70a08231")
	// decimals()
	decimalsSelector = common.Hex2Bytes("313ce567")
	// symbol()
	symbolSelector = common.Hex2Bytes("95d89b41")
)

// TokenBalance represents a token balance
type TokenBalance struct {
	TokenAddress string   `json:"token_address"`
	Symbol       string   `json:"symbol"`
	Balance      *big.Int `json:"balance"`
	Decimals     uint8    `json:"decimals"`
}

// NativeBalance represents a native token balance
type NativeBalance struct {
	Network  Network  `json:"network"`
	Symbol   string   `json:"symbol"`
	Balance  *big.Int `json:"balance"`
	Decimals uint8    `json:"decimals"` // Always 18 for native tokens
}

// GetNativeBalance returns the native token balance for an address
func (c *Client) GetNativeBalance(ctx context.Context, address common.Address) (*NativeBalance, error) {
	balance, err := c.Balance(ctx, address)
	if err != nil {
		return nil, err
	}

	ep := c.Endpoint()
	return &NativeBalance{
		Network:  ep.Network,
		Symbol:   ep.NativeCurrency,
		Balance:  balance,
		Decimals: NativeDecimals,
	}, nil
}

// GetTokenBalance returns the balance of an ERC20 token
func (c *Client) GetTokenBalance(ctx context.Context, tokenAddress, holderAddress common.Address) (*TokenBalance, error) {
	// Build balanceOf call data
	callData := make([]byte, 36)
	copy(callData[:4], balanceOfSelector)
	copy(callData[4:], common.LeftPadBytes(holderAddress.Bytes(), 32))

	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: callData})
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}

	decimals, err := c.TokenDecimals(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}

	// Symbol is cosmetic; an unreadable one is left blank.
	symbol, _ := c.getTokenSymbol(ctx, tokenAddress)

	return &TokenBalance{
		TokenAddress: tokenAddress.Hex(),
		Symbol:       symbol,
		Balance:      new(big.Int).SetBytes(result),
		Decimals:     decimals,
	}, nil
}

// TokenDecimals reads decimals() from an ERC20 contract. Unlike a display
// helper it never guesses: amounts derived from the result are signed into
// transactions.
func (c *Client) TokenDecimals(ctx context.Context, tokenAddress common.Address) (uint8, error) {
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: decimalsSelector})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrNoDecimals, tokenAddress.Hex(), err)
	}

	if len(result) == 0 {
		return 0, fmt.Errorf("%w: %s returned no data", ErrNoDecimals, tokenAddress.Hex())
	}

	d := new(big.Int).SetBytes(result)
	if !d.IsUint64() || d.Uint64() > 255 {
		return 0, fmt.Errorf("%w: %s returned %s", ErrNoDecimals, tokenAddress.Hex(), d.String())
	}
	return uint8(d.Uint64()), nil
}

func (c *Client) getTokenSymbol(ctx context.Context, tokenAddress common.Address) (string, error) {
	result, err := c.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: symbolSelector})
	if err != nil {
		return "", err
	}

	return decodeString(result), nil
}

// decodeString decodes an ABI-encoded string
func decodeString(data []byte) string {
	if len(data) < 64 {
		// Try to decode as a fixed-length string (some tokens do this)
		return strings.TrimRight(string(data), "\x00")
	}

	// Standard ABI encoding: offset (32 bytes) + length (32 bytes) + data
	length := new(big.Int).SetBytes(data[32:64]).Int64()
	if length == 0 || int(length) > len(data)-64 {
		return ""
	}

	return strings.TrimRight(string(data[64:64+length]), "\x00")
}
