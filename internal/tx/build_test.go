package tx

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const swapABI = `[{"type":"function","name":"swapExactETHForTokens","stateMutability":"payable",
	"inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],
	"outputs":[{"name":"amounts","type":"uint256[]"}]}]`

var (
	router = common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506")
	sender = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	weth   = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdc   = common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8")
)

func swapMethod(t *testing.T) *abi.Method {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(swapABI))
	require.NoError(t, err)
	m := parsed.Methods["swapExactETHForTokens"]
	return &m
}

func swapArgs() []interface{} {
	return []interface{}{big.NewInt(99000000), []common.Address{weth, usdc}, sender, big.NewInt(1700000180)}
}

func buildContext() Context {
	return Context{
		ChainID:  big.NewInt(42161),
		From:     sender,
		To:       router,
		Value:    big.NewInt(100000000000000),
		GasPrice: big.NewInt(100000000),
		Gas:      180000,
		Nonce:    4,
	}
}

func TestEncodeCall(t *testing.T) {
	m := swapMethod(t)

	data, err := EncodeCall(m, swapArgs()...)
	require.NoError(t, err)
	assert.Equal(t, common.FromHex("0x7ff36ab5"), data[:4])

	decoded, err := m.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, 0, decoded[0].(*big.Int).Cmp(big.NewInt(99000000)))
	assert.Equal(t, []common.Address{weth, usdc}, decoded[1])
	assert.Equal(t, sender, decoded[2])

	_, err = EncodeCall(m, big.NewInt(1))
	assert.ErrorIs(t, err, ErrBuild)

	_, err = EncodeCall(nil)
	assert.ErrorIs(t, err, ErrBuild)
}

func TestBuild(t *testing.T) {
	m := swapMethod(t)

	t.Run("fields are carried over", func(t *testing.T) {
		utx, err := Build(m, swapArgs(), buildContext())
		require.NoError(t, err)

		tx := utx.Transaction()
		assert.Equal(t, uint64(4), tx.Nonce())
		assert.Equal(t, router, *tx.To())
		assert.Equal(t, big.NewInt(100000000000000), tx.Value())
		assert.Equal(t, big.NewInt(100000000), tx.GasPrice())
		assert.Equal(t, uint64(180000), tx.Gas())
		assert.Equal(t, utx.Data, tx.Data())
	})

	t.Run("identical inputs give identical transactions", func(t *testing.T) {
		a, err := Build(m, swapArgs(), buildContext())
		require.NoError(t, err)
		b, err := Build(m, swapArgs(), buildContext())
		require.NoError(t, err)

		rawA, err := a.Transaction().MarshalBinary()
		require.NoError(t, err)
		rawB, err := b.Transaction().MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, rawA, rawB)
		assert.Equal(t, a.Hash(), b.Hash())
	})

	t.Run("signing hash depends on chain", func(t *testing.T) {
		a, err := Build(m, swapArgs(), buildContext())
		require.NoError(t, err)
		ctx := buildContext()
		ctx.ChainID = big.NewInt(10)
		b, err := Build(m, swapArgs(), ctx)
		require.NoError(t, err)
		assert.NotEqual(t, a.Hash(), b.Hash())
	})

	t.Run("inputs are not aliased", func(t *testing.T) {
		ctx := buildContext()
		utx, err := Build(m, swapArgs(), ctx)
		require.NoError(t, err)
		ctx.Value.SetInt64(1)
		assert.Equal(t, big.NewInt(100000000000000), utx.Value)
	})

	t.Run("cost", func(t *testing.T) {
		utx, err := Build(m, swapArgs(), buildContext())
		require.NoError(t, err)
		want := new(big.Int).Add(big.NewInt(100000000000000), big.NewInt(180000*100000000))
		assert.Equal(t, 0, utx.Cost().Cmp(want))
	})

	t.Run("missing fields", func(t *testing.T) {
		mutations := map[string]func(c *Context){
			"chain id":  func(c *Context) { c.ChainID = nil },
			"value":     func(c *Context) { c.Value = nil },
			"negative":  func(c *Context) { c.Value = big.NewInt(-1) },
			"gas price": func(c *Context) { c.GasPrice = nil },
			"gas":       func(c *Context) { c.Gas = 0 },
		}
		for name, mutate := range mutations {
			t.Run(name, func(t *testing.T) {
				ctx := buildContext()
				mutate(&ctx)
				_, err := Build(m, swapArgs(), ctx)
				assert.ErrorIs(t, err, ErrBuild)
			})
		}
	})
}

func TestWithGasBuffer(t *testing.T) {
	assert.Equal(t, uint64(120000), WithGasBuffer(100000, 20))
	assert.Equal(t, uint64(21000), WithGasBuffer(21000, 0))
}
