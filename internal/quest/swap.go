package quest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/explorer"
	"github.com/vladweat/optiquest/internal/quote"
	"github.com/vladweat/optiquest/internal/tx"
	"github.com/vladweat/optiquest/internal/wallet"
)

// StargateSwapName is the swap of native ETH for USDC on Arbitrum that the
// Stargate quest requires.
const StargateSwapName = "stargate-swap"

// ChainClient is what a swap needs from the network
type ChainClient interface {
	Network() chain.Network
	ChainID() *big.Int
	ReserveNonce(ctx context.Context, address common.Address) (uint64, func(used bool), error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	Sign(tx *types.Transaction, signer chain.TxSigner) (*chain.SignedTransaction, error)
	Broadcast(ctx context.Context, stx *chain.SignedTransaction) error
}

// ContractResolver looks up a contract function by selector
type ContractResolver interface {
	Resolve(ctx context.Context, network chain.Network, address common.Address, selector string) (*explorer.ContractHandle, error)
}

// PriceOracle quotes the native currency in USD
type PriceOracle interface {
	NativeUSDPrice(ctx context.Context, network chain.Network) (decimal.Decimal, error)
}

// Deps are the collaborators a quest is built from
type Deps struct {
	Chain    ChainClient
	Resolver ContractResolver
	Prices   PriceOracle
	Quotes   *quote.Engine
	Swap     SwapConfig
	Logger   *zap.Logger
}

// SwapConfig describes a swapExactETHForTokens-style call:
// (amountOutMin, path, to, deadline) with the input sent as value.
type SwapConfig struct {
	Network  chain.Network
	Router   common.Address
	Selector string
	Path     []common.Address

	BaseValue       decimal.Decimal
	SpreadPercent   decimal.Decimal
	SlippagePercent decimal.Decimal
	DeadlineWindow  time.Duration

	// OutputDecimals overrides the decimals() read from the output token
	// when nonzero.
	OutputDecimals uint8

	GasBufferPercent uint64
	Policy           tx.Policy
}

// DefaultSwapConfig is the Arbitrum ETH -> USDC swap through the Sushi router
func DefaultSwapConfig() SwapConfig {
	return SwapConfig{
		Network:  chain.Arbitrum,
		Router:   common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506"),
		Selector: "0x7ff36ab5",
		Path: []common.Address{
			common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), // WETH
			common.HexToAddress("0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8"), // USDC.e
		},
		BaseValue:        decimal.RequireFromString("0.0001"),
		SpreadPercent:    decimal.NewFromInt(5),
		SlippagePercent:  decimal.NewFromInt(1),
		DeadlineWindow:   3 * time.Minute,
		GasBufferPercent: 20,
	}
}

// Validate checks the static parts of the configuration
func (c SwapConfig) Validate() error {
	if _, err := chain.ParseNetwork(string(c.Network)); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.Router == (common.Address{}) {
		return fmt.Errorf("%w: router address missing", ErrConfig)
	}
	if len(c.Path) < 2 {
		return fmt.Errorf("%w: swap path needs at least two tokens", ErrConfig)
	}
	if len(c.Selector) == 0 {
		return fmt.Errorf("%w: selector missing", ErrConfig)
	}
	if !c.BaseValue.IsPositive() {
		return fmt.Errorf("%w: value must be positive", ErrConfig)
	}
	if c.DeadlineWindow <= 0 {
		return fmt.Errorf("%w: deadline window must be positive", ErrConfig)
	}
	return nil
}

// OutputToken is the last token of the path
func (c SwapConfig) OutputToken() common.Address {
	return c.Path[len(c.Path)-1]
}

// SwapQuest swaps a randomized amount of native currency for the output
// token, one transaction per wallet.
type SwapQuest struct {
	name     string
	cfg      SwapConfig
	chain    ChainClient
	resolver ContractResolver
	prices   PriceOracle
	quotes   *quote.Engine
	logger   *zap.Logger

	dmu      sync.Mutex
	decimals uint8
	haveDec  bool
}

// NewSwapQuest validates cfg against deps and builds the quest
func NewSwapQuest(name string, cfg SwapConfig, deps Deps) (*SwapQuest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Chain == nil || deps.Resolver == nil || deps.Prices == nil {
		return nil, fmt.Errorf("%w: chain, resolver and price oracle are required", ErrConfig)
	}
	if deps.Chain.Network() != cfg.Network {
		return nil, fmt.Errorf("%w: quest runs on %s but client is connected to %s", ErrConfig, cfg.Network, deps.Chain.Network())
	}
	if deps.Quotes == nil {
		deps.Quotes = quote.NewEngine()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	q := &SwapQuest{
		name:     name,
		cfg:      cfg,
		chain:    deps.Chain,
		resolver: deps.Resolver,
		prices:   deps.Prices,
		quotes:   deps.Quotes,
		logger:   deps.Logger.With(zap.String("quest", name)),
	}
	if cfg.OutputDecimals != 0 {
		q.decimals, q.haveDec = cfg.OutputDecimals, true
	}
	return q, nil
}

func (q *SwapQuest) Name() string { return q.name }

func (q *SwapQuest) Network() chain.Network { return q.cfg.Network }

// Attempt runs every stage for w. The first failing stage aborts the rest
// and is reported in *AttemptError.
func (q *SwapQuest) Attempt(ctx context.Context, w wallet.Wallet) (*Result, error) {
	if w.Key == nil {
		return nil, stageError(StageResolveAddress, w.Address, fmt.Errorf("%w: wallet has no key", wallet.ErrInvalidKeyFormat))
	}
	address := wallet.AddressOf(w.Key)
	if w.Address != (common.Address{}) && w.Address != address {
		return nil, stageError(StageResolveAddress, w.Address, fmt.Errorf("%w: key does not match address", wallet.ErrInvalidKeyFormat))
	}

	nonce, release, err := q.chain.ReserveNonce(ctx, address)
	if err != nil {
		return nil, stageError(StageFetchNonce, address, err)
	}
	used := false
	defer func() { release(used) }()

	handle, err := q.resolver.Resolve(ctx, q.cfg.Network, q.cfg.Router, q.cfg.Selector)
	if err != nil {
		return nil, stageError(StageResolveFunction, address, err)
	}

	sq, err := q.quote(ctx)
	if err != nil {
		return nil, stageError(StageComputeQuote, address, err)
	}

	utx, err := q.build(ctx, handle, address, nonce, sq)
	if err != nil {
		return nil, stageError(StageBuildTransaction, address, err)
	}

	signer := wallet.NewKeySigner(wallet.Wallet{Key: w.Key, Address: address})
	defer signer.Lock()

	stx, err := q.chain.Sign(utx.Transaction(), signer)
	if err != nil {
		return nil, stageError(StageSign, address, err)
	}

	if err := q.chain.Broadcast(ctx, stx); err != nil {
		return nil, stageError(StageBroadcast, address, err)
	}
	used = true

	return &Result{
		Quest:    q.name,
		Address:  address,
		Hash:     stx.Hash,
		Nonce:    nonce,
		Gas:      utx.Gas,
		GasPrice: utx.GasPrice,
		Quote:    sq,
	}, nil
}

func (q *SwapQuest) quote(ctx context.Context) (quote.SwapQuote, error) {
	price, err := q.prices.NativeUSDPrice(ctx, q.cfg.Network)
	if err != nil {
		return quote.SwapQuote{}, err
	}
	decimals, err := q.outputDecimals(ctx)
	if err != nil {
		return quote.SwapQuote{}, err
	}

	return q.quotes.Quote(quote.Request{
		BaseValue:       q.cfg.BaseValue,
		SpreadPercent:   q.cfg.SpreadPercent,
		PriceUSD:        price,
		SlippagePercent: q.cfg.SlippagePercent,
		OutputDecimals:  int32(decimals),
		Window:          q.cfg.DeadlineWindow,
	})
}

// outputDecimals reads decimals() from the output token once per quest
func (q *SwapQuest) outputDecimals(ctx context.Context) (uint8, error) {
	q.dmu.Lock()
	defer q.dmu.Unlock()
	if q.haveDec {
		return q.decimals, nil
	}

	d, err := q.chain.TokenDecimals(ctx, q.cfg.OutputToken())
	if err != nil {
		return 0, err
	}
	q.decimals, q.haveDec = d, true
	q.logger.Debug("output token decimals", zap.String("token", q.cfg.OutputToken().Hex()), zap.Uint8("decimals", d))
	return d, nil
}

func (q *SwapQuest) build(ctx context.Context, handle *explorer.ContractHandle, from common.Address, nonce uint64, sq quote.SwapQuote) (*tx.UnsignedTransaction, error) {
	args := []interface{}{
		sq.MinOutput,
		q.cfg.Path,
		from,
		big.NewInt(sq.Deadline),
	}
	data, err := tx.EncodeCall(handle.Method, args...)
	if err != nil {
		return nil, err
	}

	gasPrice, err := q.chain.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	value := sq.InputWei()
	to := q.cfg.Router
	estimate, err := q.chain.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	utx, err := tx.Build(handle.Method, args, tx.Context{
		ChainID:  q.chain.ChainID(),
		From:     from,
		To:       to,
		Value:    value,
		GasPrice: gasPrice,
		Gas:      tx.WithGasBuffer(estimate, q.cfg.GasBufferPercent),
		Nonce:    nonce,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Validate(utx, q.cfg.Policy); err != nil {
		return nil, err
	}
	return utx, nil
}
