package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Backend is the subset of ethclient.Client the Client depends on.
// The simulated backend's client satisfies it as well.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client holds the connection to one network endpoint
type Client struct {
	mu       sync.RWMutex
	endpoint Endpoint
	backend  Backend
	raw      *rpc.Client // set for PoA endpoints dialled by Dial
	closer   func()

	nmu    sync.Mutex
	nonces map[common.Address]*nonceSlot
	// nonceGen is bumped on every connect; slots ignore a next nonce
	// recorded under an older generation.
	nonceGen uint64

	pollInterval time.Duration
	logger       *zap.Logger
}

// NewClient wraps an existing backend, e.g. a simulated chain
func NewClient(endpoint Endpoint, backend Backend, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:     endpoint,
		backend:      backend,
		closer:       func() {},
		nonces:       make(map[common.Address]*nonceSlot),
		pollInterval: 2 * time.Second,
		logger:       logger,
	}
}

// Dial connects to the first reachable RPC URL of endpoint whose chain ID
// matches. PoA endpoints get the raw RPC handle installed before the chain
// ID query so every header read goes through the tolerant decoder.
func Dial(ctx context.Context, endpoint Endpoint, logger *zap.Logger) (*Client, error) {
	c := NewClient(endpoint, nil, logger)
	if err := c.connect(ctx, endpoint); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconnect switches the client to endpoint. The old connection is closed
// only after the new one is verified. Reservations held across the switch
// keep blocking their address; the locally tracked next nonce is dropped.
func (c *Client) Reconnect(ctx context.Context, endpoint Endpoint) error {
	return c.connect(ctx, endpoint)
}

func (c *Client) connect(ctx context.Context, endpoint Endpoint) error {
	if endpoint.ChainID == nil {
		return fmt.Errorf("%w: %s has no chain id", ErrUnsupportedNetwork, endpoint.Network)
	}
	if len(endpoint.RPCURLs) == 0 {
		return fmt.Errorf("%w: no RPC URL configured for %s", ErrConnection, endpoint.Network)
	}

	var lastErr error
	for _, rpcURL := range endpoint.RPCURLs {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		rc, err := rpc.DialContext(dialCtx, rpcURL)
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Debug("rpc dial failed", zap.String("network", string(endpoint.Network)), zap.Error(err))
			continue
		}

		ec := ethclient.NewClient(rc)
		candidate := &Client{endpoint: endpoint, backend: ec, logger: c.logger}
		if endpoint.RequiresPoA {
			candidate.raw = rc
			headCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err = candidate.LatestBlock(headCtx)
			cancel()
			if err != nil {
				rc.Close()
				lastErr = err
				continue
			}
		}

		idCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		chainID, err := ec.ChainID(idCtx)
		cancel()
		if err != nil {
			rc.Close()
			lastErr = err
			continue
		}

		if chainID.Cmp(endpoint.ChainID) != 0 {
			rc.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %s, got %s", endpoint.ChainID.String(), chainID.String())
			continue
		}

		c.mu.Lock()
		old := c.closer
		c.endpoint = endpoint
		c.backend = ec
		c.raw = candidate.raw
		c.closer = ec.Close
		c.mu.Unlock()
		if old != nil {
			old()
		}

		c.nmu.Lock()
		c.nonceGen++
		c.nmu.Unlock()
		return nil
	}

	return fmt.Errorf("%w: failed to connect to %s: %v", ErrConnection, endpoint.Network, lastErr)
}

func (c *Client) current() (Backend, Endpoint) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend, c.endpoint
}

// Endpoint returns the active endpoint
func (c *Client) Endpoint() Endpoint {
	_, ep := c.current()
	return ep
}

// Network returns the active network
func (c *Client) Network() Network {
	return c.Endpoint().Network
}

// ChainID returns the active chain ID
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.Endpoint().ChainID)
}

// IsConnected probes the endpoint; any error reads as false
func (c *Client) IsConnected(ctx context.Context) bool {
	_, err := c.LatestBlock(ctx)
	return err == nil
}

// Balance returns the native balance of address in base units
func (c *Client) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	backend, _ := c.current()
	bal, err := backend.BalanceAt(ctx, address, nil)
	return bal, wrapTransport("balance", err)
}

// Nonce returns the pending transaction count for address
func (c *Client) Nonce(ctx context.Context, address common.Address) (uint64, error) {
	backend, _ := c.current()
	n, err := backend.PendingNonceAt(ctx, address)
	return n, wrapTransport("nonce", err)
}

// SuggestGasPrice returns the suggested legacy gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	backend, _ := c.current()
	price, err := backend.SuggestGasPrice(ctx)
	return price, wrapTransport("gas price", err)
}

// EstimateGas estimates gas for a call. A node refusing the call (revert,
// insufficient funds) comes back as *BroadcastError, since sending the same
// transaction would be refused the same way.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	backend, _ := c.current()
	gas, err := backend.EstimateGas(ctx, msg)
	if err != nil && isRejection(err) {
		return 0, fmt.Errorf("estimate gas: %w", classifyRejection(err))
	}
	return gas, wrapTransport("estimate gas", err)
}

// CallContract executes a read-only contract call
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	backend, _ := c.current()
	out, err := backend.CallContract(ctx, msg, nil)
	return out, wrapTransport("call", err)
}

// TransactionReceipt gets the receipt for a mined transaction
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	backend, _ := c.current()
	return backend.TransactionReceipt(ctx, txHash)
}

// WaitMined polls until the transaction has a receipt or ctx is done
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		// Transaction not yet mined, continue waiting

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the underlying connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
}
