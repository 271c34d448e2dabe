// Package explorer talks to etherscan-like block explorer APIs: contract ABI
// retrieval, function lookup by selector, and the native currency USD price.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vladweat/optiquest/internal/chain"
)

// Endpoint is one explorer API
type Endpoint struct {
	BaseURL string
	APIKey  string
}

type abiKey struct {
	network chain.Network
	address common.Address
}

type handleKey struct {
	network  chain.Network
	address  common.Address
	selector string
}

// Resolver fetches contract interfaces and keeps them for the life of the
// process. Entries are inserted once and never expire.
type Resolver struct {
	http      *http.Client
	endpoints map[chain.Network]Endpoint
	logger    *zap.Logger

	mu      sync.RWMutex
	abis    map[abiKey]*abi.ABI
	handles map[handleKey]*ContractHandle
}

// NewResolver creates a resolver. A nil httpClient gets a 15s timeout client.
func NewResolver(endpoints map[chain.Network]Endpoint, httpClient *http.Client, logger *zap.Logger) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	eps := make(map[chain.Network]Endpoint, len(endpoints))
	for n, ep := range endpoints {
		ep.BaseURL = strings.TrimRight(ep.BaseURL, "/")
		eps[n] = ep
	}
	return &Resolver{
		http:      httpClient,
		endpoints: eps,
		logger:    logger,
		abis:      make(map[abiKey]*abi.ABI),
		handles:   make(map[handleKey]*ContractHandle),
	}
}

var errBadResponse = errors.New("couldn't decode explorer response")

// apiResponse is the envelope every etherscan-like endpoint returns
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (r *apiResponse) IsOK() bool {
	return r.Status == "1"
}

// message returns the most useful failure text; etherscan puts it in result
// as often as in message.
func (r *apiResponse) message() string {
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil && s != "" {
		return s
	}
	return r.Message
}

func (r *Resolver) get(ctx context.Context, network chain.Network, params url.Values) (*apiResponse, error) {
	ep, ok := r.endpoints[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, network)
	}
	if ep.APIKey != "" {
		params.Set("apikey", ep.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL+"/api?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// url.Error carries the full URL including the API key
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%w: %w: %s %s: %v", ErrUnavailable, chain.ErrConnection, network, params.Get("action"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w: %s %s: HTTP %d", ErrUnavailable, chain.ErrConnection, network, params.Get("action"), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrUnavailable, chain.ErrConnection, err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadResponse, err)
	}
	return &out, nil
}

// FetchInterface downloads the verified ABI of address
func (r *Resolver) FetchInterface(ctx context.Context, network chain.Network, address common.Address) (*abi.ABI, error) {
	key := abiKey{network: network, address: address}

	r.mu.RLock()
	cached, ok := r.abis[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getabi")
	params.Set("address", address.Hex())

	resp, err := r.get(ctx, network, params)
	if err != nil {
		if errors.Is(err, errBadResponse) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAbiUnavailable, address.Hex(), err)
		}
		return nil, err
	}
	if !resp.IsOK() {
		return nil, fmt.Errorf("%w: %s: %s", ErrAbiUnavailable, address.Hex(), resp.message())
	}

	var abiJSON string
	if err := json.Unmarshal(resp.Result, &abiJSON); err != nil {
		return nil, fmt.Errorf("%w: %s: result is not a string", ErrAbiUnavailable, address.Hex())
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAbiUnavailable, address.Hex(), err)
	}

	r.mu.Lock()
	if existing, ok := r.abis[key]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.abis[key] = &parsed
	r.mu.Unlock()

	r.logger.Debug("fetched contract ABI",
		zap.String("network", string(network)),
		zap.String("address", address.Hex()),
		zap.Int("methods", len(parsed.Methods)))
	return &parsed, nil
}

// ResolveFunction finds the method whose 4-byte id matches selector ("0x7ff36ab5")
func ResolveFunction(parsed *abi.ABI, selector string) (*abi.Method, error) {
	id, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		return nil, fmt.Errorf("%w: %s: no ABI", ErrSelectorNotFound, selector)
	}
	m, err := parsed.MethodById(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSelectorNotFound, selector)
	}
	return m, nil
}

func parseSelector(selector string) ([]byte, error) {
	s := strings.TrimSpace(selector)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if len(s) != 10 {
		return nil, fmt.Errorf("%w: %q is not a 4-byte selector", ErrSelectorNotFound, selector)
	}
	id := common.FromHex(s)
	if len(id) != 4 {
		return nil, fmt.Errorf("%w: %q is not valid hex", ErrSelectorNotFound, selector)
	}
	return id, nil
}

// Resolve returns a cached handle for selector on the contract at address,
// fetching the ABI on first use.
func (r *Resolver) Resolve(ctx context.Context, network chain.Network, address common.Address, selector string) (*ContractHandle, error) {
	key := handleKey{network: network, address: address, selector: strings.ToLower(selector)}

	r.mu.RLock()
	h, ok := r.handles[key]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	parsed, err := r.FetchInterface(ctx, network, address)
	if err != nil {
		return nil, err
	}
	method, err := ResolveFunction(parsed, selector)
	if err != nil {
		return nil, err
	}

	h = &ContractHandle{Network: network, Address: address, ABI: parsed, Method: method}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[key]; ok {
		return existing, nil
	}
	r.handles[key] = h
	return h, nil
}

type priceResult struct {
	EthUSD string `json:"ethusd"`
}

// NativeUSDPrice returns the explorer's current native currency price in USD
func (r *Resolver) NativeUSDPrice(ctx context.Context, network chain.Network) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("module", "stats")
	params.Set("action", "ethprice")

	resp, err := r.get(ctx, network, params)
	if err != nil {
		if errors.Is(err, errBadResponse) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}
		return decimal.Zero, err
	}
	if !resp.IsOK() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceUnavailable, resp.message())
	}

	var res priceResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	price, err := decimal.NewFromString(res.EthUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad ethusd %q", ErrPriceUnavailable, res.EthUSD)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive ethusd %s", ErrPriceUnavailable, price)
	}
	return price, nil
}
