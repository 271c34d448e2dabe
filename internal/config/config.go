// Package config loads optiquest settings from flags, environment, an
// optional YAML file and a best-effort .env file.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/explorer"
	"github.com/vladweat/optiquest/internal/quest"
	"github.com/vladweat/optiquest/internal/tx"
	"github.com/vladweat/optiquest/internal/wallet"
)

var ErrConfig = errors.New("invalid configuration")

const EnvPrefix = "OPTIQUEST"

type Config struct {
	Network  string         `mapstructure:"network"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Quest    QuestConfig    `mapstructure:"quest"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Store    StoreConfig    `mapstructure:"store"`
}

// RPCConfig overrides the built-in RPC URLs per network
type RPCConfig struct {
	Optimism string `mapstructure:"optimism"`
	Arbitrum string `mapstructure:"arbitrum"`
}

type ExplorerConfig struct {
	OptimismURL    string `mapstructure:"optimism_url"`
	OptimismAPIKey string `mapstructure:"optimism_api_key"`
	ArbitrumURL    string `mapstructure:"arbitrum_url"`
	ArbitrumAPIKey string `mapstructure:"arbitrum_api_key"`
}

type KeysConfig struct {
	File string `mapstructure:"file"`
	// OnInvalid is "fail" (default) or "skip"
	OnInvalid   string `mapstructure:"on_invalid"`
	KeystoreDir string `mapstructure:"keystore_dir"`
	Password    string `mapstructure:"password"`
}

type QuestConfig struct {
	Name           string        `mapstructure:"name"`
	Router         string        `mapstructure:"router"`
	Selector       string        `mapstructure:"selector"`
	Path           []string      `mapstructure:"path"`
	Value          string        `mapstructure:"value"`
	Spread         string        `mapstructure:"spread"`
	Slippage       string        `mapstructure:"slippage"`
	OutputDecimals uint8         `mapstructure:"output_decimals"`
	DeadlineWindow time.Duration `mapstructure:"deadline_window"`
	GasBuffer      uint64        `mapstructure:"gas_buffer"`
	MaxValueWei    string        `mapstructure:"max_value_wei"`
}

type RunnerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxTries       int           `mapstructure:"max_tries"`
	Backoff        time.Duration `mapstructure:"backoff"`
	Wait           bool          `mapstructure:"wait"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers every key with its default so that AutomaticEnv can
// see it.
func SetDefaults(v *viper.Viper) {
	sw := quest.DefaultSwapConfig()
	ro := quest.DefaultOptions()
	eps := chain.DefaultEndpoints()

	v.SetDefault("network", string(sw.Network))
	v.SetDefault("rpc.optimism", "")
	v.SetDefault("rpc.arbitrum", "")
	v.SetDefault("explorer.optimism_url", eps[chain.Optimism].ExplorerAPIURL)
	v.SetDefault("explorer.optimism_api_key", "")
	v.SetDefault("explorer.arbitrum_url", eps[chain.Arbitrum].ExplorerAPIURL)
	v.SetDefault("explorer.arbitrum_api_key", "")
	v.SetDefault("keys.file", "private_keys.txt")
	v.SetDefault("keys.on_invalid", "fail")
	v.SetDefault("keys.keystore_dir", "")
	v.SetDefault("keys.password", "")
	v.SetDefault("quest.name", quest.StargateSwapName)
	// router and path default per network in SwapConfig
	v.SetDefault("quest.router", "")
	v.SetDefault("quest.selector", sw.Selector)
	v.SetDefault("quest.path", []string{})
	v.SetDefault("quest.value", sw.BaseValue.String())
	v.SetDefault("quest.spread", sw.SpreadPercent.String())
	v.SetDefault("quest.slippage", sw.SlippagePercent.String())
	v.SetDefault("quest.output_decimals", 0)
	v.SetDefault("quest.deadline_window", sw.DeadlineWindow)
	v.SetDefault("quest.gas_buffer", sw.GasBufferPercent)
	v.SetDefault("quest.max_value_wei", "")
	v.SetDefault("runner.concurrency", ro.Concurrency)
	v.SetDefault("runner.attempt_timeout", ro.AttemptTimeout)
	v.SetDefault("runner.max_tries", ro.MaxTries)
	v.SetDefault("runner.backoff", ro.Backoff)
	v.SetDefault("runner.wait", false)
	v.SetDefault("runner.wait_timeout", ro.WaitTimeout)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("store.path", "")
}

// legacyEnv are the variable names the scripts used before this tool had a
// config file. The misspelled *_PRC names are still honoured.
var legacyEnv = map[string][]string{
	"rpc.optimism":              {"OPTIMISM_RPC", "OPTIMISM_PRC"},
	"rpc.arbitrum":              {"ARBITRUM_RPC", "ARBITRUM_PRC"},
	"explorer.optimism_api_key": {"OPTIMISM_API_KEY"},
	"explorer.arbitrum_api_key": {"ARBISCAN_API_KEY"},
	"keys.password":             {"KEYSTORE_PASSWORD"},
}

// BindEnv enables OPTIQUEST_* variables for every key plus the legacy names
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// LoadDotEnv reads a .env file into the process environment without
// overriding variables that are already set. A missing file is fine.
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		_ = godotenv.Load(p) // best-effort
	}
}

// Load decodes v into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// New builds a viper instance with defaults and env bindings applied
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks every field that can be checked without the network
func (c *Config) Validate() error {
	if _, err := chain.ParseNetwork(c.Network); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	switch strings.ToLower(c.Keys.OnInvalid) {
	case "", "fail", "skip":
	default:
		return fmt.Errorf("%w: keys.on_invalid must be fail or skip, got %q", ErrConfig, c.Keys.OnInvalid)
	}
	if c.Runner.Concurrency < 0 || c.Runner.MaxTries < 0 {
		return fmt.Errorf("%w: runner settings must not be negative", ErrConfig)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrConfig, c.Log.Format)
	}
	if _, err := c.SwapConfig(); err != nil {
		return err
	}
	return nil
}

// ChainNetwork returns the selected network
func (c *Config) ChainNetwork() chain.Network {
	n, _ := chain.ParseNetwork(c.Network)
	return n
}

// Endpoint resolves the selected network with any RPC override applied
func (c *Config) Endpoint() (chain.Endpoint, error) {
	return c.EndpointFor(c.ChainNetwork())
}

// EndpointFor resolves any supported network with its RPC override
func (c *Config) EndpointFor(n chain.Network) (chain.Endpoint, error) {
	override := ""
	switch n {
	case chain.Optimism:
		override = c.RPC.Optimism
	case chain.Arbitrum:
		override = c.RPC.Arbitrum
	}
	ep, err := chain.ResolveEndpoint(n, override)
	if err != nil {
		return chain.Endpoint{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return ep, nil
}

// ExplorerEndpoints returns explorer API settings for both networks
func (c *Config) ExplorerEndpoints() map[chain.Network]explorer.Endpoint {
	return map[chain.Network]explorer.Endpoint{
		chain.Optimism: {BaseURL: c.Explorer.OptimismURL, APIKey: c.Explorer.OptimismAPIKey},
		chain.Arbitrum: {BaseURL: c.Explorer.ArbitrumURL, APIKey: c.Explorer.ArbitrumAPIKey},
	}
}

// KeyLoadOptions maps keys.on_invalid onto wallet load options
func (c *Config) KeyLoadOptions() wallet.LoadOptions {
	return wallet.LoadOptions{SkipInvalid: strings.EqualFold(c.Keys.OnInvalid, "skip")}
}

// RunnerOptions maps the runner section
func (c *Config) RunnerOptions() quest.Options {
	return quest.Options{
		Concurrency:    c.Runner.Concurrency,
		AttemptTimeout: c.Runner.AttemptTimeout,
		MaxTries:       c.Runner.MaxTries,
		Backoff:        c.Runner.Backoff,
		WaitReceipt:    c.Runner.Wait,
		WaitTimeout:    c.Runner.WaitTimeout,
	}
}

// SwapConfig parses the quest section
func (c *Config) SwapConfig() (quest.SwapConfig, error) {
	sw := quest.DefaultSwapConfig()
	if n := c.ChainNetwork(); n != sw.Network {
		// the built-in router and path are Arbitrum contracts
		if c.Quest.Router == "" || len(c.Quest.Path) == 0 {
			return sw, fmt.Errorf("%w: quest.router and quest.path must be set for %s", ErrConfig, n)
		}
		sw.Network = n
	}

	if c.Quest.Router != "" {
		if !common.IsHexAddress(c.Quest.Router) {
			return sw, fmt.Errorf("%w: quest.router %q is not an address", ErrConfig, c.Quest.Router)
		}
		sw.Router = common.HexToAddress(c.Quest.Router)
	}
	if c.Quest.Selector != "" {
		sw.Selector = c.Quest.Selector
	}
	if len(c.Quest.Path) > 0 {
		sw.Path = sw.Path[:0:0]
		for _, p := range c.Quest.Path {
			p = strings.TrimSpace(p)
			if !common.IsHexAddress(p) {
				return sw, fmt.Errorf("%w: quest.path entry %q is not an address", ErrConfig, p)
			}
			sw.Path = append(sw.Path, common.HexToAddress(p))
		}
	}

	var err error
	if sw.BaseValue, err = parseDecimal("quest.value", c.Quest.Value, sw.BaseValue); err != nil {
		return sw, err
	}
	if sw.SpreadPercent, err = parseDecimal("quest.spread", c.Quest.Spread, sw.SpreadPercent); err != nil {
		return sw, err
	}
	if sw.SlippagePercent, err = parseDecimal("quest.slippage", c.Quest.Slippage, sw.SlippagePercent); err != nil {
		return sw, err
	}
	sw.OutputDecimals = c.Quest.OutputDecimals
	if c.Quest.DeadlineWindow > 0 {
		sw.DeadlineWindow = c.Quest.DeadlineWindow
	}
	sw.GasBufferPercent = c.Quest.GasBuffer

	if c.Quest.MaxValueWei != "" {
		limit, ok := new(big.Int).SetString(c.Quest.MaxValueWei, 10)
		if !ok || limit.Sign() <= 0 {
			return sw, fmt.Errorf("%w: quest.max_value_wei %q is not a positive integer", ErrConfig, c.Quest.MaxValueWei)
		}
		sw.Policy = tx.Policy{MaxPerTxWei: limit}
	}

	if err := sw.Validate(); err != nil {
		return sw, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return sw, nil
}

func parseDecimal(key, s string, def decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return def, fmt.Errorf("%w: %s %q is not a number", ErrConfig, key, s)
	}
	return d, nil
}
