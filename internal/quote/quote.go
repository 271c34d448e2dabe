// Package quote computes the amounts that go into a swap: a randomized input
// value, its USD equivalent, the minimum acceptable output and the deadline.
package quote

import (
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladweat/optiquest/internal/chain"
)

var ErrInvalidQuote = errors.New("invalid quote parameters")

var hundred = decimal.NewFromInt(100)

// SwapQuote is the result of one quote computation
type SwapQuote struct {
	InputNative decimal.Decimal
	InputUSD    decimal.Decimal
	MinOutput   *big.Int
	Deadline    int64
}

// InputWei returns InputNative in base units
func (q SwapQuote) InputWei() *big.Int {
	return chain.ToBaseUnits(q.InputNative, chain.NativeDecimals)
}

// Randomize picks a value uniformly in [v*(1-s/100), v*(1+s/100)], rounded
// down to 18 decimal places. fraction must be in [0, 1).
func Randomize(v, spreadPercent decimal.Decimal, fraction float64) decimal.Decimal {
	s := spreadPercent.Div(hundred)
	lo := v.Mul(decimal.NewFromInt(1).Sub(s))
	width := v.Mul(s).Mul(decimal.NewFromInt(2))
	out := lo.Add(width.Mul(decimal.NewFromFloat(fraction)))

	hi := v.Mul(decimal.NewFromInt(1).Add(s))
	if out.GreaterThan(hi) {
		out = hi
	}
	return out.RoundDown(chain.NativeDecimals)
}

// USDValue converts a native amount to USD
func USDValue(native, priceUSD decimal.Decimal) decimal.Decimal {
	return native.Mul(priceUSD)
}

// MinOutputWithSlippage returns usd*(1-slippage/100) in base units of a token
// with the given decimals, truncating sub-unit dust.
func MinOutputWithSlippage(usd, slippagePercent decimal.Decimal, decimals int32) *big.Int {
	factor := decimal.NewFromInt(1).Sub(slippagePercent.Div(hundred))
	return chain.ToBaseUnits(usd.Mul(factor), decimals)
}

// Deadline returns now + window as unix seconds
func Deadline(now time.Time, window time.Duration) int64 {
	return now.Add(window).Unix()
}

// Request holds everything a quote depends on
type Request struct {
	BaseValue       decimal.Decimal
	SpreadPercent   decimal.Decimal
	PriceUSD        decimal.Decimal
	SlippagePercent decimal.Decimal
	OutputDecimals  int32
	Window          time.Duration
}

func (r Request) validate() error {
	switch {
	case !r.BaseValue.IsPositive():
		return fmt.Errorf("%w: base value must be positive", ErrInvalidQuote)
	case r.SpreadPercent.IsNegative() || r.SpreadPercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("%w: spread must be in [0, 100)", ErrInvalidQuote)
	case !r.PriceUSD.IsPositive():
		return fmt.Errorf("%w: price must be positive", ErrInvalidQuote)
	case r.SlippagePercent.IsNegative() || r.SlippagePercent.GreaterThanOrEqual(hundred):
		return fmt.Errorf("%w: slippage must be in [0, 100)", ErrInvalidQuote)
	case r.OutputDecimals < 0 || r.OutputDecimals > 255:
		return fmt.Errorf("%w: output decimals out of range", ErrInvalidQuote)
	case r.Window <= 0:
		return fmt.Errorf("%w: deadline window must be positive", ErrInvalidQuote)
	}
	return nil
}

// Engine produces quotes. It is safe for concurrent use.
type Engine struct {
	mu  sync.Mutex
	rnd *rand.Rand

	// Now is the clock used for deadlines
	Now func() time.Time
}

// NewEngine creates an engine seeded from the clock
func NewEngine() *Engine {
	return NewEngineWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewEngineWithSource creates an engine with a fixed random source
func NewEngineWithSource(src rand.Source) *Engine {
	return &Engine{rnd: rand.New(src), Now: time.Now}
}

func (e *Engine) fraction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Float64()
}

// Quote randomizes the input, prices it and derives the minimum output
func (e *Engine) Quote(req Request) (SwapQuote, error) {
	if err := req.validate(); err != nil {
		return SwapQuote{}, err
	}

	input := Randomize(req.BaseValue, req.SpreadPercent, e.fraction())
	usd := USDValue(input, req.PriceUSD)

	return SwapQuote{
		InputNative: input,
		InputUSD:    usd,
		MinOutput:   MinOutputWithSlippage(usd, req.SlippagePercent, req.OutputDecimals),
		Deadline:    Deadline(e.Now(), req.Window),
	}, nil
}
