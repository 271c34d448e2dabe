package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ssgreg/repeat"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vladweat/optiquest/internal/metrics"
	"github.com/vladweat/optiquest/internal/store"
	"github.com/vladweat/optiquest/internal/wallet"
)

// Options tune how a Runner schedules attempts
type Options struct {
	// Concurrency bounds how many wallets are in flight at once
	Concurrency int
	// AttemptTimeout bounds a single try, retries get a fresh one
	AttemptTimeout time.Duration
	// MaxTries counts the first try
	MaxTries int
	// Backoff is the base of the full-jitter delay between tries
	Backoff time.Duration

	WaitReceipt bool
	WaitTimeout time.Duration
}

// DefaultOptions returns conservative runner settings
func DefaultOptions() Options {
	return Options{
		Concurrency:    4,
		AttemptTimeout: 60 * time.Second,
		MaxTries:       3,
		Backoff:        500 * time.Millisecond,
		WaitTimeout:    2 * time.Minute,
	}
}

// ReceiptWaiter blocks until a transaction is mined
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Journal persists outcomes
type Journal interface {
	RecordAttempt(ctx context.Context, a store.Attempt) error
	UpsertReceipt(ctx context.Context, network string, receipt *types.Receipt) error
}

// Outcome is the final state of one wallet after all tries
type Outcome struct {
	Address  common.Address
	Result   *Result
	Err      error
	Tries    int
	Duration time.Duration
}

func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// Report collects every wallet's outcome in input order
type Report struct {
	Quest    string
	Outcomes []Outcome
}

func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Runner executes a quest for many wallets
type Runner struct {
	quest   Quest
	opts    Options
	logger  *zap.Logger
	waiter  ReceiptWaiter
	journal Journal
}

// NewRunner creates a runner. Zero option fields take their defaults.
func NewRunner(q Quest, opts Options, logger *zap.Logger) *Runner {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.MaxTries <= 0 {
		opts.MaxTries = def.MaxTries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = def.WaitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{quest: q, opts: opts, logger: logger.With(zap.String("quest", q.Name()))}
}

// WithWaiter enables receipt polling when Options.WaitReceipt is set
func (r *Runner) WithWaiter(w ReceiptWaiter) *Runner {
	r.waiter = w
	return r
}

// WithJournal persists every outcome
func (r *Runner) WithJournal(j Journal) *Runner {
	r.journal = j
	return r
}

// Run attempts the quest once per wallet. It always returns a full report;
// individual failures are in the outcomes and never stop other wallets.
func (r *Runner) Run(ctx context.Context, wallets []wallet.Wallet) Report {
	report := Report{Quest: r.quest.Name(), Outcomes: make([]Outcome, len(wallets))}

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)

	for i, w := range wallets {
		i, w := i, w
		g.Go(func() error {
			report.Outcomes[i] = r.runWallet(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("quest run finished",
		zap.Int("wallets", len(wallets)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()))
	return report
}

func (r *Runner) runWallet(ctx context.Context, w wallet.Wallet) Outcome {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	start := time.Now()
	address := w.Address
	if address == (common.Address{}) && w.Key != nil {
		address = wallet.AddressOf(w.Key)
	}
	log := r.logger.With(zap.String("wallet", wallet.Wallet{Address: address}.Prefix()))

	var (
		res     *Result
		lastErr error
		tries   int
	)
	err := repeat.WithContext(ctx).Repeat(
		repeat.Fn(func() error {
			if err := ctx.Err(); err != nil {
				lastErr = err
				return err
			}
			tries++

			actx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
			res, lastErr = r.quest.Attempt(actx, w)
			cancel()

			if lastErr == nil {
				return nil
			}
			if Retryable(lastErr) && ctx.Err() == nil && tries < r.opts.MaxTries {
				log.Warn("attempt failed, retrying",
					zap.Int("try", tries),
					zap.String("kind", string(Classify(lastErr))),
					zap.Error(lastErr))
				return repeat.HintTemporary(lastErr)
			}
			return lastErr
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(r.opts.MaxTries),
		repeat.WithDelay(repeat.FullJitterBackoff(r.opts.Backoff).Set()),
	)
	if res == nil && lastErr == nil {
		lastErr = err
	}
	if res != nil {
		lastErr = nil
	}

	out := Outcome{Address: address, Result: res, Err: lastErr, Tries: tries}
	if out.OK() {
		log.Info(fmt.Sprintf("Wallet %s, transaction hash - %s", wallet.Wallet{Address: address}.Prefix(), res.Hash.Hex()),
			zap.String("tx", res.Hash.Hex()),
			zap.Uint64("nonce", res.Nonce),
			zap.String("value", res.Quote.InputNative.String()),
			zap.String("min_out", res.Quote.MinOutput.String()),
			zap.Int("tries", tries))
		r.waitReceipt(ctx, log, res)
	} else {
		var ae *AttemptError
		stage := ""
		if errors.As(lastErr, &ae) {
			stage = ae.Stage.String()
		}
		log.Error("quest attempt failed",
			zap.String("stage", stage),
			zap.String("kind", string(Classify(lastErr))),
			zap.Int("tries", tries),
			zap.Error(lastErr))
	}
	out.Duration = time.Since(start)

	retries := tries - 1
	if retries < 0 {
		retries = 0
	}
	metrics.ObserveAttempt(r.quest.Name(), string(r.quest.Network()), string(Classify(out.Err)), out.OK(), retries, out.Duration)
	r.record(ctx, log, out)
	return out
}

func (r *Runner) waitReceipt(ctx context.Context, log *zap.Logger, res *Result) {
	if !r.opts.WaitReceipt || r.waiter == nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, r.opts.WaitTimeout)
	defer cancel()

	receipt, err := r.waiter.WaitMined(wctx, res.Hash)
	if err != nil {
		log.Warn("receipt not available", zap.String("tx", res.Hash.Hex()), zap.Error(err))
		return
	}
	res.Receipt = receipt
	log.Info("transaction mined",
		zap.String("tx", res.Hash.Hex()),
		zap.Uint64("status", receipt.Status),
		zap.Uint64("gas_used", receipt.GasUsed))

	if r.journal != nil {
		if err := r.journal.UpsertReceipt(ctx, string(r.quest.Network()), receipt); err != nil {
			log.Warn("couldn't store receipt", zap.Error(err))
		}
	}
}

func (r *Runner) record(ctx context.Context, log *zap.Logger, out Outcome) {
	if r.journal == nil {
		return
	}
	a := store.Attempt{
		Quest:    r.quest.Name(),
		Network:  string(r.quest.Network()),
		Address:  out.Address.Hex(),
		Success:  out.OK(),
		Tries:    out.Tries,
		Duration: out.Duration,
	}
	if out.Result != nil {
		a.TxHash = out.Result.Hash.Hex()
		a.Nonce = out.Result.Nonce
	}
	if out.Err != nil {
		a.Kind = string(Classify(out.Err))
		a.Error = out.Err.Error()
		var ae *AttemptError
		if errors.As(out.Err, &ae) {
			a.Stage = ae.Stage.String()
		}
	}
	// the run context may already be done; the journal write should still land
	if err := r.journal.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		log.Warn("couldn't record attempt", zap.Error(err))
	}
}
