package quest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vladweat/optiquest/internal/chain"
	"github.com/vladweat/optiquest/internal/explorer"
	"github.com/vladweat/optiquest/internal/quote"
	"github.com/vladweat/optiquest/internal/tx"
	"github.com/vladweat/optiquest/internal/wallet"
)

var ErrConfig = errors.New("invalid quest configuration")

// Kind is the failure category reported for an attempt
type Kind string

const (
	KindConfig           Kind = "config"
	KindInvalidKeyFormat Kind = "invalid_key_format"
	KindAbiUnavailable   Kind = "abi_unavailable"
	KindSelectorNotFound Kind = "selector_not_found"
	KindPriceUnavailable Kind = "price_unavailable"
	KindSignature        Kind = "signature"
	KindBroadcast        Kind = "broadcast"
	KindTimeout          Kind = "timeout"
	KindCanceled         Kind = "canceled"
	KindConnection       Kind = "connection"
	KindPolicy           Kind = "policy"
	KindUnknown          Kind = "unknown"
)

// Classify maps an error from any stage onto a Kind
func Classify(err error) Kind {
	var ae *AttemptError
	if errors.As(err, &ae) && ae.Kind != "" {
		return ae.Kind
	}

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, chain.ErrConnection), errors.Is(err, explorer.ErrUnavailable):
		return KindConnection
	case errors.Is(err, explorer.ErrAbiUnavailable):
		return KindAbiUnavailable
	case errors.Is(err, explorer.ErrSelectorNotFound):
		return KindSelectorNotFound
	case errors.Is(err, explorer.ErrPriceUnavailable):
		return KindPriceUnavailable
	case errors.Is(err, chain.ErrSignature), errors.Is(err, wallet.ErrSignerLocked):
		return KindSignature
	case errors.Is(err, chain.ErrBroadcast):
		return KindBroadcast
	case errors.Is(err, wallet.ErrInvalidKeyFormat):
		return KindInvalidKeyFormat
	case errors.Is(err, tx.ErrPolicy):
		return KindPolicy
	case errors.Is(err, ErrConfig),
		errors.Is(err, tx.ErrBuild),
		errors.Is(err, quote.ErrInvalidQuote),
		errors.Is(err, chain.ErrUnsupportedNetwork),
		errors.Is(err, chain.ErrNoDecimals),
		errors.Is(err, explorer.ErrUnknownNetwork):
		return KindConfig
	}
	return KindUnknown
}

// Retryable reports whether a fresh attempt may succeed: timeouts, transport
// failures, explorer rate limiting and transient node rejections.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindConnection, KindPriceUnavailable:
		return true
	case KindBroadcast:
		var be *chain.BroadcastError
		return errors.As(err, &be) && be.Transient
	}
	return false
}

// Stage names one step of a swap attempt
type Stage int

const (
	StageResolveAddress Stage = iota + 1
	StageFetchNonce
	StageResolveFunction
	StageComputeQuote
	StageBuildTransaction
	StageSign
	StageBroadcast
)

func (s Stage) String() string {
	switch s {
	case StageResolveAddress:
		return "ResolveAddress"
	case StageFetchNonce:
		return "FetchNonce"
	case StageResolveFunction:
		return "ResolveFunction"
	case StageComputeQuote:
		return "ComputeQuote"
	case StageBuildTransaction:
		return "BuildTransaction"
	case StageSign:
		return "Sign"
	case StageBroadcast:
		return "Broadcast"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// AttemptError reports the stage at which an attempt stopped
type AttemptError struct {
	Stage   Stage
	Address common.Address
	Kind    Kind
	Err     error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s failed for %s (%s): %v", e.Stage, e.Address.Hex(), e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

func stageError(stage Stage, address common.Address, err error) *AttemptError {
	return &AttemptError{Stage: stage, Address: address, Kind: Classify(err), Err: err}
}
