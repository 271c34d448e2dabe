package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrConnection         = errors.New("connection error")
	ErrSignature          = errors.New("signature error")
	ErrBroadcast          = errors.New("broadcast rejected")
	ErrNoDecimals         = errors.New("token decimals unavailable")
)

// BroadcastError is returned when a node rejected a transaction.
// Transient rejections (stale gas price, nonce race) may succeed on a fresh
// attempt; the rest (insufficient funds, revert) will not.
type BroadcastError struct {
	Reason    string
	Transient bool
	Err       error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast rejected (%s): %v", e.Reason, e.Err)
}

func (e *BroadcastError) Unwrap() error { return e.Err }

func (e *BroadcastError) Is(target error) bool { return target == ErrBroadcast }

var transientReasons = []string{
	"nonce too low",
	"replacement transaction underpriced",
	"transaction underpriced",
	"max fee per gas less than block base fee",
	"fee cap less than block base fee",
	"txpool is full",
	"future transaction tries to replace pending",
}

var deterministicReasons = []string{
	"insufficient funds",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"execution reverted",
	"invalid sender",
	"exceeds the configured cap",
	"oversized data",
}

// classifyRejection turns a node-side error into a BroadcastError.
func classifyRejection(err error) *BroadcastError {
	msg := strings.ToLower(err.Error())
	for _, r := range transientReasons {
		if strings.Contains(msg, r) {
			return &BroadcastError{Reason: r, Transient: true, Err: err}
		}
	}
	for _, r := range deterministicReasons {
		if strings.Contains(msg, r) {
			return &BroadcastError{Reason: r, Err: err}
		}
	}
	return &BroadcastError{Reason: "rejected", Err: err}
}

// isRejection reports whether err came back from the node as a JSON-RPC
// error, as opposed to a transport failure.
func isRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// wrapTransport tags errors that never reached the node with ErrConnection.
// Context errors and JSON-RPC errors pass through unchanged.
func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || isRejection(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrConnection, err)
}
