package tx

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrPolicy = errors.New("rejected by policy")

// Policy enforces safety constraints before signing.
type Policy struct {
	MaxPerTxWei *big.Int
	AllowTo     []common.Address
	DenyTo      []common.Address
}

// Validate applies simple allow/deny and spend limits.
func Validate(utx *UnsignedTransaction, policy Policy) error {
	if utx == nil || utx.Value == nil {
		return fmt.Errorf("%w: value missing", ErrPolicy)
	}

	for _, a := range policy.DenyTo {
		if a == utx.To {
			return fmt.Errorf("%w: destination %s denied", ErrPolicy, utx.To.Hex())
		}
	}
	if len(policy.AllowTo) > 0 {
		allowed := false
		for _, a := range policy.AllowTo {
			if a == utx.To {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: destination %s not in allowlist", ErrPolicy, utx.To.Hex())
		}
	}
	if policy.MaxPerTxWei != nil && utx.Value.Cmp(policy.MaxPerTxWei) > 0 {
		return fmt.Errorf("%w: value %s exceeds max per tx %s", ErrPolicy, utx.Value, policy.MaxPerTxWei)
	}
	return nil
}
