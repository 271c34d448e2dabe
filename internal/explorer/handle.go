package explorer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vladweat/optiquest/internal/chain"
)

// ContractHandle binds one contract function on one network
type ContractHandle struct {
	Network chain.Network
	Address common.Address
	ABI     *abi.ABI
	Method  *abi.Method
}

// Selector returns the 4-byte function id as 0x-hex
func (h *ContractHandle) Selector() string {
	return hexutil.Encode(h.Method.ID)
}

// Pack encodes a call to the bound function
func (h *ContractHandle) Pack(args ...interface{}) ([]byte, error) {
	data, err := h.ABI.Pack(h.Method.Name, args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode %s: %w", h.Method.Sig, err)
	}
	return data, nil
}
