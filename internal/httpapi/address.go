package httpapi

import (
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/ethereum/go-ethereum/common"
)

// parseAddress validates raw as a well-formed 20-byte hex account
// identifier (§3), returning a Permanent MalformedAddress error otherwise
// — every handler that accepts a user-supplied address goes through this
// single gate.
func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, apperr.NewPermanent(apperr.ReasonMalformedAddress, "malformed address")
	}
	return common.HexToAddress(raw), nil
}
