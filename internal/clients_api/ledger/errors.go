package ledger

import (
	"errors"
	"fmt"
	"strings"

	"holders-snapshot/internal/infra/apperr"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker"
)

// revertErrorCode is the JSON-RPC code geth-compatible nodes use for execution reverted.
const revertErrorCode = 3

// isRevert reports whether the node answered with a contract-level failure.
func isRevert(err error) bool {
	var re rpc.Error
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode() == revertErrorCode {
		return true
	}
	msg := strings.ToLower(re.Error())
	return strings.Contains(msg, "revert") || strings.Contains(msg, "invalid opcode")
}

// isContractFailure covers failures caused by the contract rather than the node.
func isContractFailure(err error) bool {
	return errors.Is(err, bind.ErrNoCode) || isRevert(err)
}

// classify maps a call failure onto the error taxonomy:
// no code at address -> config, revert -> execution, everything else -> transport.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, bind.ErrNoCode):
		return apperr.Config(op, fmt.Errorf("contract is not deployed on this network: %w", err))
	case isRevert(err):
		return apperr.Execution(op, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperr.Transport(op, fmt.Errorf("node circuit breaker rejected call: %w", err))
	default:
		return apperr.Transport(op, err)
	}
}
