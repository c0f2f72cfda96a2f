package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrUserRejected = errors.New("chain: rejected by user")
	ErrReverted     = errors.New("chain: transaction reverted")
	ErrTimeout      = errors.New("chain: confirmation timed out")
	ErrGasLimit     = errors.New("chain: estimated gas exceeds limit")
)

// IsRevert reports whether err came from the node refusing a call because
// the contract reverted (eth_call / eth_estimateGas) or from a failed receipt.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrReverted) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// revertReason extracts the revert payload when the node attached one.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok && data != "" {
			return data
		}
	}
	return err.Error()
}
