package deposit

import (
	"context"
	"errors"
	"fmt"

	"lendingScope/internal/chain"
)

// FailureKind classifies why a phase failed.
type FailureKind string

const (
	FailureNetwork       FailureKind = "network_or_node"
	FailureRevert        FailureKind = "contract_revert"
	FailureUserRejection FailureKind = "user_rejection"
)

// Failure is the terminal reason of a failed request, safe to show to users.
type Failure struct {
	Kind   FailureKind
	Phase  Phase
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}

var errEncode = errors.New("deposit: encode call")

func classify(phase Phase, err error) *Failure {
	f := &Failure{Phase: phase, Err: err}
	switch {
	case errors.Is(err, chain.ErrUserRejected):
		f.Kind = FailureUserRejection
		f.Reason = fmt.Sprintf("%s was rejected in the wallet", phase)
	case chain.IsRevert(err):
		f.Kind = FailureRevert
		f.Reason = fmt.Sprintf("%s transaction reverted (check balance and allowance)", phase)
	case errors.Is(err, chain.ErrGasLimit):
		f.Kind = FailureNetwork
		f.Reason = fmt.Sprintf("%s needs more gas than the configured gas limit allows", phase)
	case errors.Is(err, errEncode):
		f.Kind = FailureNetwork
		f.Reason = fmt.Sprintf("%s call could not be encoded", phase)
	case errors.Is(err, context.Canceled):
		f.Kind = FailureNetwork
		f.Reason = fmt.Sprintf("%s interrupted before confirmation", phase)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, chain.ErrTimeout):
		f.Kind = FailureNetwork
		f.Reason = fmt.Sprintf("%s timed out waiting for the network", phase)
	default:
		f.Kind = FailureNetwork
		f.Reason = fmt.Sprintf("network error during %s", phase)
	}
	return f
}
