package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DepositRequest is one user submission. Amount is in the token's smallest unit.
type DepositRequest struct {
	ID     string
	Token  common.Address
	Pool   common.Address
	Owner  common.Address
	Amount *big.Int
}

// DepositRecord is the flat history row written after a deposit or withdraw finishes.
type DepositRecord struct {
	ID          string `json:"id"`
	ChainID     uint64 `json:"chain_id"`
	Action      string `json:"action"`
	Owner       string `json:"owner"`
	Token       string `json:"token,omitempty"`
	Pool        string `json:"pool"`
	Amount      string `json:"amount"`
	State       string `json:"state"`
	FailureKind string `json:"failure_kind,omitempty"`
	Reason      string `json:"reason,omitempty"`
	ApprovalTx  string `json:"approval_tx,omitempty"`
	DepositTx   string `json:"deposit_tx,omitempty"`
	WithdrawTx  string `json:"withdraw_tx,omitempty"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
}
