// Package deposit moves tokens into the lending pool with an
// approve-then-deposit sequence and withdraws them again.
//
// The deposit transaction is never broadcast until the approval receipt has
// been observed with a successful status. When the deposit fails after the
// approval succeeded the allowance stays granted; nothing is rolled back.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"lendingScope/internal/contracts"
	"lendingScope/internal/metrics"
	"lendingScope/internal/model"
)

var (
	ErrInvalidAmount  = errors.New("deposit: invalid amount")
	ErrInvalidRequest = errors.New("deposit: invalid request")
)

// Phase names one on-chain step.
type Phase string

const (
	PhaseApprove  Phase = "approval"
	PhaseDeposit  Phase = "deposit"
	PhaseWithdraw Phase = "withdraw"
)

// Wallet is the wallet-backed write client. *chain.Transactor satisfies it.
type Wallet interface {
	From() common.Address
	Send(ctx context.Context, action string, contract common.Address, input []byte) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Recorder stores finished requests. Storage sinks satisfy it.
type Recorder interface {
	PutDeposits(ctx context.Context, records []model.DepositRecord) error
}

// PhaseResult is the outcome of one transaction.
type PhaseResult struct {
	Phase       Phase
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Err         error
}

// Sent reports whether the transaction reached the network.
func (p PhaseResult) Sent() bool {
	return p.TxHash != (common.Hash{})
}

// OK reports whether the transaction was mined successfully.
func (p PhaseResult) OK() bool {
	return p.Sent() && p.Err == nil
}

// Outcome is the two-phase result of a deposit request.
type Outcome struct {
	ID         string
	Request    model.DepositRequest
	State      State
	Approval   PhaseResult
	Deposit    PhaseResult
	Failure    *Failure
	StartedAt  time.Time
	FinishedAt time.Time
}

// WithdrawOutcome is the single-phase result of a withdraw request.
type WithdrawOutcome struct {
	ID         string
	Pool       common.Address
	Amount     *big.Int
	Withdraw   PhaseResult
	Failure    *Failure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options configures a Submitter.
type Options struct {
	ChainID  uint64
	Recorder Recorder
}

// Submitter runs deposit and withdraw requests through a Wallet.
type Submitter struct {
	wallet  Wallet
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewSubmitter(wallet Wallet, opts Options, logger *zap.Logger, m *metrics.Metrics) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		wallet:  wallet,
		opts:    opts,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit approves the pool for req.Amount of req.Token and then deposits it.
// Validation failures leave the request Idle and return an error; every
// on-chain failure ends in StateFailed with Outcome.Failure set.
func (s *Submitter) Submit(ctx context.Context, req model.DepositRequest, observe Observer) (Outcome, error) {
	out := Outcome{Request: req, State: StateIdle}
	if err := s.validate(&req); err != nil {
		return out, err
	}

	out.ID = req.ID
	if out.ID == "" {
		out.ID = s.newID()
	}
	req.ID = out.ID
	out.Request = req
	out.StartedAt = s.now()

	log := s.logger.With(
		zap.String("id", out.ID),
		zap.String("token", req.Token.Hex()),
		zap.String("pool", req.Pool.Hex()),
		zap.String("amount", req.Amount.String()),
	)

	move := func(next State, failure *Failure) {
		prev := out.State
		if !CanTransition(prev, next) {
			log.Error("illegal deposit transition", zap.Stringer("from", prev), zap.Stringer("to", next))
			return
		}
		out.State = next
		if failure != nil {
			out.Failure = failure
			log.Warn("deposit failed", zap.Stringer("from", prev), zap.String("kind", string(failure.Kind)), zap.String("reason", failure.Reason), zap.Error(failure.Err))
		} else {
			log.Info("deposit state", zap.Stringer("from", prev), zap.Stringer("to", next))
		}
		if observe != nil {
			observe(out.ID, prev, next, failure)
		}
	}

	move(StateAwaitingApproval, nil)

	out.Approval = s.runPhase(ctx, PhaseApprove, req.Token, func() ([]byte, error) {
		return contracts.PackApprove(req.Pool, req.Amount)
	})
	if !out.Approval.OK() {
		move(StateFailed, classify(PhaseApprove, out.Approval.Err))
		return s.finish(ctx, out), nil
	}

	move(StateAwaitingDeposit, nil)

	out.Deposit = s.runPhase(ctx, PhaseDeposit, req.Pool, func() ([]byte, error) {
		return contracts.PackDeposit(req.Amount)
	})
	if !out.Deposit.OK() {
		move(StateFailed, classify(PhaseDeposit, out.Deposit.Err))
		return s.finish(ctx, out), nil
	}

	move(StateSucceeded, nil)
	return s.finish(ctx, out), nil
}

// Withdraw calls withdraw(amount) on pool as a single phase.
func (s *Submitter) Withdraw(ctx context.Context, pool common.Address, amount *big.Int) (WithdrawOutcome, error) {
	out := WithdrawOutcome{Pool: pool, Amount: amount}
	if amount == nil || amount.Sign() <= 0 {
		return out, ErrInvalidAmount
	}
	if pool == (common.Address{}) {
		return out, fmt.Errorf("%w: pool address is required", ErrInvalidRequest)
	}
	if s.wallet == nil {
		return out, fmt.Errorf("%w: wallet is nil", ErrInvalidRequest)
	}

	out.ID = s.newID()
	out.StartedAt = s.now()
	out.Withdraw = s.runPhase(ctx, PhaseWithdraw, pool, func() ([]byte, error) {
		return contracts.PackWithdraw(amount)
	})
	if !out.Withdraw.OK() {
		out.Failure = classify(PhaseWithdraw, out.Withdraw.Err)
		s.logger.Warn("withdraw failed", zap.String("id", out.ID), zap.String("kind", string(out.Failure.Kind)), zap.Error(out.Withdraw.Err))
	} else {
		s.logger.Info("withdraw confirmed", zap.String("id", out.ID), zap.String("tx", out.Withdraw.TxHash.Hex()))
	}
	out.FinishedAt = s.now()

	s.record(ctx, out.Record(s.opts.ChainID, s.wallet.From()))
	return out, nil
}

func (s *Submitter) validate(req *model.DepositRequest) error {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if req.Token == (common.Address{}) || req.Pool == (common.Address{}) {
		return fmt.Errorf("%w: token and pool addresses are required", ErrInvalidRequest)
	}
	if s.wallet == nil {
		return fmt.Errorf("%w: wallet is nil", ErrInvalidRequest)
	}
	from := s.wallet.From()
	if req.Owner == (common.Address{}) {
		req.Owner = from
	} else if req.Owner != from {
		return fmt.Errorf("%w: owner %s is not the signing account %s", ErrInvalidRequest, req.Owner.Hex(), from.Hex())
	}
	return nil
}

// runPhase sends one transaction and waits for its receipt.
func (s *Submitter) runPhase(ctx context.Context, phase Phase, contract common.Address, pack func() ([]byte, error)) PhaseResult {
	result := PhaseResult{Phase: phase}
	start := time.Now()

	input, err := pack()
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", errEncode, err)
		s.metrics.ObserveTxPhase(string(phase), "error", time.Since(start))
		return result
	}

	tx, err := s.wallet.Send(ctx, string(phase), contract, input)
	if err != nil {
		result.Err = err
		s.metrics.ObserveTxPhase(string(phase), "error", time.Since(start))
		return result
	}
	result.TxHash = tx.Hash()

	receipt, err := s.wallet.WaitMined(ctx, tx)
	if receipt != nil {
		if receipt.BlockNumber != nil {
			result.BlockNumber = receipt.BlockNumber.Uint64()
		}
		result.GasUsed = receipt.GasUsed
	}
	if err != nil {
		result.Err = err
		s.metrics.ObserveTxPhase(string(phase), "error", time.Since(start))
		return result
	}

	s.metrics.ObserveTxPhase(string(phase), "ok", time.Since(start))
	return result
}

func (s *Submitter) finish(ctx context.Context, out Outcome) Outcome {
	out.FinishedAt = s.now()
	s.record(ctx, out.Record(s.opts.ChainID))
	return out
}

func (s *Submitter) record(ctx context.Context, rec model.DepositRecord) {
	if s.opts.Recorder == nil {
		return
	}
	// The request already finished on chain; a canceled ctx must not drop its history.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.opts.Recorder.PutDeposits(ctx, []model.DepositRecord{rec}); err != nil {
		s.logger.Warn("record deposit history", zap.String("id", rec.ID), zap.Error(err))
	}
}

// Record flattens the outcome for storage.
func (o Outcome) Record(chainID uint64) model.DepositRecord {
	rec := model.DepositRecord{
		ID:         o.ID,
		ChainID:    chainID,
		Action:     "deposit",
		Owner:      o.Request.Owner.Hex(),
		Token:      o.Request.Token.Hex(),
		Pool:       o.Request.Pool.Hex(),
		State:      o.State.String(),
		StartedAt:  o.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: o.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.Request.Amount != nil {
		rec.Amount = o.Request.Amount.String()
	}
	if o.Approval.Sent() {
		rec.ApprovalTx = o.Approval.TxHash.Hex()
	}
	if o.Deposit.Sent() {
		rec.DepositTx = o.Deposit.TxHash.Hex()
	}
	if o.Failure != nil {
		rec.FailureKind = string(o.Failure.Kind)
		rec.Reason = o.Failure.Reason
	}
	return rec
}

// Record flattens the withdraw outcome for storage.
func (o WithdrawOutcome) Record(chainID uint64, owner common.Address) model.DepositRecord {
	rec := model.DepositRecord{
		ID:         o.ID,
		ChainID:    chainID,
		Action:     "withdraw",
		Owner:      owner.Hex(),
		Pool:       o.Pool.Hex(),
		State:      StateSucceeded.String(),
		StartedAt:  o.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: o.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
	if o.Amount != nil {
		rec.Amount = o.Amount.String()
	}
	if o.Withdraw.Sent() {
		rec.WithdrawTx = o.Withdraw.TxHash.Hex()
	}
	if o.Failure != nil {
		rec.State = StateFailed.String()
		rec.FailureKind = string(o.Failure.Kind)
		rec.Reason = o.Failure.Reason
	}
	return rec
}
