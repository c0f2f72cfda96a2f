package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/chain"
	"lendingScope/internal/contracts"
	"lendingScope/internal/model"
)

var (
	testOwner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testToken = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testPool  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type sentTx struct {
	action   string
	contract common.Address
	input    []byte
}

type fakeWallet struct {
	mu      sync.Mutex
	sent    []sentTx
	sendErr map[string]error
	mineErr map[string]error
	byHash  map[common.Hash]string
	nonce   uint64
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		sendErr: map[string]error{},
		mineErr: map[string]error{},
		byHash:  map[common.Hash]string{},
	}
}

func (w *fakeWallet) From() common.Address { return testOwner }

func (w *fakeWallet) Send(_ context.Context, action string, contract common.Address, input []byte) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.sendErr[action]; err != nil {
		return nil, err
	}
	w.sent = append(w.sent, sentTx{action: action, contract: contract, input: input})
	w.nonce++
	tx := types.NewTx(&types.DynamicFeeTx{Nonce: w.nonce, To: &contract, Data: input, Gas: 50000})
	w.byHash[tx.Hash()] = action
	return tx, nil
}

func (w *fakeWallet) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	action := w.byHash[tx.Hash()]
	receipt := &types.Receipt{TxHash: tx.Hash(), BlockNumber: big.NewInt(100), GasUsed: 42000, Status: types.ReceiptStatusSuccessful}
	if err := w.mineErr[action]; err != nil {
		if errors.Is(err, chain.ErrReverted) {
			receipt.Status = types.ReceiptStatusFailed
			return receipt, err
		}
		return nil, err
	}
	return receipt, nil
}

func (w *fakeWallet) actions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.sent))
	for _, s := range w.sent {
		out = append(out, s.action)
	}
	return out
}

type memRecorder struct {
	records []model.DepositRecord
	err     error
}

func (r *memRecorder) PutDeposits(_ context.Context, records []model.DepositRecord) error {
	r.records = append(r.records, records...)
	return r.err
}

type transition struct {
	from, to State
	failure  *Failure
}

func observeInto(list *[]transition) Observer {
	return func(_ string, from, to State, failure *Failure) {
		*list = append(*list, transition{from: from, to: to, failure: failure})
	}
}

func request(amount int64) model.DepositRequest {
	return model.DepositRequest{Token: testToken, Pool: testPool, Amount: big.NewInt(amount)}
}

func TestSubmitRejectsInvalidAmount(t *testing.T) {
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		wallet := newFakeWallet()
		var seen []transition
		s := NewSubmitter(wallet, Options{}, nil, nil)

		out, err := s.Submit(context.Background(), model.DepositRequest{Token: testToken, Pool: testPool, Amount: amount}, observeInto(&seen))
		require.ErrorIs(t, err, ErrInvalidAmount)
		require.Equal(t, StateIdle, out.State)
		require.Empty(t, wallet.actions())
		require.Empty(t, seen)
	}
}

func TestSubmitRejectsMissingAddresses(t *testing.T) {
	s := NewSubmitter(newFakeWallet(), Options{}, nil, nil)
	_, err := s.Submit(context.Background(), model.DepositRequest{Token: testToken, Amount: big.NewInt(1)}, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)

	other := common.HexToAddress("0x1234")
	_, err = s.Submit(context.Background(), model.DepositRequest{Token: testToken, Pool: testPool, Owner: other, Amount: big.NewInt(1)}, nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSubmitApprovesThenDeposits(t *testing.T) {
	wallet := newFakeWallet()
	rec := &memRecorder{}
	var seen []transition
	s := NewSubmitter(wallet, Options{ChainID: 11155111, Recorder: rec}, nil, nil)

	// 100 tokens with 6 decimals.
	out, err := s.Submit(context.Background(), request(100_000_000), observeInto(&seen))
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, out.State)
	require.Nil(t, out.Failure)
	require.NotEmpty(t, out.ID)
	require.Equal(t, testOwner, out.Request.Owner)

	require.Equal(t, []string{string(PhaseApprove), string(PhaseDeposit)}, wallet.actions())
	require.Equal(t, testToken, wallet.sent[0].contract)
	require.Equal(t, testPool, wallet.sent[1].contract)

	approve, err := contracts.PackApprove(testPool, big.NewInt(100_000_000))
	require.NoError(t, err)
	require.Equal(t, approve, wallet.sent[0].input)
	dep, err := contracts.PackDeposit(big.NewInt(100_000_000))
	require.NoError(t, err)
	require.Equal(t, dep, wallet.sent[1].input)

	require.Equal(t, []transition{
		{from: StateIdle, to: StateAwaitingApproval},
		{from: StateAwaitingApproval, to: StateAwaitingDeposit},
		{from: StateAwaitingDeposit, to: StateSucceeded},
	}, seen)

	require.True(t, out.Approval.OK())
	require.True(t, out.Deposit.OK())
	require.Equal(t, uint64(100), out.Deposit.BlockNumber)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	require.Equal(t, out.ID, got.ID)
	require.Equal(t, "deposit", got.Action)
	require.Equal(t, "succeeded", got.State)
	require.Equal(t, "100000000", got.Amount)
	require.Equal(t, uint64(11155111), got.ChainID)
	require.Equal(t, out.Approval.TxHash.Hex(), got.ApprovalTx)
	require.Equal(t, out.Deposit.TxHash.Hex(), got.DepositTx)
}

func TestSubmitKeepsCallerID(t *testing.T) {
	s := NewSubmitter(newFakeWallet(), Options{}, nil, nil)
	req := request(1)
	req.ID = "fixed"
	out, err := s.Submit(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, "fixed", out.ID)
}

func TestSubmitApprovalRejectedByUser(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr[string(PhaseApprove)] = chain.ErrUserRejected
	var seen []transition
	s := NewSubmitter(wallet, Options{}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), observeInto(&seen))
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.NotNil(t, out.Failure)
	require.Equal(t, FailureUserRejection, out.Failure.Kind)
	require.Equal(t, PhaseApprove, out.Failure.Phase)
	require.ErrorIs(t, out.Failure, chain.ErrUserRejected)
	require.Empty(t, wallet.actions(), "no transaction may be broadcast")
	require.False(t, out.Approval.Sent())
	require.False(t, out.Deposit.Sent())

	require.Len(t, seen, 2)
	require.Equal(t, StateFailed, seen[1].to)
	require.Same(t, out.Failure, seen[1].failure)
}

func TestSubmitApprovalInterrupted(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr[string(PhaseApprove)] = context.Canceled
	s := NewSubmitter(wallet, Options{}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), nil)
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, FailureNetwork, out.Failure.Kind)
	require.Equal(t, "approval interrupted before confirmation", out.Failure.Reason)
	require.ErrorIs(t, out.Failure, context.Canceled)
	require.Empty(t, wallet.actions())
}

func TestSubmitApprovalRevertSkipsDeposit(t *testing.T) {
	wallet := newFakeWallet()
	wallet.mineErr[string(PhaseApprove)] = fmt.Errorf("%w: 0xdead", chain.ErrReverted)
	s := NewSubmitter(wallet, Options{}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), nil)
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, FailureRevert, out.Failure.Kind)
	require.Equal(t, []string{string(PhaseApprove)}, wallet.actions())
	require.True(t, out.Approval.Sent())
	require.False(t, out.Approval.OK())
}

func TestSubmitDepositNetworkFailureKeepsApproval(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr[string(PhaseDeposit)] = errors.New("dial tcp: connection refused")
	rec := &memRecorder{}
	var seen []transition
	s := NewSubmitter(wallet, Options{Recorder: rec}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), observeInto(&seen))
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, FailureNetwork, out.Failure.Kind)
	require.Equal(t, PhaseDeposit, out.Failure.Phase)
	require.True(t, out.Approval.OK())
	require.Equal(t, []string{string(PhaseApprove)}, wallet.actions())

	require.Equal(t, StateAwaitingDeposit, seen[len(seen)-1].from)
	require.Equal(t, StateFailed, seen[len(seen)-1].to)

	require.Len(t, rec.records, 1)
	require.Equal(t, "failed", rec.records[0].State)
	require.Equal(t, string(FailureNetwork), rec.records[0].FailureKind)
	require.NotEmpty(t, rec.records[0].ApprovalTx)
	require.Empty(t, rec.records[0].DepositTx)
}

func TestSubmitDepositTimeout(t *testing.T) {
	wallet := newFakeWallet()
	wallet.mineErr[string(PhaseDeposit)] = fmt.Errorf("%w: 0xbeef", chain.ErrTimeout)
	s := NewSubmitter(wallet, Options{}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), nil)
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, FailureNetwork, out.Failure.Kind)
	require.Contains(t, out.Failure.Reason, "timed out")
}

func TestSubmitRecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := NewSubmitter(newFakeWallet(), Options{Recorder: rec}, nil, nil)

	out, err := s.Submit(context.Background(), request(10), nil)
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, out.State)
}

func TestTransitions(t *testing.T) {
	require.True(t, CanTransition(StateIdle, StateAwaitingApproval))
	require.True(t, CanTransition(StateAwaitingApproval, StateAwaitingDeposit))
	require.True(t, CanTransition(StateAwaitingApproval, StateFailed))
	require.True(t, CanTransition(StateAwaitingDeposit, StateSucceeded))
	require.True(t, CanTransition(StateAwaitingDeposit, StateFailed))

	require.False(t, CanTransition(StateIdle, StateAwaitingDeposit))
	require.False(t, CanTransition(StateIdle, StateFailed))
	require.False(t, CanTransition(StateAwaitingApproval, StateSucceeded))
	require.False(t, CanTransition(StateSucceeded, StateFailed))
	require.False(t, CanTransition(StateFailed, StateIdle))

	require.True(t, StateSucceeded.Terminal())
	require.True(t, StateFailed.Terminal())
	require.False(t, StateAwaitingDeposit.Terminal())
	require.Equal(t, "awaiting_approval", StateAwaitingApproval.String())
}

func TestClassify(t *testing.T) {
	require.Equal(t, FailureUserRejection, classify(PhaseApprove, fmt.Errorf("wrap: %w", chain.ErrUserRejected)).Kind)
	require.Equal(t, FailureRevert, classify(PhaseDeposit, errors.New("execution reverted: insufficient balance")).Kind)
	require.Equal(t, FailureNetwork, classify(PhaseDeposit, context.Canceled).Kind)
	require.Equal(t, FailureNetwork, classify(PhaseDeposit, errors.New("eof")).Kind)

	interrupted := classify(PhaseApprove, context.Canceled)
	require.Equal(t, "approval interrupted before confirmation", interrupted.Reason)

	gas := classify(PhaseApprove, fmt.Errorf("%w: estimated 600000, limit 500000", chain.ErrGasLimit))
	require.Equal(t, FailureNetwork, gas.Kind)
	require.Contains(t, gas.Reason, "gas limit")
	require.ErrorIs(t, gas, chain.ErrGasLimit)
}

func TestWithdraw(t *testing.T) {
	wallet := newFakeWallet()
	rec := &memRecorder{}
	s := NewSubmitter(wallet, Options{Recorder: rec}, nil, nil)

	_, err := s.Withdraw(context.Background(), testPool, big.NewInt(0))
	require.ErrorIs(t, err, ErrInvalidAmount)

	out, err := s.Withdraw(context.Background(), testPool, big.NewInt(5))
	require.NoError(t, err)
	require.Nil(t, out.Failure)
	require.Equal(t, []string{string(PhaseWithdraw)}, wallet.actions())

	input, err := contracts.PackWithdraw(big.NewInt(5))
	require.NoError(t, err)
	require.Equal(t, input, wallet.sent[0].input)

	require.Len(t, rec.records, 1)
	require.Equal(t, "withdraw", rec.records[0].Action)
	require.Equal(t, "succeeded", rec.records[0].State)
	require.Equal(t, out.Withdraw.TxHash.Hex(), rec.records[0].WithdrawTx)
	require.Empty(t, rec.records[0].DepositTx)
}

func TestWithdrawRevert(t *testing.T) {
	wallet := newFakeWallet()
	wallet.sendErr[string(PhaseWithdraw)] = fmt.Errorf("%w: insufficient balance", chain.ErrReverted)
	s := NewSubmitter(wallet, Options{}, nil, nil)

	out, err := s.Withdraw(context.Background(), testPool, big.NewInt(5))
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	require.Equal(t, FailureRevert, out.Failure.Kind)
}
