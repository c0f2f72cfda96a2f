package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type fakeBackend struct {
	baseFee     *big.Int
	tip         *big.Int
	nonce       uint64
	gas         uint64
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
	receipt     *types.Receipt
	receiptErr  error
	polls       int
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return b.tip, nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.gas, b.estimateErr
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	b.polls++
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	if b.receipt == nil {
		return nil, ethereum.NotFound
	}
	return b.receipt, nil
}

type rejectAll struct{}

func (rejectAll) Confirm(context.Context, SignRequest) error {
	return errors.New("user said no")
}

type recordConfirm struct{ got []SignRequest }

func (r *recordConfirm) Confirm(_ context.Context, req SignRequest) error {
	r.got = append(r.got, req)
	return nil
}

func testSigner(t *testing.T, chainID *big.Int) (common.Address, bind.SignerFn) {
	t.Helper()
	key, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		t.Fatalf("transactor: %v", err)
	}
	return opts.From, opts.Signer
}

func newTestTransactor(t *testing.T, backend *fakeBackend, confirmer Confirmer) *Transactor {
	chainID := big.NewInt(31337)
	from, signFn := testSigner(t, chainID)
	return NewTransactor(backend, from, signFn, confirmer, TxParams{
		ChainID:        chainID,
		ConfirmTimeout: 50 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, nil)
}

var target = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func TestSendBuildsDynamicFeeTx(t *testing.T) {
	backend := &fakeBackend{baseFee: big.NewInt(100), tip: big.NewInt(3), nonce: 7, gas: 1000}
	confirm := &recordConfirm{}
	tr := newTestTransactor(t, backend, confirm)

	tx, err := tr.Send(context.Background(), "approval", target, []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(backend.sent) != 1 || backend.sent[0].Hash() != tx.Hash() {
		t.Fatalf("expected the signed tx to be broadcast once")
	}
	if tx.Nonce() != 7 {
		t.Fatalf("nonce mismatch: %d", tx.Nonce())
	}
	if tx.Gas() != 1200 {
		t.Fatalf("gas should carry the 1.2 margin, got %d", tx.Gas())
	}
	if tx.GasFeeCap().Cmp(big.NewInt(203)) != 0 {
		t.Fatalf("fee cap should be baseFee*2+tip, got %s", tx.GasFeeCap())
	}
	if tx.GasTipCap().Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("tip cap mismatch: %s", tx.GasTipCap())
	}
	if *tx.To() != target {
		t.Fatalf("recipient mismatch: %s", tx.To().Hex())
	}

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(31337)), tx)
	if err != nil || sender != tr.From() {
		t.Fatalf("sender mismatch: %s %v", sender.Hex(), err)
	}

	if len(confirm.got) != 1 || confirm.got[0].Action != "approval" || confirm.got[0].Nonce != 7 {
		t.Fatalf("confirmer not consulted as expected: %+v", confirm.got)
	}
}

func TestSendRejectedByConfirmer(t *testing.T) {
	backend := &fakeBackend{baseFee: big.NewInt(1), tip: big.NewInt(1), gas: 21000}
	tr := newTestTransactor(t, backend, rejectAll{})

	_, err := tr.Send(context.Background(), "deposit", target, nil)
	if !errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("rejected transaction must not be broadcast")
	}
}

type ctxConfirm struct{ err error }

func (c ctxConfirm) Confirm(context.Context, SignRequest) error {
	return c.err
}

func TestSendConfirmInterrupted(t *testing.T) {
	for _, want := range []error{context.Canceled, context.DeadlineExceeded} {
		backend := &fakeBackend{baseFee: big.NewInt(1), tip: big.NewInt(1), gas: 21000}
		tr := newTestTransactor(t, backend, ctxConfirm{err: want})

		_, err := tr.Send(context.Background(), "approval", target, nil)
		if !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
		if errors.Is(err, ErrUserRejected) {
			t.Fatalf("interruption must not read as a rejection: %v", err)
		}
		if len(backend.sent) != 0 {
			t.Fatalf("interrupted transaction must not be broadcast")
		}
	}
}

func TestSendRevertOnEstimate(t *testing.T) {
	backend := &fakeBackend{
		baseFee:     big.NewInt(1),
		tip:         big.NewInt(1),
		estimateErr: errors.New("execution reverted: ERC20: transfer amount exceeds balance"),
	}
	tr := newTestTransactor(t, backend, nil)

	_, err := tr.Send(context.Background(), "deposit", target, nil)
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
}

func TestSendGasLimit(t *testing.T) {
	backend := &fakeBackend{baseFee: big.NewInt(1), tip: big.NewInt(1), gas: 1_000_000}
	tr := newTestTransactor(t, backend, nil)
	tr.params.GasLimit = 500_000

	if _, err := tr.Send(context.Background(), "deposit", target, nil); !errors.Is(err, ErrGasLimit) {
		t.Fatalf("expected ErrGasLimit, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("over-limit transaction must not be broadcast")
	}
}

func TestSendNetworkError(t *testing.T) {
	backend := &fakeBackend{baseFee: big.NewInt(1), tip: big.NewInt(1), gas: 21000, sendErr: errors.New("connection reset by peer")}
	tr := newTestTransactor(t, backend, nil)

	_, err := tr.Send(context.Background(), "deposit", target, nil)
	if err == nil || errors.Is(err, ErrReverted) || errors.Is(err, ErrUserRejected) {
		t.Fatalf("expected plain network error, got %v", err)
	}
}

func TestWaitMined(t *testing.T) {
	tx := types.NewTx(&types.DynamicFeeTx{Nonce: 1, To: &target})

	ok := &fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}}
	receipt, err := newTestTransactor(t, ok, nil).WaitMined(context.Background(), tx)
	if err != nil || receipt.BlockNumber.Uint64() != 9 {
		t.Fatalf("expected mined receipt, got %v %v", receipt, err)
	}

	failed := &fakeBackend{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}
	receipt, err = newTestTransactor(t, failed, nil).WaitMined(context.Background(), tx)
	if !errors.Is(err, ErrReverted) || receipt == nil {
		t.Fatalf("expected reverted receipt, got %v %v", receipt, err)
	}

	pending := &fakeBackend{}
	_, err = newTestTransactor(t, pending, nil).WaitMined(context.Background(), tx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if pending.polls < 2 {
		t.Fatalf("expected repeated polling, got %d", pending.polls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestTransactor(t, &fakeBackend{}, nil).WaitMined(ctx, tx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestIsRevert(t *testing.T) {
	if IsRevert(nil) {
		t.Fatalf("nil is not a revert")
	}
	if !IsRevert(errors.New("execution reverted")) {
		t.Fatalf("node revert message should be detected")
	}
	if IsRevert(errors.New("i/o timeout")) {
		t.Fatalf("network error is not a revert")
	}
}
