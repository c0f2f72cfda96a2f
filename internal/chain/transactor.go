package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Backend is the subset of the RPC surface needed to build, send and confirm transactions.
type Backend interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SignRequest describes a transaction awaiting the account holder's signature.
type SignRequest struct {
	Action    string
	From      common.Address
	To        common.Address
	Nonce     uint64
	Gas       uint64
	GasFeeCap *big.Int
	Data      []byte
}

// Confirmer decides whether a transaction may be signed. Returning
// ErrUserRejected (or an error wrapping it) declines the signature. Context
// errors are passed through so an interrupted prompt is not a rejection.
type Confirmer interface {
	Confirm(ctx context.Context, req SignRequest) error
}

// TxParams controls fee, gas and confirmation behavior.
type TxParams struct {
	ChainID        *big.Int
	GasLimit       uint64
	GasLimitRate   float64
	FeeCapRate     int64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Transactor is the wallet-backed write client: it builds EIP-1559
// transactions, obtains confirmation, signs, broadcasts and waits for receipts.
type Transactor struct {
	backend   Backend
	from      common.Address
	signFn    bind.SignerFn
	confirmer Confirmer
	params    TxParams
	logger    *zap.Logger
}

// NewTransactor builds a Transactor for the given account.
func NewTransactor(backend Backend, from common.Address, signFn bind.SignerFn, confirmer Confirmer, params TxParams, logger *zap.Logger) *Transactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if params.GasLimitRate <= 0 {
		params.GasLimitRate = 1.2
	}
	if params.FeeCapRate <= 0 {
		params.FeeCapRate = 2
	}
	if params.ConfirmTimeout <= 0 {
		params.ConfirmTimeout = 2 * time.Minute
	}
	if params.PollInterval <= 0 {
		params.PollInterval = time.Second
	}
	return &Transactor{
		backend:   backend,
		from:      from,
		signFn:    signFn,
		confirmer: confirmer,
		params:    params,
		logger:    logger,
	}
}

// From returns the sending account.
func (t *Transactor) From() common.Address {
	return t.from
}

// Send builds, confirms, signs and broadcasts a call to contract with input.
func (t *Transactor) Send(ctx context.Context, action string, contract common.Address, input []byte) (*types.Transaction, error) {
	if t.backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if contract == (common.Address{}) {
		return nil, fmt.Errorf("contract address cannot be zero address")
	}
	if t.signFn == nil {
		return nil, fmt.Errorf("signer is nil")
	}

	unsigned, err := t.buildTx(ctx, contract, input)
	if err != nil {
		return nil, err
	}

	if t.confirmer != nil {
		req := SignRequest{
			Action:    action,
			From:      t.from,
			To:        contract,
			Nonce:     unsigned.Nonce(),
			Gas:       unsigned.Gas(),
			GasFeeCap: unsigned.GasFeeCap(),
			Data:      input,
		}
		if err := t.confirmer.Confirm(ctx, req); err != nil {
			if errors.Is(err, ErrUserRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUserRejected, err)
		}
	}

	signed, err := t.signFn(t.from, unsigned)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		if IsRevert(err) {
			return nil, fmt.Errorf("%w: %s", ErrReverted, revertReason(err))
		}
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	t.logger.Info("transaction sent",
		zap.String("action", action),
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", contract.Hex()),
		zap.Uint64("nonce", signed.Nonce()),
	)
	return signed, nil
}

func (t *Transactor) buildTx(ctx context.Context, contract common.Address, input []byte) (*types.Transaction, error) {
	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	tipCap, feeCap, err := t.suggestGasFees(ctx)
	if err != nil {
		return nil, err
	}

	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      t.from,
		To:        &contract,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Data:      input,
	})
	if err != nil {
		if IsRevert(err) {
			return nil, fmt.Errorf("%w: %s", ErrReverted, revertReason(err))
		}
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	gas = uint64(float64(gas) * t.params.GasLimitRate)
	if t.params.GasLimit > 0 && gas > t.params.GasLimit {
		return nil, fmt.Errorf("%w: estimated %d, limit %d", ErrGasLimit, gas, t.params.GasLimit)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   t.params.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &contract,
		Data:      input,
	}), nil
}

// suggestGasFees returns tip and fee caps where feeCap = baseFee*rate + tip.
func (t *Transactor) suggestGasFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tipCap, err := t.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	head, err := t.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("get header: %w", err)
	}
	if head.BaseFee == nil {
		return tipCap, new(big.Int).Set(tipCap), nil
	}

	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(t.params.FeeCapRate))
	feeCap.Add(feeCap, tipCap)
	return tipCap, feeCap, nil
}

// WaitMined polls for the receipt of tx until it is mined, the context is
// done or the confirmation timeout passes. A failed receipt is ErrReverted.
func (t *Transactor) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}

	ticker := time.NewTicker(t.params.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(t.params.ConfirmTimeout)
	defer timeout.Stop()

	hash := tx.Hash()
	var lastErr error
	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
			t.logger.Debug("receipt poll failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, hash.Hex(), lastErr)
			}
			return nil, fmt.Errorf("%w: %s", ErrTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}
