package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"lendingScope/internal/model"
)

// Token binds an ERC-20 contract.
type Token struct {
	caller  Caller
	address common.Address
}

func NewToken(caller Caller, address common.Address) *Token {
	return &Token{caller: caller, address: address}
}

func (t *Token) Address() common.Address {
	return t.address
}

// Decimals calls decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, t.caller, t.address, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	return asUint8(values[0])
}

// BalanceOf calls balanceOf(owner).
func (t *Token) BalanceOf(ctx context.Context, owner common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return callUint256(ctx, t.caller, t.address, parsed, "balanceOf", block, owner)
}

// Allowance calls allowance(owner, spender).
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return callUint256(ctx, t.caller, t.address, parsed, "allowance", nil, owner, spender)
}

// Meta loads decimals, symbol and name. Symbol and name fall back to the
// bytes32 encoding and are left empty when neither decodes.
func (t *Token) Meta(ctx context.Context, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: t.address.Hex()}

	decimals, err := t.Decimals(ctx)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	meta.Symbol = t.textField(ctx, "symbol", stringABI, bytes32ABI, logger)
	meta.Name = t.textField(ctx, "name", stringABI, bytes32ABI, logger)
	return meta, nil
}

func (t *Token) textField(ctx context.Context, method string, stringABI, bytes32ABI abi.ABI, logger *zap.Logger) string {
	if values, err := callMethod(ctx, t.caller, t.address, stringABI, method, nil); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := callMethod(ctx, t.caller, t.address, bytes32ABI, method, nil)
	if err == nil {
		if s, ok := bytes32ToString(values[0]); ok {
			return s
		}
	}
	if logger != nil {
		logger.Debug(method+" call failed", zap.String("token", t.address.Hex()), zap.Error(err))
	}
	return ""
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return data, nil
}
