package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool binds the lending pool contract.
type Pool struct {
	caller  Caller
	address common.Address
}

func NewPool(caller Caller, address common.Address) *Pool {
	return &Pool{caller: caller, address: address}
}

func (p *Pool) Address() common.Address {
	return p.address
}

// GetBalance returns the user's deposited balance.
func (p *Pool) GetBalance(ctx context.Context, user common.Address) (*big.Int, error) {
	return p.readUint(ctx, "getBalance", user)
}

func (p *Pool) GetTotalSupply(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "getTotalSupply")
}

func (p *Pool) GetTotalBorrowed(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "getTotalBorrowed")
}

func (p *Pool) readUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	parsed, err := LiquidityPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	return callUint256(ctx, p.caller, p.address, parsed, method, nil, args...)
}

// PackDeposit encodes deposit(amount).
func PackDeposit(amount *big.Int) ([]byte, error) {
	return packPool("deposit", amount)
}

// PackWithdraw encodes withdraw(amount).
func PackWithdraw(amount *big.Int) ([]byte, error) {
	return packPool("withdraw", amount)
}

func packPool(method string, amount *big.Int) ([]byte, error) {
	parsed, err := LiquidityPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	data, err := parsed.Pack(method, amount)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
