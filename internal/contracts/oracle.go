package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Oracle binds the price oracle contract at a fixed address.
type Oracle struct {
	caller  Caller
	address common.Address
}

func NewOracle(caller Caller, address common.Address) *Oracle {
	return &Oracle{caller: caller, address: address}
}

func (o *Oracle) Address() common.Address {
	return o.address
}

// GetAssetPrice calls getAssetPrice(asset). A nil block reads latest state.
func (o *Oracle) GetAssetPrice(ctx context.Context, asset common.Address, block *big.Int) (*big.Int, error) {
	parsed, err := PriceOracleABI()
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}
	return callUint256(ctx, o.caller, o.address, parsed, "getAssetPrice", block, asset)
}
