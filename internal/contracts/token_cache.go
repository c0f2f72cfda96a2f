package contracts

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// TokenDecimalsCache caches token decimals by address.
type TokenDecimalsCache struct {
	caller Caller

	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewTokenDecimalsCache(caller Caller) *TokenDecimalsCache {
	return &TokenDecimalsCache{caller: caller, data: make(map[common.Address]uint8)}
}

func (c *TokenDecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}

// Decimals returns cached decimals or loads them from chain.
func (c *TokenDecimalsCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if decimals, ok := c.Get(token); ok {
		return decimals, nil
	}
	decimals, err := NewToken(c.caller, token).Decimals(ctx)
	if err != nil {
		return 0, err
	}
	c.Set(token, decimals)
	return decimals, nil
}
