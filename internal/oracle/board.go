package oracle

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendingScope/internal/model"
)

const (
	DisplayLoading = "Loading..."
	DisplayError   = "Error"
)

// Board tracks per-asset read state for display. An asset without a result
// is still loading, which is distinct from a result carrying an error.
type Board struct {
	mu     sync.RWMutex
	assets []common.Address
	slots  map[common.Address]model.AssetPrice
}

func NewBoard(assets []common.Address) *Board {
	return &Board{
		assets: append([]common.Address(nil), assets...),
		slots:  make(map[common.Address]model.AssetPrice, len(assets)),
	}
}

// Set publishes a resolved read.
func (b *Board) Set(price model.AssetPrice) {
	b.mu.Lock()
	b.slots[price.Asset] = price
	b.mu.Unlock()
}

// Get returns the result for asset; ok is false while the read is pending.
func (b *Board) Get(asset common.Address) (model.AssetPrice, bool) {
	b.mu.RLock()
	price, ok := b.slots[asset]
	b.mu.RUnlock()
	return price, ok
}

// Display renders the raw price string, DisplayLoading or DisplayError.
func (b *Board) Display(asset common.Address) string {
	price, ok := b.Get(asset)
	switch {
	case !ok:
		return DisplayLoading
	case !price.Resolved():
		return DisplayError
	default:
		return price.Price.String()
	}
}

// Pending returns the number of assets still loading.
func (b *Board) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pending := 0
	for _, asset := range b.assets {
		if _, ok := b.slots[asset]; !ok {
			pending++
		}
	}
	return pending
}

// Reset clears all results so the next round starts from loading.
func (b *Board) Reset() {
	b.mu.Lock()
	b.slots = make(map[common.Address]model.AssetPrice, len(b.assets))
	b.mu.Unlock()
}
