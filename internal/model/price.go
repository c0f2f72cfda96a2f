package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetPrice is the result of one oracle read. Price is nil until the read
// resolves successfully; Err is the error marker of a failed read.
type AssetPrice struct {
	Asset       common.Address
	Price       *big.Int
	BlockNumber uint64
	AsOf        time.Time
	Err         error
}

// Resolved reports whether the read produced a price.
func (p AssetPrice) Resolved() bool {
	return p.Err == nil && p.Price != nil
}

// Record flattens the price for storage.
func (p AssetPrice) Record(chainID uint64, oracle common.Address) PriceRecord {
	rec := PriceRecord{
		ChainID:     chainID,
		Oracle:      oracle.Hex(),
		Asset:       p.Asset.Hex(),
		BlockNumber: p.BlockNumber,
		AsOf:        p.AsOf.UTC().Format(time.RFC3339Nano),
	}
	if p.Price != nil {
		rec.Price = p.Price.String()
	}
	if p.Err != nil {
		rec.Error = p.Err.Error()
	}
	return rec
}

// PriceRecord is the normalized representation of an oracle read for storage.
type PriceRecord struct {
	ChainID     uint64 `json:"chain_id"`
	Oracle      string `json:"oracle"`
	Asset       string `json:"asset"`
	Price       string `json:"price,omitempty"`
	Error       string `json:"error,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	AsOf        string `json:"as_of"`
}
