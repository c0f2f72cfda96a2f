package config

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// PriceConfig holds configuration for the price command.
type PriceConfig struct {
	Common
	Assets       []common.Address
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Concurrency  int
	Block        uint64

	// PriceDecimals is the fixed-point precision of oracle prices, used for display only.
	PriceDecimals uint8
}

// LoadPrice merges config file, environment variables, and flags into PriceConfig.
func LoadPrice(cfgFile string, flags *pflag.FlagSet) (PriceConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":    0,
		"retry-backoff":  500 * time.Millisecond,
		"concurrency":    8,
		"price-decimals": 8,
	})
	if err != nil {
		return PriceConfig{}, err
	}

	base, err := loadCommon(v)
	if err != nil {
		return PriceConfig{}, err
	}
	if err := base.Contracts.Require("oracle"); err != nil {
		return PriceConfig{}, err
	}

	assets, err := ParseAddresses(getStringSlice(v, "asset"))
	if err != nil {
		return PriceConfig{}, err
	}
	if len(assets) == 0 {
		return PriceConfig{}, fmt.Errorf("%w: at least one asset address is required", ErrMissing)
	}

	interval, err := nonNegativeDuration(v, "interval")
	if err != nil {
		return PriceConfig{}, err
	}
	backoff, err := nonNegativeDuration(v, "retry-backoff")
	if err != nil {
		return PriceConfig{}, err
	}
	priceDecimals := v.GetInt("price-decimals")
	if priceDecimals < 0 || priceDecimals > 77 {
		return PriceConfig{}, fmt.Errorf("price-decimals out of range: %d", priceDecimals)
	}
	if v.GetInt("max-retries") < 0 {
		return PriceConfig{}, fmt.Errorf("max-retries must not be negative")
	}

	return PriceConfig{
		Common:        base,
		Assets:        assets,
		Interval:      interval,
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  backoff,
		Concurrency:   v.GetInt("concurrency"),
		Block:         v.GetUint64("block"),
		PriceDecimals: uint8(priceDecimals),
	}, nil
}
