// Package oracle reads asset prices from the on-chain price oracle.
//
// Each read is independent: failures are reported per asset as an error
// marker on the returned model.AssetPrice and never abort sibling reads.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lendingScope/internal/metrics"
	"lendingScope/internal/model"
)

// PriceSource reads a single asset price. *contracts.Oracle satisfies it.
type PriceSource interface {
	GetAssetPrice(ctx context.Context, asset common.Address, block *big.Int) (*big.Int, error)
}

// Config controls read behavior. The zero value fires each read once with no retry.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Concurrency  int
	// Block pins reads to a block height; zero reads latest state.
	Block uint64
}

// Reader fetches asset prices from a PriceSource.
type Reader struct {
	source  PriceSource
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReader(source PriceSource, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Reader{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// FetchPrice reads the current price of asset. It always returns a value:
// either Price is set or Err carries the failure.
func (r *Reader) FetchPrice(ctx context.Context, asset common.Address) model.AssetPrice {
	result := model.AssetPrice{Asset: asset, BlockNumber: r.cfg.Block}
	if r.source == nil {
		result.Err = fmt.Errorf("price source is nil")
		result.AsOf = r.now()
		return result
	}

	var block *big.Int
	if r.cfg.Block > 0 {
		block = new(big.Int).SetUint64(r.cfg.Block)
	}

	start := time.Now()
	var price *big.Int
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context, attempt int) error {
		var err error
		price, err = r.source.GetAssetPrice(ctx, asset, block)
		if err != nil && attempt < r.cfg.MaxRetries {
			r.logger.Debug("price fetch attempt failed", zap.String("asset", asset.Hex()), zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return err
	})
	result.AsOf = r.now()

	if err != nil {
		result.Err = fmt.Errorf("get asset price %s: %w", asset.Hex(), err)
		r.logger.Warn("price fetch failed", zap.String("asset", asset.Hex()), zap.Error(err))
		r.metrics.ObservePriceFetch("error", time.Since(start))
		return result
	}

	result.Price = price
	r.logger.Debug("price fetched", zap.String("asset", asset.Hex()), zap.String("price", price.String()))
	r.metrics.ObservePriceFetch("ok", time.Since(start))
	return result
}

// FetchPrices reads every asset concurrently and returns results in input
// order. When board is non-nil each result is published as soon as it resolves.
func (r *Reader) FetchPrices(ctx context.Context, assets []common.Address, board *Board) []model.AssetPrice {
	results := make([]model.AssetPrice, len(assets))

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			price := r.FetchPrice(ctx, asset)
			results[i] = price
			if board != nil {
				board.Set(price)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
