package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lendingScope/internal/model"
	"lendingScope/internal/units"
)

// ReadPoolSnapshot reads pool totals, token metadata and, when user is set,
// the user's pool balance, wallet balance and allowance towards the pool.
// Utilization is totalBorrowed / totalSupply rounded to four places.
func ReadPoolSnapshot(ctx context.Context, pool *Pool, token *Token, user common.Address, logger *zap.Logger) (model.PoolSnapshot, error) {
	snap := model.PoolSnapshot{Pool: pool.Address().Hex()}

	var (
		meta                     model.TokenMeta
		supply, borrowed         *big.Int
		userBal, walletBal, allw *big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = token.Meta(gctx, logger)
		if err != nil {
			return fmt.Errorf("token meta: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		supply, err = pool.GetTotalSupply(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		borrowed, err = pool.GetTotalBorrowed(gctx)
		return err
	})
	hasUser := user != (common.Address{})
	if hasUser {
		g.Go(func() error {
			var err error
			userBal, err = pool.GetBalance(gctx, user)
			return err
		})
		g.Go(func() error {
			var err error
			walletBal, err = token.BalanceOf(gctx, user, nil)
			return err
		})
		g.Go(func() error {
			var err error
			allw, err = token.Allowance(gctx, user, pool.Address())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return snap, err
	}

	snap.Token = meta
	snap.TotalSupply = supply.String()
	snap.TotalBorrowed = borrowed.String()
	snap.Utilization = units.Ratio(borrowed, supply, 4)
	if hasUser {
		snap.User = user.Hex()
		snap.UserBalance = userBal.String()
		snap.WalletBalance = walletBal.String()
		snap.Allowance = allw.String()
	}
	return snap, nil
}
