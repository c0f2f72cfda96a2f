package main

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lendingScope/internal/config"
	"lendingScope/internal/contracts"
	"lendingScope/internal/model"
	"lendingScope/internal/units"
)

func runPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPool(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	rt, err := setup(cmd, cfg.Common)
	if err != nil {
		return err
	}
	defer rt.close()

	block, err := rt.client.BlockNumber(rt.ctx)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}
	blockTime, err := rt.client.BlockTimestamp(rt.ctx, block)
	if err != nil {
		return fmt.Errorf("get block timestamp: %w", err)
	}

	pool := contracts.NewPool(rt.client, cfg.Contracts.Pool)
	token := contracts.NewToken(rt.client, cfg.Contracts.Token)
	snap, err := contracts.ReadPoolSnapshot(rt.ctx, pool, token, cfg.User, rt.logger)
	if err != nil {
		return fmt.Errorf("read pool: %w", err)
	}
	snap.ChainID = rt.chainID.Uint64()
	snap.BlockNumber = block
	snap.AsOf = time.Unix(int64(blockTime), 0).UTC().Format(time.RFC3339)
	if cfg.TokenDecimals >= 0 {
		snap.Token.Decimals = uint8(cfg.TokenDecimals)
	}

	renderSnapshot(cmd.OutOrStdout(), snap)
	return nil
}

func renderSnapshot(w io.Writer, snap model.PoolSnapshot) {
	symbol := snap.Token.Symbol
	if symbol == "" {
		symbol = snap.Token.Address
	}
	amount := func(raw string) string {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return raw
		}
		return units.FormatUnits(v, snap.Token.Decimals) + " " + symbol
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Pool\t%s\n", snap.Pool)
	fmt.Fprintf(tw, "Token\t%s (%s, %d decimals)\n", snap.Token.Address, symbol, snap.Token.Decimals)
	fmt.Fprintf(tw, "Block\t%d (%s)\n", snap.BlockNumber, snap.AsOf)
	fmt.Fprintf(tw, "Total supplied\t%s\n", amount(snap.TotalSupply))
	fmt.Fprintf(tw, "Total borrowed\t%s\n", amount(snap.TotalBorrowed))
	fmt.Fprintf(tw, "Utilization\t%s\n", snap.Utilization)
	if snap.User != "" {
		fmt.Fprintf(tw, "User\t%s\n", snap.User)
		fmt.Fprintf(tw, "Pool balance\t%s\n", amount(snap.UserBalance))
		fmt.Fprintf(tw, "Wallet balance\t%s\n", amount(snap.WalletBalance))
		fmt.Fprintf(tw, "Allowance\t%s\n", amount(snap.Allowance))
	}
	_ = tw.Flush()
}
