package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"lendingScope/internal/config"
	"lendingScope/internal/contracts"
	"lendingScope/internal/model"
	"lendingScope/internal/oracle"
	"lendingScope/internal/units"
)

func runPrice(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPrice(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	rt, err := setup(cmd, cfg.Common)
	if err != nil {
		return err
	}
	defer rt.close()

	priceOracle := contracts.NewOracle(rt.client, cfg.Contracts.Oracle)
	reader := oracle.NewReader(priceOracle, oracle.Config{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Concurrency:  cfg.Concurrency,
		Block:        cfg.Block,
	}, rt.logger, rt.metrics)
	board := oracle.NewBoard(cfg.Assets)

	rt.logger.Info("price reader start",
		zap.String("oracle", cfg.Contracts.Oracle.Hex()),
		zap.Int("assets", len(cfg.Assets)),
		zap.Duration("interval", cfg.Interval),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	out := cmd.OutOrStdout()
	live := isTerminal(out)

	round := func() []model.AssetPrice {
		board.Reset()
		if live {
			renderBoard(out, board, cfg.Assets, cfg.PriceDecimals)
		}
		results := reader.FetchPrices(rt.ctx, cfg.Assets, board)
		if live {
			// Redraw over the loading table: header plus one line per asset.
			fmt.Fprintf(out, "\033[%dA\033[J", len(cfg.Assets)+1)
		}
		renderBoard(out, board, cfg.Assets, cfg.PriceDecimals)

		if len(rt.sinks) > 0 {
			records := make([]model.PriceRecord, 0, len(results))
			for _, res := range results {
				records = append(records, res.Record(rt.chainID.Uint64(), cfg.Contracts.Oracle))
			}
			if err := rt.sinks.PutPrices(rt.ctx, records); err != nil {
				rt.logger.Warn("write price history", zap.Error(err))
			}
		}
		return results
	}

	results := round()
	if cfg.Interval == 0 {
		if failed := countFailed(results); failed > 0 {
			return fmt.Errorf("%d of %d price reads failed", failed, len(results))
		}
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-rt.ctx.Done():
			rt.logger.Info("price reader stopped")
			return nil
		case <-ticker.C:
			fmt.Fprintln(out)
			round()
		}
	}
}

// renderBoard writes one line per asset: raw oracle value (or loading/error
// marker) and the value scaled by priceDecimals.
func renderBoard(w io.Writer, board *oracle.Board, assets []common.Address, priceDecimals uint8) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASSET\tPRICE\tVALUE\t")
	for _, asset := range assets {
		display := board.Display(asset)
		value := "-"
		if price, ok := board.Get(asset); ok && price.Resolved() {
			value = units.FormatUnits(price.Price, priceDecimals)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", asset.Hex(), display, value)
	}
	_ = tw.Flush()
}

func countFailed(results []model.AssetPrice) int {
	failed := 0
	for _, res := range results {
		if !res.Resolved() {
			failed++
		}
	}
	return failed
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
