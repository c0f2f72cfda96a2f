package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lendingScope/internal/chain"
	"lendingScope/internal/config"
	"lendingScope/internal/metrics"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "lendscope",
		Short:        "Lending pool price reader and deposit submitter",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	addCommonFlags(root.PersistentFlags())

	priceCmd := &cobra.Command{
		Use:   "price",
		Short: "Read asset prices from the price oracle",
		RunE:  runPrice,
	}
	priceCmd.Flags().StringSlice("asset", nil, "asset addresses (comma-separated)")
	priceCmd.Flags().Duration("interval", 0, "re-read prices on this interval, 0 reads once")
	priceCmd.Flags().Int("max-retries", 0, "retry attempts per price read")
	priceCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	priceCmd.Flags().Int("concurrency", 8, "maximum concurrent price reads")
	priceCmd.Flags().Uint64("block", 0, "read at this block height, 0 means latest")
	priceCmd.Flags().Int("price-decimals", 8, "oracle price precision used for display")
	root.AddCommand(priceCmd)

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Approve the pool and deposit tokens",
		RunE:  runDeposit,
	}
	addTxFlags(depositCmd.Flags())
	root.AddCommand(depositCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw tokens from the pool",
		RunE:  runWithdraw,
	}
	addTxFlags(withdrawCmd.Flags())
	root.AddCommand(withdrawCmd)

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Show pool totals and a user's position",
		RunE:  runPool,
	}
	poolCmd.Flags().String("user", "", "user address")
	root.AddCommand(poolCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file path")
	fs.String("env-file", ".env", "dotenv file with secrets")
	fs.String("rpc", "", "Ethereum RPC URL")
	fs.Uint64("chain-id", config.SepoliaChainID, "expected chain id, 0 accepts any")
	fs.String("oracle", "", "price oracle address")
	fs.String("token", "", "ERC20 token address")
	fs.String("pool", "", "lending pool address")
	fs.Int("token-decimals", -1, "token decimals, -1 reads decimals() from the token")
	fs.String("scaling", "scaled", "amount scaling (scaled, raw)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.String("out", "", "append history to this JSONL file")
	fs.String("pg-dsn", "", "Postgres DSN for history")
}

func addTxFlags(fs *pflag.FlagSet) {
	fs.String("amount", "", "amount in whole tokens (or smallest units with --scaling raw)")
	fs.Bool("yes", false, "sign without asking for confirmation")
	fs.String("keystore", "", "encrypted keystore file")
	fs.Uint64("gas-limit", 0, "maximum gas per transaction, 0 means no cap")
	fs.Float64("gas-limit-rate", 1.2, "multiplier applied to the gas estimate")
	fs.Int64("fee-cap-rate", 2, "base fee multiplier for the max fee per gas")
	fs.Duration("confirm-timeout", 2*time.Minute, "how long to wait for a receipt")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// session bundles what every command needs once configuration is loaded.
type session struct {
	ctx     context.Context
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  *chain.Client
	chainID *big.Int
	sinks   storage.Multi

	closers []func()
}

func setup(cmd *cobra.Command, base config.Common) (*session, error) {
	logger, err := newLogger(base.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	rt := &session{
		ctx:     ctx,
		logger:  logger,
		metrics: metrics.Default(),
		closers: []func(){stop, func() { _ = logger.Sync() }},
	}

	if base.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, base.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	client, err := chain.NewClient(ctx, base.Network.RPCURL)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	rt.client = client
	rt.closers = append(rt.closers, client.Close)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if base.Network.ChainID != 0 && chainID.Uint64() != base.Network.ChainID {
		rt.close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %d", chainID, base.Network.ChainID)
	}
	rt.chainID = chainID

	if base.Out != "" {
		rt.sinks = append(rt.sinks, storage.NewJsonlStorage(base.Out))
	}
	if base.PGDSN != "" {
		store, err := postgres.NewStore(ctx, base.PGDSN)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			rt.close()
			return nil, err
		}
		rt.sinks = append(rt.sinks, store)
	}

	logger.Info("connected",
		zap.String("rpc", base.Network.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.Int("sinks", len(rt.sinks)),
	)
	return rt, nil
}

// close releases resources in reverse order of acquisition.
func (rt *session) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
