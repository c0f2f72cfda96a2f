package main

import (
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/chain"
	"lendingScope/internal/config"
	"lendingScope/internal/contracts"
	"lendingScope/internal/deposit"
	"lendingScope/internal/model"
	"lendingScope/internal/units"
	"lendingScope/internal/wallet"
)

// txSession is a session with a loaded signing account.
type txSession struct {
	*session
	cfg       config.TxConfig
	decimals  uint8
	amount    *big.Int
	submitter *deposit.Submitter
	signer    *wallet.Account
}

func setupTx(cmd *cobra.Command) (*txSession, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTx(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	rt, err := setup(cmd, cfg.Common)
	if err != nil {
		return nil, err
	}
	ts := &txSession{session: rt, cfg: cfg}

	ts.decimals, err = tokenDecimals(ts)
	if err != nil {
		rt.close()
		return nil, err
	}
	ts.amount, err = units.ToBaseUnits(cfg.Amount, ts.decimals, cfg.Scaling)
	if err != nil {
		rt.close()
		return nil, err
	}

	ts.signer, err = wallet.LoadAccount(wallet.KeyOptions{
		PrivateKey: cfg.PrivateKey,
		Keystore:   cfg.Keystore,
		Passphrase: cfg.Passphrase,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	signFn, err := ts.signer.SignerFn(rt.chainID)
	if err != nil {
		rt.close()
		return nil, err
	}

	var confirmer chain.Confirmer = wallet.AutoConfirm{}
	if !cfg.Yes {
		confirmer = wallet.NewPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	transactor := chain.NewTransactor(rt.client, ts.signer.Address, signFn, confirmer, chain.TxParams{
		ChainID:        rt.chainID,
		GasLimit:       cfg.GasLimit,
		GasLimitRate:   cfg.GasLimitRate,
		FeeCapRate:     cfg.FeeCapRate,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.PollInterval,
	}, rt.logger)

	opts := deposit.Options{ChainID: rt.chainID.Uint64()}
	if len(rt.sinks) > 0 {
		opts.Recorder = rt.sinks
	}
	ts.submitter = deposit.NewSubmitter(transactor, opts, rt.logger, rt.metrics)
	return ts, nil
}

func tokenDecimals(ts *txSession) (uint8, error) {
	if ts.cfg.TokenDecimals >= 0 {
		return uint8(ts.cfg.TokenDecimals), nil
	}
	decimals, err := contracts.NewTokenDecimalsCache(ts.client).Decimals(ts.ctx, ts.cfg.Contracts.Token)
	if err != nil {
		return 0, fmt.Errorf("read token decimals: %w", err)
	}
	return decimals, nil
}

func runDeposit(cmd *cobra.Command, _ []string) error {
	ts, err := setupTx(cmd)
	if err != nil {
		return err
	}
	defer ts.close()

	out := cmd.OutOrStdout()
	ts.logger.Info("deposit start",
		zap.String("owner", ts.signer.Address.Hex()),
		zap.String("token", ts.cfg.Contracts.Token.Hex()),
		zap.String("pool", ts.cfg.Contracts.Pool.Hex()),
		zap.String("amount", ts.amount.String()),
		zap.Uint8("decimals", ts.decimals),
	)
	fmt.Fprintf(out, "Depositing %s (%s base units)\n", units.FormatUnits(ts.amount, ts.decimals), ts.amount)

	outcome, err := ts.submitter.Submit(ts.ctx, model.DepositRequest{
		Token:  ts.cfg.Contracts.Token,
		Pool:   ts.cfg.Contracts.Pool,
		Owner:  ts.signer.Address,
		Amount: ts.amount,
	}, printTransitions(out))
	if err != nil {
		return err
	}

	printPhase(out, outcome.Approval)
	printPhase(out, outcome.Deposit)
	if outcome.State == deposit.StateFailed {
		return fmt.Errorf("deposit %s failed: %s", outcome.ID, outcome.Failure.Reason)
	}
	fmt.Fprintf(out, "Deposit %s succeeded\n", outcome.ID)
	return nil
}

func runWithdraw(cmd *cobra.Command, _ []string) error {
	ts, err := setupTx(cmd)
	if err != nil {
		return err
	}
	defer ts.close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Withdrawing %s (%s base units)\n", units.FormatUnits(ts.amount, ts.decimals), ts.amount)

	outcome, err := ts.submitter.Withdraw(ts.ctx, ts.cfg.Contracts.Pool, ts.amount)
	if err != nil {
		return err
	}
	printPhase(out, outcome.Withdraw)
	if outcome.Failure != nil {
		return fmt.Errorf("withdraw %s failed: %s", outcome.ID, outcome.Failure.Reason)
	}
	fmt.Fprintf(out, "Withdraw %s succeeded\n", outcome.ID)
	return nil
}

func printTransitions(w io.Writer) deposit.Observer {
	return func(_ string, from, to deposit.State, failure *deposit.Failure) {
		if failure != nil {
			fmt.Fprintf(w, "  %s -> %s: %s\n", from, to, failure.Reason)
			return
		}
		fmt.Fprintf(w, "  %s -> %s\n", from, to)
	}
}

func printPhase(w io.Writer, p deposit.PhaseResult) {
	if !p.Sent() {
		return
	}
	status := "confirmed"
	if p.Err != nil {
		status = "failed"
	}
	fmt.Fprintf(w, "  %s tx %s %s", p.Phase, p.TxHash.Hex(), status)
	if p.BlockNumber > 0 {
		fmt.Fprintf(w, " in block %d (gas %d)", p.BlockNumber, p.GasUsed)
	}
	fmt.Fprintln(w)
}
