package wallet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"lendingScope/internal/chain"
)

// Well-known development key (hardhat account #0).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLoadAccountFromPrivateKey(t *testing.T) {
	acct, err := LoadAccount(KeyOptions{PrivateKey: devKey})
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	want := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if acct.Address != want {
		t.Fatalf("address mismatch: %s", acct.Address.Hex())
	}

	signFn, err := acct.SignerFn(big.NewInt(11155111))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(11155111),
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
	})
	signed, err := signFn(acct.Address, tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(11155111)), signed)
	if err != nil || sender != acct.Address {
		t.Fatalf("sender mismatch: %s %v", sender.Hex(), err)
	}
}

func TestLoadAccountRequiresSource(t *testing.T) {
	if _, err := LoadAccount(KeyOptions{}); err == nil {
		t.Fatalf("expected error without key source")
	}
	if _, err := LoadAccount(KeyOptions{PrivateKey: "0xnothex"}); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestPromptConfirmer(t *testing.T) {
	req := chain.SignRequest{Action: "approve", GasFeeCap: big.NewInt(10)}

	var out bytes.Buffer
	yes := NewPromptConfirmer(strings.NewReader("y\n"), &out)
	if err := yes.Confirm(context.Background(), req); err != nil {
		t.Fatalf("expected confirmation, got %v", err)
	}
	if !strings.Contains(out.String(), "approve") {
		t.Fatalf("prompt should name the action: %q", out.String())
	}

	no := NewPromptConfirmer(strings.NewReader("n\n"), &out)
	if err := no.Confirm(context.Background(), req); !errors.Is(err, chain.ErrUserRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}

	eof := NewPromptConfirmer(strings.NewReader(""), &out)
	if err := eof.Confirm(context.Background(), req); !errors.Is(err, chain.ErrUserRejected) {
		t.Fatalf("expected rejection on closed input, got %v", err)
	}
}

func TestPromptConfirmerCanceledWhileWaiting(t *testing.T) {
	in, feed := io.Pipe()
	defer feed.Close()
	var out bytes.Buffer
	p := NewPromptConfirmer(in, &out)
	req := chain.SignRequest{Action: "approval"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Confirm(ctx, req) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if errors.Is(err, chain.ErrUserRejected) {
			t.Fatalf("cancellation must not read as a rejection: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Confirm did not return after ctx was done")
	}

	// The abandoned read is picked up by the next prompt.
	go func() { _, _ = feed.Write([]byte("y\n")) }()
	if err := p.Confirm(context.Background(), req); err != nil {
		t.Fatalf("expected confirmation after cancel, got %v", err)
	}
}
