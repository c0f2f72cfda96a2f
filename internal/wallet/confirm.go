package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"lendingScope/internal/chain"
)

// AutoConfirm signs every request without asking.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, chain.SignRequest) error {
	return nil
}

// PromptConfirmer asks on Out and reads a y/N answer from In.
// Anything other than yes declines the signature.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer

	reader  *bufio.Reader
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{In: in, Out: out, reader: bufio.NewReader(in)}
}

func (p *PromptConfirmer) Confirm(ctx context.Context, req chain.SignRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	fmt.Fprintf(p.Out, "Sign %s transaction\n", req.Action)
	fmt.Fprintf(p.Out, "  from:  %s\n  to:    %s\n  nonce: %d\n  gas:   %d\n", req.From.Hex(), req.To.Hex(), req.Nonce, req.Gas)
	if req.GasFeeCap != nil {
		fmt.Fprintf(p.Out, "  max fee per gas: %s wei\n", req.GasFeeCap.String())
	}
	fmt.Fprint(p.Out, "Confirm? [y/N]: ")

	line, err := p.readLine(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		fmt.Fprintln(p.Out)
		return err
	}
	if err != nil && line == "" {
		return fmt.Errorf("%w: %v", chain.ErrUserRejected, err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return chain.ErrUserRejected
	}
}

// readLine waits for one line of input or for ctx to end. A read abandoned by
// cancellation stays pending and is consumed by the next call.
func (p *PromptConfirmer) readLine(ctx context.Context) (string, error) {
	if p.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := p.reader.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
		p.pending = ch
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.pending:
		p.pending = nil
		return res.line, res.err
	}
}
