package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

// KeyOptions selects where the signing key comes from. PrivateKey wins over Keystore.
type KeyOptions struct {
	PrivateKey string
	Keystore   string
	Passphrase string
}

// Account is a loaded signing key.
type Account struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// LoadAccount loads the signing key from a raw hex key or an encrypted
// keystore file. A missing keystore passphrase is prompted on the terminal.
func LoadAccount(opts KeyOptions) (*Account, error) {
	if raw := strings.TrimSpace(opts.PrivateKey); raw != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return &Account{Address: crypto.PubkeyToAddress(key.PublicKey), key: key}, nil
	}

	if opts.Keystore == "" {
		return nil, fmt.Errorf("private key or keystore is required")
	}
	keyJSON, err := os.ReadFile(opts.Keystore)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	passphrase := opts.Passphrase
	if passphrase == "" {
		passphrase, err = promptPassphrase(os.Stdin, os.Stderr)
		if err != nil {
			return nil, err
		}
	}

	key, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return &Account{Address: key.Address, key: key.PrivateKey}, nil
}

// SignerFn returns a transaction signer bound to chainID.
func (a *Account) SignerFn(chainID *big.Int) (bind.SignerFn, error) {
	if a == nil || a.key == nil {
		return nil, fmt.Errorf("account not loaded")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(a.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}
	return opts.Signer, nil
}

func promptPassphrase(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keystore passphrase required (set LENDSCOPE_PASSPHRASE)")
	}
	fmt.Fprint(out, "Keystore passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(pass), nil
}
