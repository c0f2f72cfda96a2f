package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// TxConfig holds configuration for the deposit and withdraw commands.
type TxConfig struct {
	Common
	Amount string
	Yes    bool

	PrivateKey string
	Keystore   string
	Passphrase string

	GasLimit       uint64
	GasLimitRate   float64
	FeeCapRate     int64
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// LoadTx merges config file, environment variables, and flags into TxConfig.
// Key material is read from LENDSCOPE_PRIVATE_KEY or LENDSCOPE_KEYSTORE and
// LENDSCOPE_PASSPHRASE, usually via .env.
func LoadTx(cfgFile string, flags *pflag.FlagSet) (TxConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"gas-limit-rate":  1.2,
		"fee-cap-rate":    int64(2),
		"confirm-timeout": 2 * time.Minute,
		"poll-interval":   time.Second,
	})
	if err != nil {
		return TxConfig{}, err
	}

	base, err := loadCommon(v)
	if err != nil {
		return TxConfig{}, err
	}
	if err := base.Contracts.Require("token", "pool"); err != nil {
		return TxConfig{}, err
	}

	cfg := TxConfig{
		Common:         base,
		Amount:         strings.TrimSpace(v.GetString("amount")),
		Yes:            v.GetBool("yes"),
		PrivateKey:     strings.TrimSpace(v.GetString("private-key")),
		Keystore:       strings.TrimSpace(v.GetString("keystore")),
		Passphrase:     v.GetString("passphrase"),
		GasLimit:       v.GetUint64("gas-limit"),
		GasLimitRate:   v.GetFloat64("gas-limit-rate"),
		FeeCapRate:     v.GetInt64("fee-cap-rate"),
		ConfirmTimeout: v.GetDuration("confirm-timeout"),
		PollInterval:   v.GetDuration("poll-interval"),
	}
	if cfg.Amount == "" {
		return TxConfig{}, fmt.Errorf("%w: amount is required", ErrMissing)
	}
	if cfg.PrivateKey == "" && cfg.Keystore == "" {
		return TxConfig{}, fmt.Errorf("%w: set %s_PRIVATE_KEY or --keystore", ErrMissing, envPrefix)
	}
	if cfg.GasLimitRate < 1 {
		return TxConfig{}, fmt.Errorf("gas-limit-rate must be at least 1, got %v", cfg.GasLimitRate)
	}
	if cfg.FeeCapRate < 1 {
		return TxConfig{}, fmt.Errorf("fee-cap-rate must be at least 1, got %d", cfg.FeeCapRate)
	}
	return cfg, nil
}
