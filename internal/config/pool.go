package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// PoolConfig holds configuration for the pool command.
type PoolConfig struct {
	Common
	User common.Address
}

// LoadPool merges config file, environment variables, and flags into PoolConfig.
func LoadPool(cfgFile string, flags *pflag.FlagSet) (PoolConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return PoolConfig{}, err
	}

	base, err := loadCommon(v)
	if err != nil {
		return PoolConfig{}, err
	}
	if err := base.Contracts.Require("token", "pool"); err != nil {
		return PoolConfig{}, err
	}

	cfg := PoolConfig{Common: base}
	if raw := strings.TrimSpace(v.GetString("user")); raw != "" {
		if !common.IsHexAddress(raw) {
			return PoolConfig{}, fmt.Errorf("invalid user address: %s", raw)
		}
		cfg.User = common.HexToAddress(raw)
	}
	return cfg, nil
}
