package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lendingScope/internal/units"
)

const envPrefix = "LENDSCOPE"

// SepoliaChainID is the network the lending contracts are deployed on.
const SepoliaChainID uint64 = 11155111

var ErrMissing = errors.New("config: missing value")

// Network selects the chain and the RPC endpoint used to reach it.
type Network struct {
	RPCURL  string
	ChainID uint64
}

// Contracts holds the deployed contract addresses.
type Contracts struct {
	Oracle common.Address
	Token  common.Address
	Pool   common.Address
}

// Common holds the settings shared by every command.
type Common struct {
	Network   Network
	Contracts Contracts
	// TokenDecimals < 0 means read decimals() from the token.
	TokenDecimals int
	Scaling       units.Policy
	LogLevel      string
	MetricsAddr   string
	Out           string
	PGDSN         string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", SepoliaChainID)
	v.SetDefault("token-decimals", -1)
	v.SetDefault("scaling", string(units.PolicyScaled))
	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadCommon(v *viper.Viper) (Common, error) {
	scaling, err := units.ParsePolicy(v.GetString("scaling"))
	if err != nil {
		return Common{}, err
	}

	cfg := Common{
		Network: Network{
			RPCURL:  strings.TrimSpace(v.GetString("rpc")),
			ChainID: v.GetUint64("chain-id"),
		},
		TokenDecimals: v.GetInt("token-decimals"),
		Scaling:       scaling,
		LogLevel:      v.GetString("log-level"),
		MetricsAddr:   v.GetString("metrics-addr"),
		Out:           v.GetString("out"),
		PGDSN:         v.GetString("pg-dsn"),
	}
	if cfg.Network.RPCURL == "" {
		return Common{}, fmt.Errorf("%w: rpc url is required", ErrMissing)
	}
	if cfg.TokenDecimals > 255 {
		return Common{}, fmt.Errorf("token decimals out of range: %d", cfg.TokenDecimals)
	}

	for _, item := range []struct {
		key string
		dst *common.Address
	}{
		{"oracle", &cfg.Contracts.Oracle},
		{"token", &cfg.Contracts.Token},
		{"pool", &cfg.Contracts.Pool},
	} {
		addr, err := optionalAddress(v, item.key)
		if err != nil {
			return Common{}, err
		}
		*item.dst = addr
	}
	return cfg, nil
}

// Require checks that the named contract addresses are configured.
func (c Contracts) Require(names ...string) error {
	for _, name := range names {
		var addr common.Address
		switch name {
		case "oracle":
			addr = c.Oracle
		case "token":
			addr = c.Token
		case "pool":
			addr = c.Pool
		default:
			return fmt.Errorf("unknown contract %q", name)
		}
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: %s address is required", ErrMissing, name)
		}
	}
	return nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func optionalAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address: %s", key, raw)
	}
	return common.HexToAddress(raw), nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func nonNegativeDuration(v *viper.Viper, key string) (time.Duration, error) {
	d := v.GetDuration(key)
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
