package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PORTFOLIO"

// Config holds the engine parameters shared by every command.
type Config struct {
	ServiceFeeBips uint64
	DefaultFeeTier uint32
	DefaultTimeout uint64
	Lookback       uint64
	FeeTiers       []uint32
	Scenario       string
	EventsOut      string
	PGDSN          string
	LogLevel       string
}

// VerifyConfig holds configuration for the verify-pools command.
type VerifyConfig struct {
	RPCURL        string
	RPCRate       float64
	Factory       string
	Anchor        string
	WrappedNative string
	Assets        []string
	FeeTiers      []uint32
	Out           string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	feeTiers, err := getFeeTiers(v, "fee-tiers")
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		ServiceFeeBips: v.GetUint64("service-fee-bips"),
		DefaultFeeTier: v.GetUint32("default-fee-tier"),
		DefaultTimeout: v.GetUint64("default-timeout"),
		Lookback:       v.GetUint64("lookback"),
		FeeTiers:       feeTiers,
		Scenario:       v.GetString("scenario"),
		EventsOut:      v.GetString("events-out"),
		PGDSN:          v.GetString("pg-dsn"),
		LogLevel:       v.GetString("log-level"),
	}
	if cfg.ServiceFeeBips > 10_000 {
		return Config{}, fmt.Errorf("service-fee-bips %d exceeds 10000", cfg.ServiceFeeBips)
	}
	if cfg.Lookback < 60 {
		return Config{}, fmt.Errorf("lookback %d below 60 seconds", cfg.Lookback)
	}
	return cfg, nil
}

// LoadVerify merges config file, environment variables, and flags into VerifyConfig.
func LoadVerify(cfgFile string, flags *pflag.FlagSet) (VerifyConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return VerifyConfig{}, err
	}

	feeTiers, err := getFeeTiers(v, "fee-tiers")
	if err != nil {
		return VerifyConfig{}, err
	}
	return VerifyConfig{
		RPCURL:        v.GetString("rpc"),
		RPCRate:       v.GetFloat64("rpc-rate"),
		Factory:       v.GetString("factory"),
		Anchor:        v.GetString("anchor"),
		WrappedNative: v.GetString("wrapped-native"),
		Assets:        getStringSlice(v, "asset"),
		FeeTiers:      feeTiers,
		Out:           v.GetString("out"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("service-fee-bips", uint64(100))
	v.SetDefault("default-fee-tier", uint32(3000))
	v.SetDefault("default-timeout", uint64(900))
	v.SetDefault("lookback", uint64(7200))
	v.SetDefault("fee-tiers", "500,3000,10000")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("out", "./data/pool_checks.jsonl")
	v.SetDefault("rpc-rate", 10.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

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

func getFeeTiers(v *viper.Viper, key string) ([]uint32, error) {
	raw := getStringSlice(v, key)
	tiers := make([]uint32, 0, len(raw))
	for _, item := range raw {
		fee, err := strconv.ParseUint(item, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier %q: %w", item, err)
		}
		if fee == 0 || fee >= 1_000_000 {
			return nil, fmt.Errorf("fee tier %d out of range", fee)
		}
		tiers = append(tiers, uint32(fee))
	}
	return tiers, nil
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
