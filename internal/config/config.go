package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultRPCURL is the public endpoint used when no rpc is configured.
const DefaultRPCURL = "https://rpc.vscblockchain.org"

// maxDecimals bounds token and oracle precision.
const maxDecimals = 36

// Config holds configuration values loaded from flags, env, or config file.
// Amounts stay as strings here and are parsed against token decimals later.
type Config struct {
	RPCURL string

	Oracle     string
	Router     string
	BaseToken  string
	QuoteToken string

	AmountIn       string
	BaseDecimals   uint8
	QuoteDecimals  uint8
	OracleDecimals uint8
	DetectDecimals bool

	GasLimit     uint64
	GasPriceGwei string

	Interval          time.Duration
	RunOnStart        bool
	ConfirmTimeout    time.Duration
	ReceiptPoll       time.Duration
	RPCTimeout        time.Duration
	QuoteRetries      int
	QuoteRetryBackoff time.Duration
	ShutdownGrace     time.Duration

	LowBalance  string
	MetricsAddr string
	LogLevel    string
	EnvFile     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("amount-in", "1")
	v.SetDefault("base-decimals", 18)
	v.SetDefault("quote-decimals", 18)
	v.SetDefault("oracle-decimals", 18)
	v.SetDefault("detect-decimals", false)
	v.SetDefault("gas-limit", uint64(0))
	v.SetDefault("gas-price-gwei", "")
	v.SetDefault("interval", 30*time.Second)
	v.SetDefault("run-on-start", true)
	v.SetDefault("confirm-timeout", 2*time.Minute)
	v.SetDefault("receipt-poll", 2*time.Second)
	v.SetDefault("rpc-timeout", 10*time.Second)
	v.SetDefault("quote-retries", 2)
	v.SetDefault("quote-retry-backoff", 500*time.Millisecond)
	v.SetDefault("shutdown-grace", 15*time.Second)
	v.SetDefault("low-balance", "0.01")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("env-file", ".env")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	decimals := make(map[string]uint8, 3)
	for _, key := range []string{"base-decimals", "quote-decimals", "oracle-decimals"} {
		d := v.GetUint(key)
		if d > maxDecimals {
			return Config{}, fmt.Errorf("%s must be at most %d, got %d", key, maxDecimals, d)
		}
		decimals[key] = uint8(d)
	}

	cfg := Config{
		RPCURL:            strings.TrimSpace(v.GetString("rpc")),
		Oracle:            strings.TrimSpace(v.GetString("oracle")),
		Router:            strings.TrimSpace(v.GetString("router")),
		BaseToken:         strings.TrimSpace(v.GetString("base-token")),
		QuoteToken:        strings.TrimSpace(v.GetString("quote-token")),
		AmountIn:          v.GetString("amount-in"),
		BaseDecimals:      decimals["base-decimals"],
		QuoteDecimals:     decimals["quote-decimals"],
		OracleDecimals:    decimals["oracle-decimals"],
		DetectDecimals:    v.GetBool("detect-decimals"),
		GasLimit:          v.GetUint64("gas-limit"),
		GasPriceGwei:      strings.TrimSpace(v.GetString("gas-price-gwei")),
		Interval:          v.GetDuration("interval"),
		RunOnStart:        v.GetBool("run-on-start"),
		ConfirmTimeout:    v.GetDuration("confirm-timeout"),
		ReceiptPoll:       v.GetDuration("receipt-poll"),
		RPCTimeout:        v.GetDuration("rpc-timeout"),
		QuoteRetries:      v.GetInt("quote-retries"),
		QuoteRetryBackoff: v.GetDuration("quote-retry-backoff"),
		ShutdownGrace:     v.GetDuration("shutdown-grace"),
		LowBalance:        v.GetString("low-balance"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		EnvFile:           v.GetString("env-file"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	for _, field := range []struct{ name, value string }{
		{"oracle", c.Oracle},
		{"router", c.Router},
		{"base-token", c.BaseToken},
		{"quote-token", c.QuoteToken},
	} {
		if field.value == "" {
			return fmt.Errorf("%s address is required", field.name)
		}
	}
	if c.Interval < time.Second || c.Interval%time.Second != 0 {
		return fmt.Errorf("interval must be a whole number of seconds, at least 1s, got %s", c.Interval)
	}
	if c.QuoteRetries < 0 {
		return fmt.Errorf("quote-retries must not be negative")
	}
	return nil
}
