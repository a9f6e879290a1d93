package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EVMNetwork holds the connection and signing settings for one EVM chain.
type EVMNetwork struct {
	RPCUrl     string  `mapstructure:"rpc_url"`
	ChainID    int64   `mapstructure:"chain_id"`
	PrivateKey string  `mapstructure:"private_key"`
	GasLimit   *uint64 `mapstructure:"gas_limit"`
	GasPrice   *int64  `mapstructure:"gas_price"`
}

// EVMConfig maps registry chain ids to network settings.
type EVMConfig struct {
	Networks map[string]EVMNetwork `mapstructure:"networks"`
}

// SolanaConfig holds Solana RPC and signing settings.
type SolanaConfig struct {
	RPCUrl        string `mapstructure:"rpc_url"`
	PrivateKey    string `mapstructure:"private_key"`
	Commitment    string `mapstructure:"commitment"`
	SkipPreflight bool   `mapstructure:"skip_preflight"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Config holds the application configuration
type Config struct {
	JWTToken string `mapstructure:"jwt_token"`
	BaseURL  string `mapstructure:"base_url"`

	ReferrerAddress string `mapstructure:"referrer_address"`
	ReferrerFeeBps  int64  `mapstructure:"referrer_fee_bps"`

	QuoteDebounce time.Duration `mapstructure:"quote_debounce"`
	QuoteRefresh  time.Duration `mapstructure:"quote_refresh"`

	SessionFile   string `mapstructure:"session_file"`
	TokenListFile string `mapstructure:"token_list_file"`

	Log    LogConfig    `mapstructure:"log"`
	EVM    EVMConfig    `mapstructure:"evm"`
	Solana SolanaConfig `mapstructure:"solana"`
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".altverse-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://1click.chaindefuser.com")
	viper.SetDefault("referrer_fee_bps", 0)
	viper.SetDefault("quote_debounce", 300*time.Millisecond)
	viper.SetDefault("quote_refresh", 5*time.Second)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.encoding", "console")
	viper.SetDefault("solana.commitment", "confirmed")

	// Read from environment variables
	viper.SetEnvPrefix("ALTVERSE_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// AutomaticEnv does not feed Unmarshal, so re-read the essentials
	// directly for env-only setups.
	if cfg.JWTToken == "" {
		cfg.JWTToken = viper.GetString("jwt_token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = viper.GetString("base_url")
	}

	// Validate JWT token
	if cfg.JWTToken == "" {
		return nil, fmt.Errorf("JWT token not found. Please set ALTVERSE_SWAP_JWT_TOKEN environment variable or create a .altverse-swap.yaml config file")
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
