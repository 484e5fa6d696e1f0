package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxReplacements = 5
	DefaultTrackTimeout    = 30 * time.Minute
	DefaultPollInterval    = 4 * time.Second
	DefaultConfirmations   = 1
)

// Config holds the application configuration
type Config struct {
	LogLevel    string                   `mapstructure:"log_level"`
	HistoryPath string                   `mapstructure:"history_path"`
	Tracker     TrackerConfig            `mapstructure:"tracker"`
	Redis       RedisConfig              `mapstructure:"redis"`
	Metrics     MetricsConfig            `mapstructure:"metrics"`
	Networks    map[string]NetworkConfig `mapstructure:"networks"`
}

// TrackerConfig bounds how long a transaction chain is followed
type TrackerConfig struct {
	MaxReplacements int           `mapstructure:"max_replacements"`
	Timeout         time.Duration `mapstructure:"timeout"` // 0 = wait forever
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// RedisConfig enables mirroring of operation status into redis
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
}

// MetricsConfig exposes the metrics of action and track runs
type MetricsConfig struct {
	// Addr serves /metrics while the command runs
	Addr string `mapstructure:"addr"`
	// PushURL is a pushgateway the metrics are pushed to on exit
	PushURL string `mapstructure:"push_url"`
}

// NetworkConfig is the static per-network table
type NetworkConfig struct {
	ChainID         int64                  `mapstructure:"chain_id"`
	RPCUrl          string                 `mapstructure:"rpc_url"`
	PrivateKey      string                 `mapstructure:"private_key"`
	TxConfirmations uint64                 `mapstructure:"tx_confirmations"`
	NotifyEnabled   *bool                  `mapstructure:"notify_enabled"`
	HashNotify      bool                   `mapstructure:"hash_notify"`
	GasLimit        *uint64                `mapstructure:"gas_limit"`
	GasPrice        *int64                 `mapstructure:"gas_price"`
	Vaults          map[string]VaultConfig `mapstructure:"vaults"`
}

// VaultConfig describes a vault contract and the token it accepts
type VaultConfig struct {
	Address  string `mapstructure:"address"`
	Token    string `mapstructure:"token"`
	Decimals int32  `mapstructure:"decimals"`
}

// Notify reports whether notifications are enabled for the network (default true)
func (n NetworkConfig) Notify() bool {
	return n.NotifyEnabled == nil || *n.NotifyEnabled
}

// Vault looks up a vault by name, case-insensitively
func (n NetworkConfig) Vault(name string) (VaultConfig, bool) {
	v, ok := n.Vaults[strings.ToLower(name)]
	return v, ok
}

// Network looks up a network by name, case-insensitively
func (c *Config) Network(name string) (NetworkConfig, error) {
	n, ok := c.Networks[strings.ToLower(name)]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("network %s not configured", name)
	}
	return n, nil
}

// NetworkNames returns configured network names in sorted order
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads configuration from environment variables and config file.
// An explicit path takes precedence over the default search locations.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".yieldctl")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	// Set default values
	v.SetDefault("log_level", "info")
	v.SetDefault("history_path", "")
	v.SetDefault("tracker.max_replacements", DefaultMaxReplacements)
	v.SetDefault("tracker.timeout", DefaultTrackTimeout)
	v.SetDefault("tracker.poll_interval", DefaultPollInterval)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.push_url", "")

	// Read from environment variables
	v.SetEnvPrefix("YIELDCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// The default file is optional, an explicit one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	for name, n := range cfg.Networks {
		if n.TxConfirmations == 0 {
			n.TxConfirmations = DefaultConfirmations
		}
		cfg.Networks[name] = n
	}
	if cfg.Tracker.PollInterval <= 0 {
		cfg.Tracker.PollInterval = DefaultPollInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that every configured network is reachable in principle
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("no networks configured. Add a networks section to .yieldctl.yaml")
	}
	for _, name := range c.NetworkNames() {
		n := c.Networks[name]
		if n.RPCUrl == "" {
			return fmt.Errorf("RPC URL not configured for network %s", name)
		}
		if n.ChainID <= 0 {
			return fmt.Errorf("chain ID not configured for network %s", name)
		}
		for vault, vc := range n.Vaults {
			if vc.Address == "" {
				return fmt.Errorf("vault %s on network %s has no address", vault, name)
			}
		}
	}
	if c.Tracker.MaxReplacements < 0 {
		return fmt.Errorf("tracker.max_replacements cannot be negative")
	}
	return nil
}
