// Package config loads the YAML configuration for the kifuda service.
package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Registry RegistryConfig `yaml:"registry"`
	Token    TokenConfig    `yaml:"token"`
	Funding  FundingConfig  `yaml:"funding"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
}

// RegistryConfig seeds the admin registry.
type RegistryConfig struct {
	// Deployer becomes owner and holds all four roles initially.
	Deployer string `yaml:"deployer"`
	// Threshold in whole tokens; scaled x10^18 at construction.
	Threshold string `yaml:"threshold"`
}

// TokenConfig fixes the immutable token identity.
type TokenConfig struct {
	Name    string `yaml:"name"`
	Symbol  string `yaml:"symbol"`
	Account string `yaml:"account"`
}

// FundingConfig fixes the panel's construction parameters.
type FundingConfig struct {
	Account           string `yaml:"account"`
	DocURL            string `yaml:"doc_url"`
	DocHash           string `yaml:"doc_hash"`
	ExchangeRateSeed  string `yaml:"exchange_rate_seed"`
	ExchangeRateOnTop string `yaml:"exchange_rate_on_top"`
	ExchRateDecimals  uint   `yaml:"exch_rate_decimals"`
	// SeedMaxSupply in whole tokens; scaled x10^18 at construction.
	SeedMaxSupply string `yaml:"seed_max_supply"`
	DeployBlock   uint64 `yaml:"deploy_block"`
}

// APIConfig defines the HTTP API server.
type APIConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ListenAddr   string   `yaml:"listen_addr"`
	JWTSecret    string   `yaml:"jwt_secret"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// StorageConfig defines the event journal.
type StorageConfig struct {
	JournalPath string `yaml:"journal_path"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	cfg.ApplyDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Registry.Threshold == "" {
		c.Registry.Threshold = "0"
	}
	if c.Token.Name == "" {
		c.Token.Name = "Kifuda Token"
	}
	if c.Token.Symbol == "" {
		c.Token.Symbol = "KFD"
	}
	if c.Funding.ExchangeRateSeed == "" {
		c.Funding.ExchangeRateSeed = "1"
	}
	if c.Funding.ExchangeRateOnTop == "" {
		c.Funding.ExchangeRateOnTop = "0"
	}
	if c.Funding.SeedMaxSupply == "" {
		c.Funding.SeedMaxSupply = "0"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Storage.JournalPath == "" {
		c.Storage.JournalPath = "kifuda.db"
	}
}

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	if c.Registry.Deployer == "" {
		return fmt.Errorf("registry.deployer is required")
	}
	for name, v := range map[string]string{
		"registry.deployer": c.Registry.Deployer,
		"token.account":     c.Token.Account,
		"funding.account":   c.Funding.Account,
	} {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("%s: not a hex address: %q", name, v)
		}
	}
	for name, v := range map[string]string{
		"registry.threshold":           c.Registry.Threshold,
		"funding.exchange_rate_seed":   c.Funding.ExchangeRateSeed,
		"funding.exchange_rate_on_top": c.Funding.ExchangeRateOnTop,
		"funding.seed_max_supply":      c.Funding.SeedMaxSupply,
	} {
		if _, ok := new(big.Int).SetString(v, 10); !ok {
			return fmt.Errorf("%s: not a decimal integer: %q", name, v)
		}
	}
	if c.API.Enabled && c.API.JWTSecret == "" {
		return fmt.Errorf("api.jwt_secret is required when the API is enabled")
	}
	return nil
}

// BigInt parses a decimal field already checked by Validate.
func BigInt(v string) *big.Int {
	n, _ := new(big.Int).SetString(v, 10)
	return n
}
