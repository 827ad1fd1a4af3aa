package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/nova-sdk/novakeeper/internal/client/models"
)

// Config holds runtime settings for the reconciliation client.
//
// The four boundary URLs default to ServerURL; each may point at a separate
// deployment.
type Config struct {
	ServerURL   string
	IdentityURL string
	RegistryURL string
	CustodyURL  string
	FundingURL  string

	ParentDomain string
	Network      models.Network

	RequestTimeout time.Duration
	LedgerTimeout  time.Duration
	RetryBackoff   time.Duration

	WalletDBPath string
	AppKeyPrefix string

	FundingEnabled   bool
	FundingAmountUSD float64

	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.ParentDomain = "nova-sdk.near"
	c.Network = models.Testnet
	c.RequestTimeout = 12 * time.Second
	c.LedgerTimeout = 15 * time.Second
	c.RetryBackoff = 500 * time.Millisecond
	c.WalletDBPath = "wallet.db"
	c.AppKeyPrefix = "nova"
	c.FundingEnabled = true
	c.FundingAmountUSD = 5
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the config file named in args (if any),
// then flags from args. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	cfg.fillEndpoints()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillEndpoints() {
	base := strings.TrimRight(c.ServerURL, "/")
	for _, u := range []*string{&c.IdentityURL, &c.RegistryURL, &c.CustodyURL, &c.FundingURL} {
		if *u == "" {
			*u = base
		}
		*u = strings.TrimRight(*u, "/")
	}
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if _, err := models.ParseNetwork(string(c.Network)); err != nil {
		return err
	}
	if c.ParentDomain == "" {
		return fmt.Errorf("parent domain is required")
	}
	if c.RequestTimeout <= 0 || c.LedgerTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.FundingAmountUSD < 0 {
		return fmt.Errorf("funding amount must not be negative")
	}
	return nil
}
