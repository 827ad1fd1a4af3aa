package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/flagx"
	"github.com/nova-sdk/novakeeper/internal/timex"
)

// FileConfig is the on-disk shape. Pointer fields distinguish "absent" from
// zero so a partial file only overrides what it names.
type FileConfig struct {
	ServerURL   string `json:"server_url" yaml:"server_url"`
	IdentityURL string `json:"identity_url" yaml:"identity_url"`
	RegistryURL string `json:"registry_url" yaml:"registry_url"`
	CustodyURL  string `json:"custody_url" yaml:"custody_url"`
	FundingURL  string `json:"funding_url" yaml:"funding_url"`

	ParentDomain string `json:"parent_domain" yaml:"parent_domain"`
	Network      string `json:"network" yaml:"network"`

	RequestTimeout *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	LedgerTimeout  *timex.Duration `json:"ledger_timeout" yaml:"ledger_timeout"`
	RetryBackoff   *timex.Duration `json:"retry_backoff" yaml:"retry_backoff"`

	WalletDB     string `json:"wallet_db" yaml:"wallet_db"`
	AppKeyPrefix string `json:"app_key_prefix" yaml:"app_key_prefix"`
	LogLevel     string `json:"log_level" yaml:"log_level"`

	Funding *struct {
		Enabled   *bool    `json:"enabled" yaml:"enabled"`
		AmountUSD *float64 `json:"amount_usd" yaml:"amount_usd"`
	} `json:"funding" yaml:"funding"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerURL, fc.ServerURL)
	setString(&cfg.IdentityURL, fc.IdentityURL)
	setString(&cfg.RegistryURL, fc.RegistryURL)
	setString(&cfg.CustodyURL, fc.CustodyURL)
	setString(&cfg.FundingURL, fc.FundingURL)
	setString(&cfg.ParentDomain, fc.ParentDomain)
	setString(&cfg.WalletDBPath, fc.WalletDB)
	setString(&cfg.AppKeyPrefix, fc.AppKeyPrefix)
	setString(&cfg.LogLevel, fc.LogLevel)
	if fc.Network != "" {
		cfg.Network = models.Network(strings.ToLower(fc.Network))
	}
	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.LedgerTimeout != nil {
		cfg.LedgerTimeout = fc.LedgerTimeout.Duration
	}
	if fc.RetryBackoff != nil {
		cfg.RetryBackoff = fc.RetryBackoff.Duration
	}
	if fc.Funding != nil {
		if fc.Funding.Enabled != nil {
			cfg.FundingEnabled = *fc.Funding.Enabled
		}
		if fc.Funding.AmountUSD != nil {
			cfg.FundingAmountUSD = *fc.Funding.AmountUSD
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
