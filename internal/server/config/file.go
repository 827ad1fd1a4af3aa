package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nova-sdk/novakeeper/internal/flagx"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/timex"
)

// FileConfig is the on-disk shape. Durations accept "15s" or integer
// nanoseconds; absent fields keep the previous value.
type FileConfig struct {
	ListenAddr  string `json:"listen_addr" yaml:"listen_addr"`
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format"`

	TokenSecret   string          `json:"token_secret" yaml:"token_secret"`
	TokenValidity *timex.Duration `json:"token_validity" yaml:"token_validity"`
	DevLogin      *bool           `json:"dev_login" yaml:"dev_login"`

	ParentDomain       string `json:"parent_domain" yaml:"parent_domain"`
	Network            string `json:"network" yaml:"network"`
	MinOperatorBalance string `json:"min_operator_balance" yaml:"min_operator_balance"`

	Ledger struct {
		Backend    string          `json:"backend" yaml:"backend"`
		RPCURL     string          `json:"rpc_url" yaml:"rpc_url"`
		RelayerURL string          `json:"relayer_url" yaml:"relayer_url"`
		Timeout    *timex.Duration `json:"timeout" yaml:"timeout"`
	} `json:"ledger" yaml:"ledger"`

	Faucet struct {
		Amount    string          `json:"amount" yaml:"amount"`
		Interval  *timex.Duration `json:"interval" yaml:"interval"`
		Burst     int             `json:"burst" yaml:"burst"`
		Blacklist []string        `json:"blacklist" yaml:"blacklist"`
	} `json:"faucet" yaml:"faucet"`

	Custody struct {
		Passphrase string `json:"passphrase" yaml:"passphrase"`
		Salt       string `json:"salt" yaml:"salt"`
	} `json:"custody" yaml:"custody"`

	Blob struct {
		Backend   string `json:"backend" yaml:"backend"`
		AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
		SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`
		Bucket    string `json:"s3_bucket" yaml:"s3_bucket"`
		Region    string `json:"s3_region" yaml:"s3_region"`
		Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	} `json:"blob" yaml:"blob"`

	Onramp struct {
		URL    string `json:"url" yaml:"url"`
		APIKey string `json:"api_key" yaml:"api_key"`
	} `json:"onramp" yaml:"onramp"`
}

// parseFile overlays cfg with the file named by -c/-config, if any. Files
// ending in .yaml or .yml are YAML; anything else is JSON.
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
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.TokenSecret, fc.TokenSecret)
	setString(&cfg.ParentDomain, fc.ParentDomain)
	setString(&cfg.MinOperatorBalance, fc.MinOperatorBalance)
	setString(&cfg.LedgerBackend, fc.Ledger.Backend)
	setString(&cfg.LedgerRPCURL, fc.Ledger.RPCURL)
	setString(&cfg.RelayerURL, fc.Ledger.RelayerURL)
	setString(&cfg.FaucetAmount, fc.Faucet.Amount)
	setString(&cfg.CustodyPassphrase, fc.Custody.Passphrase)
	setString(&cfg.CustodySalt, fc.Custody.Salt)
	setString(&cfg.BlobBackend, fc.Blob.Backend)
	setString(&cfg.S3AccessKey, fc.Blob.AccessKey)
	setString(&cfg.S3SecretKey, fc.Blob.SecretKey)
	setString(&cfg.S3Bucket, fc.Blob.Bucket)
	setString(&cfg.S3Region, fc.Blob.Region)
	setString(&cfg.S3BaseEndpoint, fc.Blob.Endpoint)
	setString(&cfg.OnrampURL, fc.Onramp.URL)
	setString(&cfg.OnrampAPIKey, fc.Onramp.APIKey)

	if fc.Network != "" {
		cfg.Network = models.Network(strings.ToLower(fc.Network))
	}
	if fc.TokenValidity != nil {
		cfg.TokenValidity = fc.TokenValidity.Duration
	}
	if fc.DevLogin != nil {
		cfg.DevLogin = *fc.DevLogin
	}
	if fc.Ledger.Timeout != nil {
		cfg.LedgerTimeout = fc.Ledger.Timeout.Duration
	}
	if fc.Faucet.Interval != nil {
		cfg.FaucetInterval = fc.Faucet.Interval.Duration
	}
	if fc.Faucet.Burst > 0 {
		cfg.FaucetBurst = fc.Faucet.Burst
	}
	if fc.Faucet.Blacklist != nil {
		cfg.Blacklist = fc.Faucet.Blacklist
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
