package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nova-sdk/novakeeper/internal/server/models"
)

// envFile is loaded into the process environment before NOVA_* variables
// are read. Variables already set in the environment win.
var envFile = ".env"

// parseEnv overlays cfg with NOVA_* environment variables.
func parseEnv(cfg *Config) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	strs := map[string]*string{
		"NOVA_LISTEN_ADDR":          &cfg.ListenAddr,
		"NOVA_DATABASE_DSN":         &cfg.DatabaseDSN,
		"NOVA_LOG_LEVEL":            &cfg.LogLevel,
		"NOVA_LOG_FORMAT":           &cfg.LogFormat,
		"NOVA_TOKEN_SECRET":         &cfg.TokenSecret,
		"NOVA_PARENT_DOMAIN":        &cfg.ParentDomain,
		"NOVA_MIN_OPERATOR_BALANCE": &cfg.MinOperatorBalance,
		"NOVA_LEDGER_BACKEND":       &cfg.LedgerBackend,
		"NOVA_LEDGER_RPC_URL":       &cfg.LedgerRPCURL,
		"NOVA_RELAYER_URL":          &cfg.RelayerURL,
		"NOVA_FAUCET_AMOUNT":        &cfg.FaucetAmount,
		"NOVA_CUSTODY_PASSPHRASE":   &cfg.CustodyPassphrase,
		"NOVA_CUSTODY_SALT":         &cfg.CustodySalt,
		"NOVA_BLOB_BACKEND":         &cfg.BlobBackend,
		"NOVA_S3_ACCESS_KEY":        &cfg.S3AccessKey,
		"NOVA_S3_SECRET_KEY":        &cfg.S3SecretKey,
		"NOVA_S3_BUCKET":            &cfg.S3Bucket,
		"NOVA_S3_REGION":            &cfg.S3Region,
		"NOVA_S3_ENDPOINT":          &cfg.S3BaseEndpoint,
		"NOVA_ONRAMP_URL":           &cfg.OnrampURL,
		"NOVA_ONRAMP_API_KEY":       &cfg.OnrampAPIKey,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"NOVA_TOKEN_VALIDITY":  &cfg.TokenValidity,
		"NOVA_LEDGER_TIMEOUT":  &cfg.LedgerTimeout,
		"NOVA_FAUCET_INTERVAL": &cfg.FaucetInterval,
	}
	for name, dst := range durations {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	if v, ok := os.LookupEnv("NOVA_NETWORK"); ok {
		cfg.Network = models.Network(v)
	}
	if v, ok := os.LookupEnv("NOVA_DEV_LOGIN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("NOVA_DEV_LOGIN: %w", err)
		}
		cfg.DevLogin = b
	}
	if v, ok := os.LookupEnv("NOVA_FAUCET_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NOVA_FAUCET_BURST: %w", err)
		}
		cfg.FaucetBurst = n
	}
	if v, ok := os.LookupEnv("NOVA_BLACKLIST"); ok {
		cfg.Blacklist = splitList(v)
	}
	return nil
}
