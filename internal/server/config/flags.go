package config

import (
	"flag"
	"io"

	"github.com/nova-sdk/novakeeper/internal/flagx"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   HTTP listen address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-s string   identity token HMAC secret
//	-n string   ledger network (testnet|mainnet)
//	-p string   parent domain of managed accounts
//	-l string   log level
//	-dev        enable POST /session/dev
//
// Only these flags are parsed; the rest of args is ignored, so the config
// file flag and unknown flags do not collide.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-n", "-p", "-l", "-dev"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	network := string(cfg.Network)
	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.TokenSecret, "s", cfg.TokenSecret, "identity token secret")
	fs.StringVar(&network, "n", network, "ledger network")
	fs.StringVar(&cfg.ParentDomain, "p", cfg.ParentDomain, "parent domain")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.DevLogin, "dev", cfg.DevLogin, "enable development login endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Network = models.Network(network)
	return nil
}
