package config

import (
	"flag"
	"io"

	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/flagx"
)

// parseFlags overlays cfg with the flags listed in the package doc. Only
// those flags are parsed; anything else in args is left for other loaders.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-s", "-d", "-n", "-t", "-w", "-l"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	network := string(cfg.Network)
	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "collaborator server base URL")
	fs.StringVar(&cfg.ParentDomain, "d", cfg.ParentDomain, "parent domain of managed accounts")
	fs.StringVar(&network, "n", network, "ledger network (testnet|mainnet)")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "timeout for custody, registry and funding calls")
	fs.StringVar(&cfg.WalletDBPath, "w", cfg.WalletDBPath, "wallet session database path")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Network = models.Network(network)
	return nil
}
