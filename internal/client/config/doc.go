// Package config loads runtime configuration for the novakeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string   base URL of the collaborator server
//	-d string   parent domain of managed accounts
//	-n string   ledger network (testnet|mainnet)
//	-t duration timeout for custody, registry and funding calls
//	-w string   path of the wallet session database
//	-l string   log level (debug|info|warn|error)
//
// # File schema
//
// Durations use timex.Duration, so "12s" and integer nanoseconds both work:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "custody_url": "https://custody.example.com",
//	  "parent_domain": "nova-sdk.near",
//	  "network": "testnet",
//	  "request_timeout": "12s",
//	  "ledger_timeout": "15s",
//	  "retry_backoff": "500ms",
//	  "wallet_db": "wallet.db",
//	  "app_key_prefix": "nova",
//	  "funding": {"enabled": true, "amount_usd": 5}
//	}
package config
