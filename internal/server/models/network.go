// Package models holds the records persisted by the collaborator server and
// the caller identity derived from each request.
package models

import "fmt"

type Network string

const (
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// ParseNetwork accepts "testnet" or "mainnet".
func ParseNetwork(s string) (Network, error) {
	switch n := Network(s); n {
	case Testnet, Mainnet:
		return n, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}
