// Package models holds the client-side domain types shared by the identity,
// registry, custody and wallet layers and by the reconciliation orchestrator.
package models

import (
	"fmt"
	"regexp"
	"strings"
)

// PrincipalKind tags the active Principal variant.
type PrincipalKind string

const (
	KindFederated PrincipalKind = "federated"
	KindWallet    PrincipalKind = "wallet"
)

// Principal is the authenticated end user. The only implementations are
// FederatedPrincipal and WalletPrincipal; callers switch on the concrete type
// and the unexported marker keeps the set closed.
type Principal interface {
	Kind() PrincipalKind
	// Identifier is the durable key used for registry and custody lookups.
	Identifier() string
	principal()
}

// FederatedPrincipal is a login through the federated identity provider.
type FederatedPrincipal struct {
	Subject      string
	Email        string
	SessionToken string
}

func (FederatedPrincipal) Kind() PrincipalKind { return KindFederated }

// Identifier prefers the email and falls back to the subject.
func (p FederatedPrincipal) Identifier() string {
	if p.Email != "" {
		return strings.ToLower(strings.TrimSpace(p.Email))
	}
	return p.Subject
}

func (FederatedPrincipal) principal() {}

// String hides the session token.
func (p FederatedPrincipal) String() string {
	return fmt.Sprintf("federated(%s)", p.Identifier())
}

// WalletPrincipal is a self-custody wallet connection.
type WalletPrincipal struct {
	ExternalWalletAddress string
}

func (WalletPrincipal) Kind() PrincipalKind { return KindWallet }

func (p WalletPrincipal) Identifier() string {
	return strings.TrimSpace(p.ExternalWalletAddress)
}

func (WalletPrincipal) principal() {}

func (p WalletPrincipal) String() string {
	return fmt.Sprintf("wallet(%s)", p.Identifier())
}

// Accepts named accounts (alice.near, x.y.testnet) and 64-char implicit
// accounts.
var walletAddressRe = regexp.MustCompile(`^(([a-z0-9]+[-_])*[a-z0-9]+\.)*([a-z0-9]+[-_])*[a-z0-9]+$`)

// ValidWalletAddress reports whether addr is a well-formed ledger address.
func ValidWalletAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if len(addr) < 2 || len(addr) > 64 {
		return false
	}
	return walletAddressRe.MatchString(addr)
}
