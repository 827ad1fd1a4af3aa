package models

import "strings"

type CallerKind string

const (
	CallerFederated CallerKind = "federated"
	CallerWallet    CallerKind = "wallet"
)

// Caller is the proven identity behind a request: the email claim of a
// verified token, or the address in the wallet header.
type Caller struct {
	Kind       CallerKind
	Identifier string
	Subject    string
}

// Owns reports whether identifier names this caller.
func (c Caller) Owns(identifier string) bool {
	return c.Identifier != "" && c.Identifier == NormalizeIdentifier(identifier)
}

// NormalizeIdentifier lowercases and trims an email or wallet address.
func NormalizeIdentifier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
