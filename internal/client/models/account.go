package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Network selects the ledger network.
type Network string

const (
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// ParseNetwork accepts "testnet" or "mainnet", case-insensitively.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Testnet, Mainnet:
		return n, nil
	default:
		return "", fmt.Errorf("unknown network %q", s)
	}
}

// ManagedAccount is the ledger sub-account operated on behalf of a Principal.
type ManagedAccount struct {
	AccountID string
	PublicKey string
	Network   Network
}

// Claims is what the identity provider asserts about a federated session.
type Claims struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
}

var accountNameRe = regexp.MustCompile(`^[a-z0-9_-]{2,64}$`)

// ValidAccountName reports whether name may be used as a sub-account label.
func ValidAccountName(name string) bool {
	return accountNameRe.MatchString(name)
}

// AccountID joins a name and the parent domain: "alice" + "nova-sdk.near".
func AccountID(name, parentDomain string) string {
	return name + "." + strings.TrimPrefix(parentDomain, ".")
}

// HasParentSuffix reports whether accountID is a direct child of parentDomain.
func HasParentSuffix(accountID, parentDomain string) bool {
	suffix := "." + strings.TrimPrefix(parentDomain, ".")
	name, ok := strings.CutSuffix(accountID, suffix)
	return ok && ValidAccountName(name)
}

// SuggestName derives a candidate account name from an identifier: the email
// local part or the leading label of a wallet address, lower-cased and
// reduced to [a-z0-9_-]. It returns "" when nothing usable is left.
func SuggestName(identifier string) string {
	s := strings.ToLower(strings.TrimSpace(identifier))
	if at := strings.IndexByte(s, '@'); at >= 0 {
		s = s[:at]
	} else if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == '.' || r == '+':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-_")
	if len(out) > 64 {
		out = out[:64]
	}
	if !ValidAccountName(out) {
		return ""
	}
	return out
}
