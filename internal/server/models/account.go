package models

import (
	"regexp"
	"time"
)

var accountNameRe = regexp.MustCompile(`^[a-z0-9_-]{2,64}$`)

// ValidAccountName reports whether name may be used as a sub-account label.
func ValidAccountName(name string) bool {
	return accountNameRe.MatchString(name)
}

// Account maps an identifier to the managed account created for it.
type Account struct {
	ID         string
	AccountID  string
	Identifier string
	PublicKey  string
	Network    Network
	TxHash     string
	CreatedAt  time.Time
}
