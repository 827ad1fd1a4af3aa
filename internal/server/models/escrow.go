package models

import "time"

// EscrowedKey indexes a sealed private key held in the blob store.
type EscrowedKey struct {
	AccountID  string
	Identifier string
	Network    Network
	StorageKey string
	Nonce      []byte
	Checksum   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
