package models

import "time"

// FundingSession records a hosted on-ramp session opened for an account.
type FundingSession struct {
	ID          string
	AccountID   string
	Identifier  string
	AmountUSD   float64
	ProviderRef string
	CreatedAt   time.Time
}
