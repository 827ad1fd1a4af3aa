// Package ledger is the server's view of the chain: account existence and
// balance, sub-account creation and transfers from the operator account.
package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/mr-tron/base58"
)

// AccountView is the on-chain state of an account. Balance is in yoctoNEAR.
type AccountView struct {
	Exists  bool
	Balance *big.Int
}

// Ledger is implemented by Memory and RPC. Transport failures wrap
// common.ErrLedgerUnavailable.
type Ledger interface {
	ViewAccount(ctx context.Context, accountID string) (AccountView, error)
	// CreateAccount creates accountID with publicKey as its full-access key.
	// An existing account yields common.ErrNameTaken.
	CreateAccount(ctx context.Context, accountID, publicKey string) (txHash string, err error)
	// Transfer sends amount from the operator account to receiverID.
	Transfer(ctx context.Context, receiverID string, amount *big.Int) (txHash string, err error)
	OperatorBalance(ctx context.Context) (*big.Int, error)
}

var yoctoPerNEAR = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// ParseNEAR converts a decimal NEAR amount such as "0.5" to yoctoNEAR.
func ParseNEAR(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return nil, fmt.Errorf("invalid NEAR amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(yoctoPerNEAR))
	if !r.IsInt() {
		return nil, fmt.Errorf("NEAR amount %q has more than 24 decimals", s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatNEAR renders a yoctoNEAR amount as decimal NEAR.
func FormatNEAR(yocto *big.Int) string {
	if yocto == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(yocto, yoctoPerNEAR)
	s := strings.TrimRight(r.FloatString(24), "0")
	return strings.TrimSuffix(s, ".")
}

func newTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base58.Encode(b)
}
