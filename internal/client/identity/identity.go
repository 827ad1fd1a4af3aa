// Package identity answers "is this principal's session still valid".
//
// Federated principals are checked against the identity boundary
// (GET /profile-check). Wallet principals have no provider round trip; their
// address is validated locally.
package identity

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nova-sdk/novakeeper/internal/client/client"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

const profileCheckPath = "/profile-check"

// Result is the outcome of one verification. Claims is set only for a valid
// federated session.
type Result struct {
	Valid  bool
	Claims *models.Claims
}

// Verifier checks a principal. It never reports Valid on error.
//
// A nil error with Valid=false means "no session" and is not a failure. An
// error wrapping common.ErrUnauthorized means the provider rejected the
// token; common.ErrUnavailable means the check could not be made.
type Verifier interface {
	Verify(ctx context.Context, p models.Principal) (Result, error)
}

type HTTPVerifier struct {
	api *client.Client
	log logging.Logger
}

func NewHTTPVerifier(api *client.Client, log logging.Logger) *HTTPVerifier {
	return &HTTPVerifier{api: api, log: logging.OrNop(log).With("module", "identity")}
}

type profileResponse struct {
	Claims models.Claims `json:"claims"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, p models.Principal) (Result, error) {
	switch pr := p.(type) {
	case models.FederatedPrincipal:
		return v.verifyFederated(ctx, pr)
	case models.WalletPrincipal:
		return verifyWallet(pr)
	default:
		return Result{}, fmt.Errorf("%w: unsupported principal %T", common.ErrInvalid, p)
	}
}

func (v *HTTPVerifier) verifyFederated(ctx context.Context, p models.FederatedPrincipal) (Result, error) {
	if p.SessionToken == "" {
		return Result{}, nil
	}

	var out profileResponse
	status, err := v.api.Do(ctx, http.MethodGet, profileCheckPath, nil, &out, client.WithPrincipal(p))
	if err != nil {
		v.log.Info(ctx, "identity check failed", "class", common.Classify(err))
		return Result{}, fmt.Errorf("verify identity: %w", err)
	}
	if status == http.StatusNoContent {
		return Result{}, nil
	}
	if out.Claims.Email == "" && out.Claims.Subject == "" {
		return Result{}, fmt.Errorf("verify identity: %w: empty claims", common.ErrUnavailable)
	}

	claims := out.Claims
	return Result{Valid: true, Claims: &claims}, nil
}

func verifyWallet(p models.WalletPrincipal) (Result, error) {
	if !models.ValidWalletAddress(p.ExternalWalletAddress) {
		return Result{}, fmt.Errorf("%w: malformed wallet address %q", common.ErrInvalid, p.ExternalWalletAddress)
	}
	return Result{Valid: true}, nil
}
