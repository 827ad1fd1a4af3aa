// Package funding negotiates the optional funding step for a freshly
// created managed account: a hosted on-ramp session on mainnet, or a faucet
// transfer on testnet.
package funding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nova-sdk/novakeeper/internal/client/client"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/registry"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

// Session is a hosted payment widget session.
type Session struct {
	SessionID    string
	ClientSecret string
}

// Method says how an account was funded.
type Method string

const (
	MethodFaucet  Method = "faucet"
	MethodSession Method = "session"
)

// Result of Fund. Exactly one of TxHash or Session is set.
type Result struct {
	Method  Method
	TxHash  string
	Session *Session
}

// Negotiator is the funding side flow used by the orchestrator.
type Negotiator interface {
	Fund(ctx context.Context, p models.Principal, accountID string, amountUSD float64) (Result, error)
}

type HTTPNegotiator struct {
	api      *client.Client
	registry registry.Registry
	network  models.Network
	log      logging.Logger
}

func NewHTTPNegotiator(api *client.Client, reg registry.Registry, network models.Network, log logging.Logger) *HTTPNegotiator {
	return &HTTPNegotiator{
		api:      api,
		registry: reg,
		network:  network,
		log:      logging.OrNop(log).With("module", "funding"),
	}
}

// Fund confirms the account is on record for p, then requests a faucet
// transfer on testnet or a hosted session on mainnet.
func (n *HTTPNegotiator) Fund(ctx context.Context, p models.Principal, accountID string, amountUSD float64) (Result, error) {
	ex, err := n.registry.Exists(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("fund: %w", err)
	}
	if !ex.Exists || ex.AccountID != accountID {
		return Result{}, fmt.Errorf("fund: %w: %s is not registered to %s", common.ErrAccountNotFound, accountID, p.Identifier())
	}

	if n.network == models.Testnet {
		tx, err := n.RequestFaucet(ctx, p, accountID)
		if err != nil {
			return Result{}, err
		}
		return Result{Method: MethodFaucet, TxHash: tx}, nil
	}

	s, err := n.CreateSession(ctx, p, accountID, amountUSD)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodSession, Session: &s}, nil
}

type sessionRequest struct {
	AccountID  string  `json:"account_id"`
	Identifier string  `json:"identifier"`
	AmountUSD  float64 `json:"amount_usd"`
}

type sessionResponse struct {
	ClientSecret string `json:"client_secret"`
	SessionID    string `json:"session_id"`
}

func (n *HTTPNegotiator) CreateSession(ctx context.Context, p models.Principal, accountID string, amountUSD float64) (Session, error) {
	if amountUSD <= 0 {
		return Session{}, fmt.Errorf("funding session: %w: amount must be positive", common.ErrInvalid)
	}

	var out sessionResponse
	_, err := n.api.Do(ctx, http.MethodPost, "/funding/session", sessionRequest{
		AccountID:  accountID,
		Identifier: p.Identifier(),
		AmountUSD:  amountUSD,
	}, &out, client.WithPrincipal(p))
	if err != nil {
		return Session{}, fmt.Errorf("funding session: %w", err)
	}
	n.log.Info(ctx, "funding session created", "account_id", accountID, "session_id", out.SessionID)
	return Session{SessionID: out.SessionID, ClientSecret: out.ClientSecret}, nil
}

type faucetRequest struct {
	AccountID string `json:"account_id"`
}

type faucetResponse struct {
	TxHash string `json:"tx_hash"`
}

func (n *HTTPNegotiator) RequestFaucet(ctx context.Context, p models.Principal, accountID string) (string, error) {
	var out faucetResponse
	_, err := n.api.Do(ctx, http.MethodPost, "/funding/faucet", faucetRequest{AccountID: accountID}, &out, client.WithPrincipal(p))
	if err != nil {
		return "", fmt.Errorf("faucet: %w", err)
	}
	n.log.Info(ctx, "faucet transfer", "account_id", accountID, "tx_hash", out.TxHash)
	return out.TxHash, nil
}
