// Package registry is the client for the account registry boundary: it
// answers whether a principal already has a managed account and submits
// sub-account creation.
package registry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nova-sdk/novakeeper/internal/client/client"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

// ExistsResult reports whether identifier maps to a managed account.
type ExistsResult struct {
	Exists    bool
	AccountID string
	// Balance is the ledger balance in yocto units, empty when the ledger did
	// not answer. Existence never depends on it.
	Balance string
}

// CreateResult describes a freshly created account. PrivateKey is the
// client-generated signing key; the registry never sees it and the caller
// owns escrowing it.
type CreateResult struct {
	AccountID  string
	PublicKey  string
	TxHash     string
	PrivateKey string
}

// Registry is consumed by the orchestrator and the funding negotiator.
type Registry interface {
	Exists(ctx context.Context, p models.Principal) (ExistsResult, error)
	Create(ctx context.Context, p models.Principal, name string) (CreateResult, error)
}

type HTTPRegistry struct {
	api          *client.Client
	parentDomain string
	network      models.Network
	newKeyPair   func() (*cryptox.KeyPair, error)
	log          logging.Logger
}

func NewHTTPRegistry(api *client.Client, parentDomain string, network models.Network, log logging.Logger) *HTTPRegistry {
	return &HTTPRegistry{
		api:          api,
		parentDomain: parentDomain,
		network:      network,
		newKeyPair:   cryptox.GenerateKeyPair,
		log:          logging.OrNop(log).With("module", "registry"),
	}
}

type existsRequest struct {
	Identifier string `json:"identifier"`
}

type existsResponse struct {
	Exists    bool   `json:"exists"`
	AccountID string `json:"account_id,omitempty"`
	Balance   string `json:"balance,omitempty"`
}

func (r *HTTPRegistry) Exists(ctx context.Context, p models.Principal) (ExistsResult, error) {
	var out existsResponse
	_, err := r.api.Do(ctx, http.MethodPost, "/account/exists",
		existsRequest{Identifier: p.Identifier()}, &out, client.WithPrincipal(p))
	if err != nil {
		return ExistsResult{}, fmt.Errorf("account exists: %w", err)
	}
	if out.Exists && !models.HasParentSuffix(out.AccountID, r.parentDomain) {
		return ExistsResult{}, fmt.Errorf("account exists: %w: account %q is not under %s",
			common.ErrInternal, out.AccountID, r.parentDomain)
	}
	return ExistsResult{Exists: out.Exists, AccountID: out.AccountID, Balance: out.Balance}, nil
}

type createRequest struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	PublicKey  string `json:"public_key"`
	Network    string `json:"network"`
}

type createResponse struct {
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
	TxHash    string `json:"tx_hash"`
}

// Create validates name locally, generates a key pair and asks the registry
// to create <name>.<parent domain> with the public half attached.
func (r *HTTPRegistry) Create(ctx context.Context, p models.Principal, name string) (CreateResult, error) {
	if !models.ValidAccountName(name) {
		return CreateResult{}, common.ErrInvalidName
	}

	kp, err := r.newKeyPair()
	if err != nil {
		return CreateResult{}, fmt.Errorf("create account: %w", err)
	}

	var out createResponse
	_, err = r.api.Do(ctx, http.MethodPost, "/account/create", createRequest{
		Name:       name,
		Identifier: p.Identifier(),
		PublicKey:  kp.PublicKey,
		Network:    string(r.network),
	}, &out, client.WithPrincipal(p))
	if err != nil {
		return CreateResult{}, fmt.Errorf("create account: %w", err)
	}

	want := models.AccountID(name, r.parentDomain)
	if out.AccountID != want {
		return CreateResult{}, fmt.Errorf("create account: %w: registry returned %q, expected %q",
			common.ErrInternal, out.AccountID, want)
	}

	r.log.Info(ctx, "account created", "account_id", out.AccountID, "tx_hash", out.TxHash)
	return CreateResult{
		AccountID:  out.AccountID,
		PublicKey:  kp.PublicKey,
		TxHash:     out.TxHash,
		PrivateKey: kp.PrivateKey,
	}, nil
}
