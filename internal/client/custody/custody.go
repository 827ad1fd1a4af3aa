// Package custody is the client for the key custody boundary. It escrows a
// managed account's signing key and borrows it back on later sessions.
package custody

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

// Key is a key borrowed from custody.
type Key struct {
	AccountID  string
	PrivateKey string
}

// Custody stores and retrieves escrowed keys. The caller's Principal is the
// proof of identity the custody service checks against the escrow owner.
type Custody interface {
	Store(ctx context.Context, p models.Principal, accountID, privateKey string, network models.Network) (checksum string, err error)
	Retrieve(ctx context.Context, p models.Principal, accountID string) (Key, error)
}

type HTTPCustody struct {
	api *client.Client
	log logging.Logger
}

// NewHTTPCustody expects api to be configured with common.ErrCustodyUnavailable
// and common.ErrKeyNotFound so errors carry the custody-specific sentinels.
func NewHTTPCustody(api *client.Client, log logging.Logger) *HTTPCustody {
	return &HTTPCustody{api: api, log: logging.OrNop(log).With("module", "custody")}
}

type storeRequest struct {
	AccountID  string `json:"account_id"`
	PrivateKey string `json:"private_key"`
	Identifier string `json:"identifier"`
	Network    string `json:"network"`
}

type storeResponse struct {
	Checksum string `json:"checksum"`
}

func (c *HTTPCustody) Store(ctx context.Context, p models.Principal, accountID, privateKey string, network models.Network) (string, error) {
	if _, err := cryptox.ParsePrivateKey(privateKey); err != nil {
		return "", fmt.Errorf("store key: %w: %v", common.ErrInvalid, err)
	}

	var out storeResponse
	_, err := c.api.Do(ctx, http.MethodPost, "/keys/store", storeRequest{
		AccountID:  accountID,
		PrivateKey: privateKey,
		Identifier: p.Identifier(),
		Network:    string(network),
	}, &out, client.WithPrincipal(p))
	if err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}

	if want := cryptox.Checksum(privateKey); out.Checksum != want {
		return "", fmt.Errorf("store key: %w: checksum mismatch", common.ErrCustodyUnavailable)
	}
	c.log.Info(ctx, "key escrowed", "account_id", accountID, "checksum", out.Checksum)
	return out.Checksum, nil
}

type retrieveRequest struct {
	Identifier string `json:"identifier,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
}

type retrieveResponse struct {
	PrivateKey string `json:"private_key"`
	AccountID  string `json:"account_id"`
}

// Retrieve fetches the escrowed key for the principal's identifier, or for
// accountID when it is non-empty.
func (c *HTTPCustody) Retrieve(ctx context.Context, p models.Principal, accountID string) (Key, error) {
	req := retrieveRequest{Identifier: p.Identifier()}
	if accountID != "" {
		req = retrieveRequest{AccountID: accountID}
	}

	var out retrieveResponse
	_, err := c.api.Do(ctx, http.MethodPost, "/keys/retrieve", req, &out, client.WithPrincipal(p))
	if err != nil {
		return Key{}, fmt.Errorf("retrieve key: %w", err)
	}
	if _, err := cryptox.ParsePrivateKey(out.PrivateKey); err != nil {
		return Key{}, fmt.Errorf("retrieve key: %w: %v", common.ErrCustodyUnavailable, err)
	}
	if accountID != "" && out.AccountID != "" && out.AccountID != accountID {
		return Key{}, fmt.Errorf("retrieve key: %w: escrow belongs to %s", common.ErrForbidden, out.AccountID)
	}
	if out.AccountID == "" {
		out.AccountID = accountID
	}

	c.log.Debug(ctx, "key retrieved", "account_id", out.AccountID, "checksum", cryptox.Checksum(out.PrivateKey))
	return Key{AccountID: out.AccountID, PrivateKey: out.PrivateKey}, nil
}
