package client

import (
	"net/http"

	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/common"
)

// RequestOption mutates an outgoing request.
type RequestOption func(*http.Request)

// WithBearer sets "Authorization: Bearer <token>" when token is non-empty.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		if token != "" {
			r.Header.Set(common.AuthorizationHeader, "Bearer "+token)
		}
	}
}

// WithHeader sets an arbitrary header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// WithPrincipal attaches the identity proof for p.
func WithPrincipal(p models.Principal) RequestOption {
	switch v := p.(type) {
	case models.FederatedPrincipal:
		return WithBearer(v.SessionToken)
	case models.WalletPrincipal:
		return WithHeader(common.WalletAddressHeader, v.Identifier())
	default:
		return func(*http.Request) {}
	}
}
