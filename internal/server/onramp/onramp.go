// Package onramp opens hosted fiat-to-crypto purchase sessions.
package onramp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/nova-sdk/novakeeper/internal/common"
)

// SessionRequest describes the purchase the user agreed to.
type SessionRequest struct {
	AccountID string
	Network   string
	AmountUSD float64
}

// Session is a provider session. ClientSecret is handed to the browser and
// is never logged.
type Session struct {
	ID           string
	ClientSecret string
}

// Provider is implemented by HTTP and Fake. Provider outages wrap
// common.ErrFundingUnavailable.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
}

// HTTP calls a provider's session endpoint with a bearer API key.
type HTTP struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewHTTP(url, apiKey string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *HTTP) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	payload, err := json.Marshal(map[string]any{
		"wallet_address":       req.AccountID,
		"destination_network":  "near",
		"destination_currency": "near",
		"source_currency":      "usd",
		"source_amount":        fmt.Sprintf("%.2f", req.AmountUSD),
		"livemode":             req.Network == "mainnet",
	})
	if err != nil {
		return Session{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/sessions", bytes.NewReader(payload))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(common.AuthorizationHeader, "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", common.ErrFundingUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("%w: read body: %v", common.ErrFundingUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return Session{}, fmt.Errorf("%w: provider status %d", common.ErrFundingUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		msg := gjson.GetBytes(body, "error.message").String()
		return Session{}, fmt.Errorf("%w: provider status %d: %s", common.ErrInvalid, resp.StatusCode, msg)
	}

	res := gjson.ParseBytes(body)
	s := Session{ID: res.Get("id").String(), ClientSecret: res.Get("client_secret").String()}
	if s.ID == "" || s.ClientSecret == "" {
		return Session{}, fmt.Errorf("%w: provider response has no session", common.ErrFundingUnavailable)
	}
	return s, nil
}

// Fake hands out random sessions without calling anyone.
type Fake struct{}

func (Fake) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	id := "cos_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Session{ID: id, ClientSecret: id + "_secret_" + uuid.NewString()[:8]}, nil
}
