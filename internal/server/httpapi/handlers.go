package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/services"
)

const maxRequestBody = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", common.ErrInvalid, err)
	}
	return nil
}

type claimsView struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
}

type profileResponse struct {
	Claims claimsView `json:"claims"`
}

// profileCheck answers 204 when no token is presented so the caller can tell
// "not signed in" from "signed in with a bad token".
func (s *Server) profileCheck(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, claims, err := s.svc.Profile.Verify(token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Claims: claimsView{Email: claims.Email, Subject: claims.Subject}})
}

type devLoginRequest struct {
	Email string `json:"email"`
}

type devLoginResponse struct {
	Token string `json:"token"`
}

func (s *Server) devLogin(w http.ResponseWriter, r *http.Request) {
	var req devLoginRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.svc.Profile.DevLogin(req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(time.Hour),
	})
	writeJSON(w, http.StatusOK, devLoginResponse{Token: token})
}

type existsRequest struct {
	Identifier string `json:"identifier"`
}

type existsResponse struct {
	Exists    bool   `json:"exists"`
	AccountID string `json:"account_id,omitempty"`
	Balance   string `json:"balance,omitempty"`
}

func (s *Server) accountExists(w http.ResponseWriter, r *http.Request) {
	var req existsRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Accounts.Exists(r.Context(), callerFrom(r.Context()), req.Identifier)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse(res))
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

func (s *Server) accountCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acct, err := s.svc.Accounts.Create(r.Context(), callerFrom(r.Context()), services.CreateRequest{
		Name:       strings.TrimSpace(req.Name),
		Identifier: req.Identifier,
		PublicKey:  req.PublicKey,
		Network:    req.Network,
	})
	if err != nil {
		s.metrics.AccountCreation(string(common.Classify(err)))
		s.writeError(w, r, err)
		return
	}
	s.metrics.AccountCreation("ok")
	writeJSON(w, http.StatusOK, createResponse{AccountID: acct.AccountID, PublicKey: acct.PublicKey, TxHash: acct.TxHash})
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

func (s *Server) keysStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.svc.Custody.Store(r.Context(), callerFrom(r.Context()), services.StoreRequest(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.KeyEscrowed()
	writeJSON(w, http.StatusOK, storeResponse{Checksum: sum})
}

type retrieveRequest struct {
	Identifier string `json:"identifier,omitempty"`
	AccountID  string `json:"account_id,omitempty"`
}

type retrieveResponse struct {
	PrivateKey string `json:"private_key"`
	AccountID  string `json:"account_id"`
}

func (s *Server) keysRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Custody.Retrieve(r.Context(), callerFrom(r.Context()), services.RetrieveRequest(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.KeyRetrieved()
	writeJSON(w, http.StatusOK, retrieveResponse(res))
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

func (s *Server) fundingSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Funding.Session(r.Context(), callerFrom(r.Context()), services.SessionRequest(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.SessionOpened()
	writeJSON(w, http.StatusOK, sessionResponse{ClientSecret: res.ClientSecret, SessionID: res.Session.ProviderRef})
}

type sessionView struct {
	SessionID string    `json:"session_id"`
	AmountUSD float64   `json:"amount_usd"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) fundingSessions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		s.writeError(w, r, fmt.Errorf("%w: account_id is required", common.ErrInvalid))
		return
	}
	list, err := s.svc.Funding.Sessions(r.Context(), callerFrom(r.Context()), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]sessionView, 0, len(list))
	for _, fs := range list {
		out = append(out, sessionView{SessionID: fs.ProviderRef, AmountUSD: fs.AmountUSD, CreatedAt: fs.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

type faucetRequest struct {
	AccountID string `json:"account_id"`
}

type faucetResponse struct {
	TxHash string `json:"tx_hash"`
}

func (s *Server) fundingFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.svc.Funding.Faucet(r.Context(), callerFrom(r.Context()), req.AccountID)
	if err != nil {
		s.metrics.FaucetRequest(string(common.Classify(err)))
		s.writeError(w, r, err)
		return
	}
	s.metrics.FaucetRequest("ok")
	writeJSON(w, http.StatusOK, faucetResponse{TxHash: tx})
}
