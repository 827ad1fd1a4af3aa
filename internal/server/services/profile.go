package services

import (
	"strings"
	"time"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/auth"
	"github.com/nova-sdk/novakeeper/internal/server/config"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

// ProfileService verifies identity tokens and, for local runs, mints them.
type ProfileService struct {
	secret   []byte
	validity time.Duration
	devLogin bool
}

func NewProfileService(cfg *config.Config) *ProfileService {
	return &ProfileService{
		secret:   []byte(cfg.TokenSecret),
		validity: cfg.TokenValidity,
		devLogin: cfg.DevLogin,
	}
}

// Verify resolves a bearer token to the caller it proves.
func (s *ProfileService) Verify(token string) (models.Caller, *auth.Claims, error) {
	claims, err := auth.ParseToken(strings.TrimSpace(token), s.secret)
	if err != nil {
		return models.Caller{}, nil, err
	}
	return models.Caller{
		Kind:       models.CallerFederated,
		Identifier: models.NormalizeIdentifier(claims.Email),
		Subject:    claims.Subject,
	}, claims, nil
}

// DevLogin issues a token for email. It is refused unless dev login is on.
func (s *ProfileService) DevLogin(email string) (string, error) {
	if !s.devLogin {
		return "", common.ErrNotFound
	}
	return auth.GenerateToken(email, "", s.secret, s.validity)
}

// WalletCaller builds the caller proven by a wallet address header.
func WalletCaller(address string) (models.Caller, error) {
	id := models.NormalizeIdentifier(address)
	if id == "" || strings.ContainsAny(id, " \t/") {
		return models.Caller{}, common.ErrInvalidToken
	}
	return models.Caller{Kind: models.CallerWallet, Identifier: id, Subject: id}, nil
}
