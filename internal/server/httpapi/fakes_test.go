package httpapi

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/auth"
	"github.com/nova-sdk/novakeeper/internal/server/models"
	"github.com/nova-sdk/novakeeper/internal/server/services"
)

type fakeAccounts struct {
	LastCaller models.Caller
	LastCreate services.CreateRequest
	LastIdent  string

	exists    services.ExistsResult
	createErr error
}

func (f *fakeAccounts) Exists(ctx context.Context, caller models.Caller, identifier string) (services.ExistsResult, error) {
	f.LastCaller, f.LastIdent = caller, identifier
	return f.exists, nil
}

func (f *fakeAccounts) Create(ctx context.Context, caller models.Caller, req services.CreateRequest) (*models.Account, error) {
	f.LastCaller, f.LastCreate = caller, req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Account{AccountID: req.Name + ".nova-sdk.near", PublicKey: req.PublicKey, TxHash: "tx-1"}, nil
}

type fakeCustody struct {
	LastStore    services.StoreRequest
	LastRetrieve services.RetrieveRequest

	err error
}

func (f *fakeCustody) Store(ctx context.Context, caller models.Caller, req services.StoreRequest) (string, error) {
	f.LastStore = req
	if f.err != nil {
		return "", f.err
	}
	return "abcd", nil
}

func (f *fakeCustody) Retrieve(ctx context.Context, caller models.Caller, req services.RetrieveRequest) (services.RetrieveResult, error) {
	f.LastRetrieve = req
	if f.err != nil {
		return services.RetrieveResult{}, f.err
	}
	return services.RetrieveResult{PrivateKey: "ed25519:secret", AccountID: "alice.nova-sdk.near"}, nil
}

type fakeFunding struct {
	LastSession services.SessionRequest
	LastAccount string

	faucetErr error
}

func (f *fakeFunding) Session(ctx context.Context, caller models.Caller, req services.SessionRequest) (services.SessionResult, error) {
	f.LastSession = req
	return services.SessionResult{
		Session:      &models.FundingSession{ProviderRef: "cos_1"},
		ClientSecret: "cos_1_secret",
	}, nil
}

func (f *fakeFunding) Sessions(ctx context.Context, caller models.Caller, accountID string) ([]*models.FundingSession, error) {
	f.LastAccount = accountID
	return []*models.FundingSession{{ProviderRef: "cos_1", AmountUSD: 5, CreatedAt: time.Unix(0, 0).UTC()}}, nil
}

func (f *fakeFunding) Faucet(ctx context.Context, caller models.Caller, accountID string) (string, error) {
	f.LastAccount = accountID
	if f.faucetErr != nil {
		return "", f.faucetErr
	}
	return "tx-faucet", nil
}

// fakeProfile accepts "good" and rejects everything else.
type fakeProfile struct{}

func (fakeProfile) Verify(token string) (models.Caller, *auth.Claims, error) {
	switch token {
	case "good":
		return models.Caller{Kind: models.CallerFederated, Identifier: "alice@example.com", Subject: "sub-1"},
			&auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}, Email: "alice@example.com"}, nil
	case "old":
		return models.Caller{}, nil, common.ErrTokenExpired
	default:
		return models.Caller{}, nil, common.ErrInvalidToken
	}
}

func (fakeProfile) DevLogin(email string) (string, error) {
	if email == "" {
		return "", common.ErrInvalid
	}
	return "good", nil
}
