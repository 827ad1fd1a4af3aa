package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

func TestProfileService_DevLoginAndVerify(t *testing.T) {
	cfg := testConfig()
	svc := NewProfileService(cfg)

	_, err := svc.DevLogin("alice@example.com")
	require.ErrorIs(t, err, common.ErrNotFound)

	cfg.DevLogin = true
	svc = NewProfileService(cfg)
	tok, err := svc.DevLogin("Alice@Example.com")
	require.NoError(t, err)

	caller, claims, err := svc.Verify(" " + tok + " ")
	require.NoError(t, err)
	require.Equal(t, models.Caller{Kind: models.CallerFederated, Identifier: "alice@example.com", Subject: "alice@example.com"}, caller)
	require.Equal(t, "alice@example.com", claims.Email)

	_, _, err = svc.Verify("garbage")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestWalletCaller(t *testing.T) {
	c, err := WalletCaller(" Bob.testnet ")
	require.NoError(t, err)
	require.Equal(t, models.Caller{Kind: models.CallerWallet, Identifier: "bob.testnet", Subject: "bob.testnet"}, c)

	_, err = WalletCaller("  ")
	require.ErrorIs(t, err, common.ErrUnauthorized)
}
