package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
	"github.com/nova-sdk/novakeeper/internal/server/blobstore"
	"github.com/nova-sdk/novakeeper/internal/server/models"
)

func newCustodySvc(t *testing.T) (*CustodyService, *fakeRepoMgr, *blobstore.Memory) {
	t.Helper()
	db, _ := newMockDB(t)
	rm := newFakeRepoMgr()
	blobs := blobstore.NewMemory()
	return NewCustodyService(db, rm, blobs, testConfig(), nil), rm, blobs
}

func recordAccount(rm *fakeRepoMgr, accountID, identifier string) {
	rm.a.rows[accountID] = &models.Account{AccountID: accountID, Identifier: identifier, Network: models.Testnet}
}

func TestCustodyService_StoreRetrieve(t *testing.T) {
	ctx := context.Background()
	svc, rm, blobs := newCustodySvc(t)
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	alice := federated("alice@example.com")
	recordAccount(rm, "alice.nova-sdk.near", "alice@example.com")

	sum, err := svc.Store(ctx, alice, StoreRequest{
		AccountID:  "alice.nova-sdk.near",
		PrivateKey: kp.PrivateKey,
		Identifier: "alice@example.com",
		Network:    "testnet",
	})
	require.NoError(t, err)
	require.Equal(t, cryptox.Checksum(kp.PrivateKey), sum)

	k := rm.e.rows["alice.nova-sdk.near"]
	require.NotNil(t, k)
	require.True(t, strings.HasPrefix(k.StorageKey, "escrow/testnet/"))
	sealed, err := blobs.Get(ctx, k.StorageKey)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), kp.PrivateKey)

	got, err := svc.Retrieve(ctx, alice, RetrieveRequest{Identifier: "Alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, RetrieveResult{PrivateKey: kp.PrivateKey, AccountID: "alice.nova-sdk.near"}, got)

	got, err = svc.Retrieve(ctx, alice, RetrieveRequest{AccountID: "alice.nova-sdk.near"})
	require.NoError(t, err)
	require.Equal(t, kp.PrivateKey, got.PrivateKey)

	_, err = svc.Retrieve(ctx, federated("mallory@example.com"), RetrieveRequest{AccountID: "alice.nova-sdk.near"})
	require.ErrorIs(t, err, common.ErrForbidden)

	_, err = svc.Retrieve(ctx, alice, RetrieveRequest{AccountID: "ghost.nova-sdk.near"})
	require.ErrorIs(t, err, common.ErrKeyNotFound)

	_, err = svc.Retrieve(ctx, alice, RetrieveRequest{})
	require.ErrorIs(t, err, common.ErrInvalid)
}

func TestCustodyService_StoreRejections(t *testing.T) {
	ctx := context.Background()
	svc, rm, _ := newCustodySvc(t)
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	alice := federated("alice@example.com")

	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "a.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "bob@example.com"})
	require.ErrorIs(t, err, common.ErrForbidden)

	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "a.nova-sdk.near", PrivateKey: "nope", Identifier: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrInvalid)

	_, err = svc.Store(ctx, alice, StoreRequest{PrivateKey: kp.PrivateKey, Identifier: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrInvalid)

	rm.a.rows["bob.nova-sdk.near"] = &models.Account{AccountID: "bob.nova-sdk.near", Identifier: "bob@example.com"}
	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "bob.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrForbidden)

	recordAccount(rm, "carol.nova-sdk.near", "alice@example.com")
	rm.e.rows["carol.nova-sdk.near"] = &models.EscrowedKey{AccountID: "carol.nova-sdk.near", Identifier: "carol@example.com"}
	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "carol.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrAlreadyLinked)
}

func TestCustodyService_WrongMasterKeyIsInternal(t *testing.T) {
	ctx := context.Background()
	svc, rm, blobs := newCustodySvc(t)
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	alice := federated("alice@example.com")
	recordAccount(rm, "alice.nova-sdk.near", "alice@example.com")

	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "alice.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "alice@example.com"})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.CustodyPassphrase = "rotated"
	other := NewCustodyService(svc.db, rm, blobs, cfg, nil)
	_, err = other.Retrieve(ctx, alice, RetrieveRequest{AccountID: "alice.nova-sdk.near"})
	require.ErrorIs(t, err, common.ErrInternal)
}

func TestCustodyService_StoreRequiresRecordedAccount(t *testing.T) {
	ctx := context.Background()
	svc, rm, _ := newCustodySvc(t)
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	mallory := federated("mallory@example.com")

	// claiming an account nobody has recorded yet
	_, err = svc.Store(ctx, mallory, StoreRequest{AccountID: "victim.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "mallory@example.com"})
	require.ErrorIs(t, err, common.ErrAccountNotFound)
	require.Equal(t, common.ClassNotFound, common.Classify(err))
	require.Empty(t, rm.e.rows)

	// once recorded, the owner escrows and others are refused
	recordAccount(rm, "victim.nova-sdk.near", "victim@example.com")
	_, err = svc.Store(ctx, mallory, StoreRequest{AccountID: "victim.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "mallory@example.com"})
	require.ErrorIs(t, err, common.ErrForbidden)

	_, err = svc.Store(ctx, federated("victim@example.com"), StoreRequest{AccountID: "victim.nova-sdk.near", PrivateKey: kp.PrivateKey, Identifier: "victim@example.com"})
	require.NoError(t, err)
}

func TestCustodyService_RestoreDeletesReplacedBlob(t *testing.T) {
	ctx := context.Background()
	svc, rm, blobs := newCustodySvc(t)
	alice := federated("alice@example.com")
	recordAccount(rm, "alice.nova-sdk.near", "alice@example.com")

	first, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "alice.nova-sdk.near", PrivateKey: first.PrivateKey, Identifier: "alice@example.com"})
	require.NoError(t, err)
	oldKey := rm.e.rows["alice.nova-sdk.near"].StorageKey

	second, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	_, err = svc.Store(ctx, alice, StoreRequest{AccountID: "alice.nova-sdk.near", PrivateKey: second.PrivateKey, Identifier: "alice@example.com"})
	require.NoError(t, err)
	newKey := rm.e.rows["alice.nova-sdk.near"].StorageKey
	require.NotEqual(t, oldKey, newKey)

	_, err = blobs.Get(ctx, oldKey)
	require.ErrorIs(t, err, common.ErrKeyNotFound)
	_, err = blobs.Get(ctx, newKey)
	require.NoError(t, err)

	got, err := svc.Retrieve(ctx, alice, RetrieveRequest{AccountID: "alice.nova-sdk.near"})
	require.NoError(t, err)
	require.Equal(t, second.PrivateKey, got.PrivateKey)
}
