package wallet

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
)

func openSession(t *testing.T, dsn string) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{DSN: dsn, Network: models.Testnet, AppKeyPrefix: "nova"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newKey(t *testing.T) *cryptox.KeyPair {
	t.Helper()
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, st)
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// settle waits until the dispatcher has nothing queued or in flight.
func settle(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.pending) == 0 && !s.busy
	}, 2*time.Second, 5*time.Millisecond)
}

func TestOpen_EmptyStoreIsSignedOut(t *testing.T) {
	s := openSession(t, ":memory:")
	assert.Equal(t, State{}, s.State())
	assert.Empty(t, s.WalletID())
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)
}

func TestConnectWithKey_PersistsWalletStackFormat(t *testing.T) {
	s := openSession(t, ":memory:")
	kp := newKey(t)
	ctx := context.Background()

	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "alice.nova-sdk.near"))
	assert.Equal(t, State{SignedIn: true, AccountID: "alice.nova-sdk.near"}, s.State())
	assert.Equal(t, InjectedWalletID, s.WalletID())

	key, err := s.store.Get(ctx, "near-api-js:keystore:alice.nova-sdk.near:testnet")
	require.NoError(t, err)
	assert.Equal(t, kp.PrivateKey, string(key))

	raw, err := s.store.Get(ctx, "nova_wallet_auth_key")
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "alice.nova-sdk.near", rec["accountId"])
	assert.Equal(t, []any{kp.PublicKey}, rec["allKeys"])

	raw, err = s.store.Get(ctx, "near-wallet-selector:selectedWalletId")
	require.NoError(t, err)
	assert.Equal(t, `"nova-keystore"`, string(raw))
}

func TestConnect_OrganicAndInjectedConverge(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	a, b := newKey(t), newKey(t)

	require.NoError(t, s.Connect(ctx, "my-near-wallet", "carol.testnet", a.PrivateKey))
	assert.Equal(t, "my-near-wallet", s.WalletID())

	require.NoError(t, s.ConnectWithKey(ctx, b.PrivateKey, "carol.nova-sdk.near"))
	assert.Equal(t, State{SignedIn: true, AccountID: "carol.nova-sdk.near"}, s.State())

	// the previous account's key is not left behind
	old, err := s.storedKey(ctx, "carol.testnet")
	require.NoError(t, err)
	assert.Empty(t, old)
}

func TestConnect_RejectsBadInput(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	kp := newKey(t)

	require.Error(t, s.ConnectWithKey(ctx, "garbage", "a.nova-sdk.near"))
	require.Error(t, s.ConnectWithKey(ctx, kp.PrivateKey, ""))
	require.Error(t, s.Connect(ctx, "", "a.nova-sdk.near", kp.PrivateKey))
	assert.Equal(t, State{}, s.State())
}

func TestSelectionSurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "wallet.db")
	kp := newKey(t)

	s, err := Open(context.Background(), Options{DSN: dsn, Network: models.Testnet})
	require.NoError(t, err)
	require.NoError(t, s.ConnectWithKey(context.Background(), kp.PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	s2 := openSession(t, dsn)
	assert.Equal(t, State{SignedIn: true, AccountID: "bob.nova-sdk.near"}, s2.State())
	assert.Equal(t, InjectedWalletID, s2.WalletID())

	// a different network does not see the key
	s3, err := Open(context.Background(), Options{DSN: dsn, Network: models.Mainnet})
	require.NoError(t, err)
	defer s3.Close()
	assert.False(t, s3.State().SignedIn)
}

func TestSignOut(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	kp := newKey(t)

	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.SignOut(ctx))
	assert.Equal(t, State{}, s.State())

	key, err := s.storedKey(ctx, "bob.nova-sdk.near")
	require.NoError(t, err)
	assert.Empty(t, key)

	all, err := s.store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubscribe_OncePerRealChange(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	kp := newKey(t)
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.SignOut(ctx))
	require.NoError(t, s.SignOut(ctx))
	settle(t, s)

	assert.Equal(t, []State{
		{SignedIn: true, AccountID: "bob.nova-sdk.near"},
		{},
	}, rec.snapshot())
}

func TestForceSync_DeliversSynchronouslyOnce(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	kp := newKey(t)
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.ForceSync("bob.nova-sdk.near"))

	// delivered by the time ForceSync returns
	got := rec.snapshot()
	require.NotEmpty(t, got)
	assert.Equal(t, State{SignedIn: true, AccountID: "bob.nova-sdk.near"}, got[len(got)-1])

	settle(t, s)
	assert.Len(t, rec.snapshot(), 1)

	require.ErrorIs(t, s.ForceSync("someone.else"), ErrNotSelected)
}

func TestForceSync_SkipsSupersededChanges(t *testing.T) {
	s := openSession(t, ":memory:")
	ctx := context.Background()
	kp := newKey(t)
	rec := &recorder{}
	s.Subscribe(func(st State) {
		time.Sleep(5 * time.Millisecond)
		rec.record(st)
	})

	a := State{SignedIn: true, AccountID: "a.nova-sdk.near"}
	b := State{SignedIn: true, AccountID: "b.nova-sdk.near"}
	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, a.AccountID))
	require.NoError(t, s.SignOut(ctx))
	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, "c.nova-sdk.near"))
	require.NoError(t, s.SignOut(ctx))
	require.NoError(t, s.ConnectWithKey(ctx, kp.PrivateKey, b.AccountID))
	require.NoError(t, s.ForceSync(b.AccountID))
	settle(t, s)

	got := rec.snapshot()
	require.NotEmpty(t, got)
	assert.Equal(t, b, got[len(got)-1])

	seen := 0
	for i, st := range got {
		if st == b {
			seen++
		}
		if i > 0 {
			assert.NotEqual(t, got[i-1], st, "repeated delivery at %d: %v", i, got)
		}
	}
	assert.Equal(t, 1, seen, "b delivered more than once: %v", got)
}

func TestUnsubscribe(t *testing.T) {
	s := openSession(t, ":memory:")
	rec := &recorder{}
	unsub := s.Subscribe(rec.record)
	unsub()
	unsub()

	require.NoError(t, s.ConnectWithKey(context.Background(), newKey(t).PrivateKey, "bob.nova-sdk.near"))
	require.NoError(t, s.ForceSync("bob.nova-sdk.near"))
	assert.Empty(t, rec.snapshot())
}

func TestClosedSession(t *testing.T) {
	s, err := Open(context.Background(), Options{DSN: ":memory:", Network: models.Testnet})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.ConnectWithKey(context.Background(), newKey(t).PrivateKey, "a.nova-sdk.near"), ErrClosed)
	require.ErrorIs(t, s.SignOut(context.Background()), ErrClosed)
	require.ErrorIs(t, s.ForceSync("a.nova-sdk.near"), ErrClosed)
}
