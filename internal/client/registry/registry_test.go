package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/client/client"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
)

// fakeServer keeps a name->account map like the reference registry.
type fakeServer struct {
	mu       sync.Mutex
	accounts map[string]string // identifier -> account id
	taken    map[string]bool
	lastKey  string
	fail     int
}

func newRegistry(t *testing.T, fs *fakeServer) *HTTPRegistry {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/account/exists", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		var in existsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		id, ok := fs.accounts[in.Identifier]
		_ = json.NewEncoder(w).Encode(existsResponse{Exists: ok, AccountID: id})
	})
	mux.HandleFunc("/account/create", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if fs.fail != 0 {
			w.WriteHeader(fs.fail)
			return
		}
		var in createRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		fs.lastKey = in.PublicKey
		id := in.Name + ".nova-sdk.near"
		if fs.taken[id] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"NameTaken"}`))
			return
		}
		fs.taken[id] = true
		fs.accounts[in.Identifier] = id
		_ = json.NewEncoder(w).Encode(createResponse{AccountID: id, PublicKey: in.PublicKey, TxHash: "tx-1"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	api, err := client.New(client.Config{BaseURL: srv.URL, Unavailable: common.ErrLedgerUnavailable})
	require.NoError(t, err)
	return NewHTTPRegistry(api, "nova-sdk.near", models.Testnet, nil)
}

func newFake() *fakeServer {
	return &fakeServer{accounts: map[string]string{}, taken: map[string]bool{}}
}

var bob = models.FederatedPrincipal{Email: "bob@example.com", SessionToken: "t"}

func TestCreate_IdempotentByName(t *testing.T) {
	fs := newFake()
	r := newRegistry(t, fs)
	alice := models.FederatedPrincipal{Email: "alice@example.com", SessionToken: "t"}

	res, err := r.Create(context.Background(), alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice.nova-sdk.near", res.AccountID)
	assert.Equal(t, fs.lastKey, res.PublicKey)

	pub, err := cryptox.PublicKeyOf(res.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, res.PublicKey, pub)

	_, err = r.Create(context.Background(), bob, "alice")
	require.ErrorIs(t, err, common.ErrNameTaken)
	assert.Equal(t, common.ClassConflict, common.Classify(err))
}

func TestCreate_InvalidNameNeverSent(t *testing.T) {
	fs := newFake()
	r := newRegistry(t, fs)
	for _, name := range []string{"A", "x", "has.dot", ""} {
		_, err := r.Create(context.Background(), bob, name)
		require.ErrorIs(t, err, common.ErrInvalidName, name)
	}
	assert.Empty(t, fs.lastKey)
}

func TestCreate_ErrorClasses(t *testing.T) {
	tests := map[int]error{
		http.StatusServiceUnavailable: common.ErrLedgerUnavailable,
		http.StatusPaymentRequired:    common.ErrInsufficientFunds,
	}
	for status, want := range tests {
		fs := newFake()
		fs.fail = status
		r := newRegistry(t, fs)
		_, err := r.Create(context.Background(), bob, "bob")
		require.ErrorIs(t, err, want)
	}
}

func TestCreate_KeyGenerationFailure(t *testing.T) {
	r := newRegistry(t, newFake())
	r.newKeyPair = func() (*cryptox.KeyPair, error) { return nil, errors.New("no entropy") }
	_, err := r.Create(context.Background(), bob, "bob")
	require.Error(t, err)
}

func TestExists(t *testing.T) {
	fs := newFake()
	r := newRegistry(t, fs)

	res, err := r.Exists(context.Background(), bob)
	require.NoError(t, err)
	assert.False(t, res.Exists)

	_, err = r.Create(context.Background(), bob, "bob")
	require.NoError(t, err)

	res, err = r.Exists(context.Background(), bob)
	require.NoError(t, err)
	assert.True(t, res.Exists)
	assert.Equal(t, "bob.nova-sdk.near", res.AccountID)
}

func TestExists_RejectsForeignSuffix(t *testing.T) {
	fs := newFake()
	fs.accounts["bob@example.com"] = "bob.elsewhere.near"
	r := newRegistry(t, fs)
	_, err := r.Exists(context.Background(), bob)
	require.ErrorIs(t, err, common.ErrInternal)
}
