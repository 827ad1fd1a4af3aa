package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-sdk/novakeeper/internal/client/custody"
	"github.com/nova-sdk/novakeeper/internal/client/funding"
	"github.com/nova-sdk/novakeeper/internal/client/identity"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/registry"
	"github.com/nova-sdk/novakeeper/internal/client/wallet"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
)

const parent = "nova-sdk.near"

// errQueue pops one queued error per call, then returns nil.
type errQueue struct {
	mu   sync.Mutex
	errs []error
}

func (q *errQueue) push(errs ...error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errs = append(q.errs, errs...)
}

func (q *errQueue) pop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.errs) == 0 {
		return nil
	}
	err := q.errs[0]
	q.errs = q.errs[1:]
	return err
}

type fakeVerifier struct {
	calls atomic.Int32
	errs  errQueue
	// gate, when set, blocks Verify until closed.
	gate    chan struct{}
	entered chan struct{}
	invalid bool
	email   string
}

func (f *fakeVerifier) Verify(ctx context.Context, p models.Principal) (identity.Result, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if err := f.errs.pop(); err != nil {
		return identity.Result{}, err
	}
	if f.invalid {
		return identity.Result{}, nil
	}
	res := identity.Result{Valid: true}
	if fp, ok := p.(models.FederatedPrincipal); ok {
		email := fp.Email
		if f.email != "" {
			email = f.email
		}
		res.Claims = &models.Claims{Email: email, Subject: fp.Subject}
	}
	return res, nil
}

// backend is the shared server side of the registry and custody fakes, so
// a "reload" can build fresh clients over the same data.
type backend struct {
	mu       sync.Mutex
	links    map[string]string // identifier -> account id
	accounts map[string]bool
	escrow   map[string]custody.Key // identifier -> key
}

func newBackend() *backend {
	return &backend{links: map[string]string{}, accounts: map[string]bool{}, escrow: map[string]custody.Key{}}
}

type memRegistry struct {
	b           *backend
	existsErrs  errQueue
	createErrs  errQueue
	existsCalls atomic.Int32
	createCalls atomic.Int32
	// landAnyway makes a failing create still record the account.
	landAnyway bool
}

func (m *memRegistry) Exists(_ context.Context, p models.Principal) (registry.ExistsResult, error) {
	m.existsCalls.Add(1)
	if err := m.existsErrs.pop(); err != nil {
		return registry.ExistsResult{}, err
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	id, ok := m.b.links[p.Identifier()]
	return registry.ExistsResult{Exists: ok, AccountID: id}, nil
}

func (m *memRegistry) Create(_ context.Context, p models.Principal, name string) (registry.CreateResult, error) {
	m.createCalls.Add(1)
	if !models.ValidAccountName(name) {
		return registry.CreateResult{}, common.ErrInvalidName
	}
	err := m.createErrs.pop()
	if err != nil && !m.landAnyway {
		return registry.CreateResult{}, err
	}

	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	id := models.AccountID(name, parent)
	if m.b.accounts[id] {
		return registry.CreateResult{}, common.ErrNameTaken
	}
	if _, linked := m.b.links[p.Identifier()]; linked {
		return registry.CreateResult{}, common.ErrAlreadyLinked
	}
	kp, kerr := cryptox.GenerateKeyPair()
	if kerr != nil {
		return registry.CreateResult{}, kerr
	}
	m.b.accounts[id] = true
	m.b.links[p.Identifier()] = id
	if err != nil {
		return registry.CreateResult{}, err
	}
	return registry.CreateResult{AccountID: id, PublicKey: kp.PublicKey, TxHash: "tx-" + name, PrivateKey: kp.PrivateKey}, nil
}

type memCustody struct {
	b             *backend
	storeErrs     errQueue
	retrieveErrs  errQueue
	storeCalls    atomic.Int32
	retrieveCalls atomic.Int32
	alwaysDown    bool
}

func (m *memCustody) Store(_ context.Context, p models.Principal, accountID, privateKey string, _ models.Network) (string, error) {
	m.storeCalls.Add(1)
	if m.alwaysDown {
		return "", common.ErrCustodyUnavailable
	}
	if err := m.storeErrs.pop(); err != nil {
		return "", err
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.escrow[p.Identifier()] = custody.Key{AccountID: accountID, PrivateKey: privateKey}
	return cryptox.Checksum(privateKey), nil
}

func (m *memCustody) Retrieve(_ context.Context, p models.Principal, accountID string) (custody.Key, error) {
	m.retrieveCalls.Add(1)
	if err := m.retrieveErrs.pop(); err != nil {
		return custody.Key{}, err
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	k, ok := m.b.escrow[p.Identifier()]
	if !ok {
		return custody.Key{}, common.ErrKeyNotFound
	}
	if accountID != "" && k.AccountID != accountID {
		return custody.Key{}, common.ErrForbidden
	}
	return k, nil
}

type fakeFunding struct {
	calls  atomic.Int32
	err    error
	amount float64
}

func (f *fakeFunding) Fund(_ context.Context, _ models.Principal, accountID string, amountUSD float64) (funding.Result, error) {
	f.calls.Add(1)
	f.amount = amountUSD
	if f.err != nil {
		return funding.Result{}, f.err
	}
	return funding.Result{Method: funding.MethodFaucet, TxHash: "fund-" + accountID}, nil
}

// fakeUI answers prompts from a queue and records everything it is told.
type fakeUI struct {
	mu        sync.Mutex
	names     []string
	prompts   []error
	phases    []Phase
	warnings  []Warning
	failures  []error
	created   []string
	fundOK    bool
	onStatus  func(Phase)
	dismissed bool
}

func (u *fakeUI) Status(p Phase) {
	u.mu.Lock()
	u.phases = append(u.phases, p)
	hook := u.onStatus
	u.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

func (u *fakeUI) PromptAccountName(_ context.Context, suggestion string, previous error) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prompts = append(u.prompts, previous)
	if u.dismissed {
		return "", false
	}
	if len(u.names) == 0 {
		return suggestion, true
	}
	n := u.names[0]
	u.names = u.names[1:]
	return n, true
}

func (u *fakeUI) OfferFunding(_ context.Context, _ string, def float64) (float64, bool) {
	return def, u.fundOK
}

func (u *fakeUI) AccountCreated(id string, _ bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.created = append(u.created, id)
}

func (u *fakeUI) Warn(w Warning) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.warnings = append(u.warnings, w)
}

func (u *fakeUI) Failed(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures = append(u.failures, err)
}

func (u *fakeUI) seenPhases() []Phase {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Phase(nil), u.phases...)
}

type harness struct {
	o        *Orchestrator
	verifier *fakeVerifier
	registry *memRegistry
	custody  *memCustody
	funding  *fakeFunding
	wallet   *wallet.Session
	ui       *fakeUI
	backend  *backend
}

func newHarness(t *testing.T, b *backend, withFunding bool) *harness {
	t.Helper()
	if b == nil {
		b = newBackend()
	}
	ws, err := wallet.Open(context.Background(), wallet.Options{DSN: ":memory:", Network: models.Testnet})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	h := &harness{
		verifier: &fakeVerifier{},
		registry: &memRegistry{b: b},
		custody:  &memCustody{b: b},
		funding:  &fakeFunding{},
		wallet:   ws,
		ui:       &fakeUI{},
		backend:  b,
	}
	deps := Deps{
		Verifier: h.verifier,
		Registry: h.registry,
		Custody:  h.custody,
		Wallet:   ws,
		UI:       h.ui,
	}
	if withFunding {
		deps.Funding = h.funding
	}
	h.o, err = New(Config{
		Network:          models.Testnet,
		RetryBackoff:     time.Millisecond,
		FundingEnabled:   true,
		FundingAmountUSD: 5,
	}, deps)
	require.NoError(t, err)
	return h
}

func federated(local string) models.FederatedPrincipal {
	return models.FederatedPrincipal{
		Subject:      "sub-" + local,
		Email:        local + "@example.com",
		SessionToken: "token-" + local,
	}
}

// seedAccount records an existing account (and optionally its escrow).
func (b *backend) seedAccount(t *testing.T, identifier, name string, escrow bool) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	id := models.AccountID(name, parent)
	b.accounts[id] = true
	b.links[identifier] = id
	if !escrow {
		return ""
	}
	kp, err := cryptox.GenerateKeyPair()
	require.NoError(t, err)
	b.escrow[identifier] = custody.Key{AccountID: id, PrivateKey: kp.PrivateKey}
	return kp.PrivateKey
}

func isClass(err error, class common.Class) bool {
	return err != nil && common.Classify(err) == class
}
