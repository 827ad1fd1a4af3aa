// Package reconcile aligns an authenticated principal, its managed ledger
// account and the local wallet session.
//
// One Orchestrator serves one user session. Lifecycle events (a principal
// appearing, a provider callback, logout) are delivered by the caller; Run
// drives the pipeline
//
//	Idle -> VerifyingIdentity -> CheckingAccount
//	     -> [CreatingAccount -> FundingOptional] -> RetrievingKey
//	     -> ActivatingSession -> Settled
//
// with Failed reachable from every phase. Run may be called from as many
// hooks as the caller likes: concurrent calls, repeat calls in the same
// episode and calls while the wallet is already signed in are no-ops.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nova-sdk/novakeeper/internal/client/custody"
	"github.com/nova-sdk/novakeeper/internal/client/funding"
	"github.com/nova-sdk/novakeeper/internal/client/identity"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/registry"
	"github.com/nova-sdk/novakeeper/internal/client/wallet"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

// WalletSession is the part of *wallet.Session the orchestrator drives.
type WalletSession interface {
	State() wallet.State
	WalletID() string
	ConnectWithKey(ctx context.Context, privateKey, accountID string) error
	ForceSync(accountID string) error
	SignOut(ctx context.Context) error
}

type Config struct {
	Network          models.Network
	RetryBackoff     time.Duration
	FundingEnabled   bool
	FundingAmountUSD float64
}

// Deps are the collaborators. Funding may be nil.
type Deps struct {
	Verifier identity.Verifier
	Registry registry.Registry
	Custody  custody.Custody
	Wallet   WalletSession
	Funding  funding.Negotiator
	UI       UI
	Logger   logging.Logger
}

type Orchestrator struct {
	cfg      Config
	verifier identity.Verifier
	registry registry.Registry
	custody  custody.Custody
	wallet   WalletSession
	funding  funding.Negotiator
	ui       UI
	log      logging.Logger

	mu        sync.Mutex
	principal models.Principal
	episode   uint64
	phase     Phase
	state     State
	running   bool
	accountID string
	activated bool
	lastErr   error
	warnings  []Warning
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Verifier == nil:
		return nil, errors.New("reconcile: verifier is required")
	case deps.Registry == nil:
		return nil, errors.New("reconcile: registry is required")
	case deps.Custody == nil:
		return nil, errors.New("reconcile: custody is required")
	case deps.Wallet == nil:
		return nil, errors.New("reconcile: wallet session is required")
	}
	if deps.UI == nil {
		deps.UI = NopUI{}
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 250 * time.Millisecond
	}
	if cfg.Network == "" {
		cfg.Network = models.Testnet
	}

	return &Orchestrator{
		cfg:      cfg,
		verifier: deps.Verifier,
		registry: deps.Registry,
		custody:  deps.Custody,
		wallet:   deps.Wallet,
		funding:  deps.Funding,
		ui:       deps.UI,
		log:      logging.OrNop(deps.Logger).With("module", "reconcile"),
		phase:    PhaseIdle,
	}, nil
}

// SetPrincipal installs the principal for a new episode. Re-announcing the
// current principal changes nothing, so callers may invoke it on every
// render. It reports whether a new episode began.
func (o *Orchestrator) SetPrincipal(p models.Principal) bool {
	o.mu.Lock()
	if p != nil && o.principal != nil && o.principal == p {
		o.mu.Unlock()
		return false
	}
	o.principal = p
	o.resetLocked()
	ep := o.episode
	o.mu.Unlock()

	o.log.Info(context.Background(), "new episode", "episode", ep, "principal_kind", kindOf(p))
	o.ui.Status(PhaseIdle)
	return true
}

// Logout ends the episode and signs the wallet session out. Runs still in
// flight finish their network calls but their results are discarded.
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.mu.Lock()
	o.principal = nil
	o.resetLocked()
	o.mu.Unlock()

	o.ui.Status(PhaseIdle)
	return o.wallet.SignOut(ctx)
}

// resetLocked starts a new episode with fresh guards.
func (o *Orchestrator) resetLocked() {
	o.episode++
	o.phase = PhaseIdle
	o.state = State{}
	o.running = false
	o.accountID = ""
	o.activated = false
	o.lastErr = nil
	o.warnings = nil
}

// Retry clears the latch after a failure, or after a run that settled
// without a key, and runs again.
func (o *Orchestrator) Retry(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	if !o.running && (o.phase == PhaseFailed || (o.phase == PhaseSettled && !o.activated)) {
		o.state = State{}
	}
	o.mu.Unlock()
	return o.Run(ctx)
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Phase:     o.phase,
		State:     o.state,
		Episode:   o.episode,
		AccountID: o.accountID,
		Activated: o.activated,
		Running:   o.running,
		Err:       o.lastErr,
		Warnings:  append([]Warning(nil), o.warnings...),
	}
	if o.principal != nil {
		s.Identifier = o.principal.Identifier()
	}
	return s
}

func kindOf(p models.Principal) models.PrincipalKind {
	if p == nil {
		return ""
	}
	return p.Kind()
}
