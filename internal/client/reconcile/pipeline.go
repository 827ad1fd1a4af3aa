package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nova-sdk/novakeeper/internal/client/custody"
	"github.com/nova-sdk/novakeeper/internal/client/funding"
	"github.com/nova-sdk/novakeeper/internal/client/identity"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/registry"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
)

// run is the per-invocation scratch space. Nothing in it outlives Run.
type run struct {
	ep       uint64
	id       string
	p        models.Principal
	identity *identity.Result
	out      Outcome
	// public half of the key created in this run, checked against custody
	publicKey string
}

// Run attempts the auto sign-in for the current episode.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	r, err := o.begin()
	if err != nil {
		return Outcome{}, err
	}
	defer o.finish(r)

	o.log.Info(ctx, "reconciliation started", "run_id", r.id, "episode", r.ep, "principal_kind", r.p.Kind())
	out, err := o.execute(ctx, r)
	if err != nil {
		return o.fail(ctx, r, err)
	}
	o.log.Info(ctx, "reconciliation settled", "run_id", r.id, "account_id", out.AccountID,
		"created", out.Created, "key_backed_up", out.KeyBackedUp, "activated", out.Activated, "warnings", len(out.Warnings))
	return out, nil
}

func (o *Orchestrator) begin() (*run, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch {
	case o.principal == nil:
		return nil, ErrNoPrincipal
	case o.running:
		return nil, ErrInProgress
	case o.state.AutoSignInAttempted:
		return nil, ErrAlreadyAttempted
	}
	if ws := o.wallet.State(); ws.SignedIn {
		return nil, fmt.Errorf("%w as %s", ErrAlreadySignedIn, ws.AccountID)
	}

	o.running = true
	o.state.AutoSignInAttempted = true
	o.accountID = ""
	o.activated = false
	o.lastErr = nil
	o.warnings = nil
	return &run{ep: o.episode, id: uuid.NewString(), p: o.principal}, nil
}

func (o *Orchestrator) finish(r *run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.episode == r.ep {
		o.running = false
	}
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (Outcome, error) {
	if err := o.verifyIdentity(ctx, r); err != nil {
		return r.out, err
	}

	exists, err := o.checkAccount(ctx, r)
	if err != nil {
		return r.out, err
	}

	if !exists {
		created, err := o.createAccount(ctx, r)
		if err != nil {
			return r.out, err
		}
		if created {
			if err := o.fund(ctx, r); err != nil {
				return r.out, err
			}
		}
	}

	key, err := o.retrieveKey(ctx, r)
	if err != nil {
		return r.out, err
	}
	if key != "" {
		if err := o.activate(ctx, r, key); err != nil {
			return r.out, err
		}
	}
	return r.out, o.settle(r)
}

func (o *Orchestrator) verifyIdentity(ctx context.Context, r *run) error {
	if err := o.advance(r, PhaseVerifyingIdentity); err != nil {
		return err
	}

	var res identity.Result
	err := o.withRetry(ctx, r, "verify identity", func(ctx context.Context) error {
		var err error
		res, err = o.verifier.Verify(ctx, r.p)
		return err
	})
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%w: no active identity session", common.ErrUnauthorized)
	}
	if fp, ok := r.p.(models.FederatedPrincipal); ok && res.Claims != nil && fp.Email != "" &&
		res.Claims.Email != "" && !strings.EqualFold(res.Claims.Email, fp.Email) {
		return fmt.Errorf("%w: session belongs to a different identity", common.ErrForbidden)
	}

	r.identity = &res
	return o.update(r, func(s *State) { s.IdentityVerified = true })
}

func (o *Orchestrator) checkAccount(ctx context.Context, r *run) (bool, error) {
	if err := o.advance(r, PhaseCheckingAccount); err != nil {
		return false, err
	}

	var ex registry.ExistsResult
	err := o.withRetry(ctx, r, "check account", func(ctx context.Context) error {
		var err error
		ex, err = o.registry.Exists(ctx, r.p)
		return err
	})
	if err != nil {
		return false, err
	}
	if err := o.update(r, func(s *State) { s.AccountChecked = true }); err != nil {
		return false, err
	}
	if ex.Exists {
		return true, o.setAccount(r, ex.AccountID)
	}
	return false, nil
}

// createAccount prompts for a name until the registry accepts one, then
// escrows the new key. It reports false when a re-check found the account
// already exists, in which case the caller continues as for an existing one.
func (o *Orchestrator) createAccount(ctx context.Context, r *run) (bool, error) {
	if err := o.advance(r, PhaseCreatingAccount); err != nil {
		return false, err
	}

	suggestion := models.SuggestName(r.p.Identifier())
	var previous error
	for {
		name, ok := o.ui.PromptAccountName(ctx, suggestion, previous)
		if !o.current(r) {
			return false, ErrSuperseded
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !ok {
			return false, ErrCancelled
		}

		name = strings.ToLower(strings.TrimSpace(name))
		if !models.ValidAccountName(name) {
			previous, suggestion = common.ErrInvalidName, name
			continue
		}

		created, err := o.registry.Create(ctx, r.p, name)
		if !o.current(r) {
			return false, ErrSuperseded
		}
		switch {
		case err == nil:
			return true, o.escrow(ctx, r, created)
		case errors.Is(err, common.ErrNameTaken), errors.Is(err, common.ErrInvalidName):
			o.log.Info(ctx, "account name refused", "run_id", r.id, "name", name, "class", common.Classify(err))
			previous, suggestion = err, name
		case errors.Is(err, common.ErrAlreadyLinked), common.Classify(err).Retryable():
			// The create may have landed before the failure; check once
			// instead of submitting a second transaction.
			ex, cerr := o.registry.Exists(ctx, r.p)
			if !o.current(r) {
				return false, ErrSuperseded
			}
			if cerr != nil || !ex.Exists {
				return false, err
			}
			o.warn(r, err, "account already existed; its key may not be recoverable")
			return false, o.setAccount(r, ex.AccountID)
		default:
			return false, err
		}
	}
}

// escrow hands the new key to custody before the UI hears about the
// account. Failure leaves the account usable but unrecoverable elsewhere.
func (o *Orchestrator) escrow(ctx context.Context, r *run, created registry.CreateResult) error {
	r.out.Created = true
	r.publicKey = created.PublicKey
	if err := o.setAccount(r, created.AccountID); err != nil {
		return err
	}

	var checksum string
	err := o.withRetry(ctx, r, "store key", func(ctx context.Context) error {
		var err error
		checksum, err = o.custody.Store(ctx, r.p, created.AccountID, created.PrivateKey, o.cfg.Network)
		return err
	})
	if errors.Is(err, ErrSuperseded) {
		return err
	}
	if err != nil {
		o.warn(r, err, "account created but its key could not be backed up; it cannot be recovered on another device")
	} else {
		r.out.KeyBackedUp = true
		r.out.Checksum = checksum
	}

	o.log.Info(ctx, "account created", "run_id", r.id, "account_id", created.AccountID,
		"tx_hash", created.TxHash, "key_backed_up", r.out.KeyBackedUp, "checksum", checksum)
	o.ui.AccountCreated(created.AccountID, r.out.KeyBackedUp)
	return nil
}

// fund offers the optional funding step. Every outcome, including errors,
// continues to key retrieval.
func (o *Orchestrator) fund(ctx context.Context, r *run) error {
	if o.funding == nil || !o.cfg.FundingEnabled {
		return nil
	}
	if err := o.advance(r, PhaseFundingOptional); err != nil {
		return err
	}

	amount, accept := o.ui.OfferFunding(ctx, r.out.AccountID, o.cfg.FundingAmountUSD)
	if !o.current(r) {
		return ErrSuperseded
	}
	if !accept {
		o.log.Debug(ctx, "funding skipped", "run_id", r.id)
		return nil
	}

	var res funding.Result
	err := o.withRetry(ctx, r, "fund account", func(ctx context.Context) error {
		var err error
		res, err = o.funding.Fund(ctx, r.p, r.out.AccountID, amount)
		return err
	})
	if errors.Is(err, ErrSuperseded) {
		return err
	}
	if err != nil {
		o.warn(r, err, fundingMessage(err))
		return nil
	}
	r.out.Funding = &res
	return nil
}

func fundingMessage(err error) string {
	var rl *common.RateLimitedError
	switch {
	case errors.As(err, &rl) && rl.RetryAfter > 0:
		return fmt.Sprintf("funding is rate limited; try again in %s", rl.RetryAfter)
	case errors.Is(err, common.ErrRateLimited):
		return "funding is rate limited; try again later"
	case errors.Is(err, common.ErrBlacklisted):
		return "this account cannot use the faucet"
	default:
		return "funding did not complete; the account can be funded later"
	}
}

// retrieveKey borrows the key from custody. Only a key custody returned is
// ever activated, even when this run created the account. An empty key with
// a nil error means the run settles without activating a session.
func (o *Orchestrator) retrieveKey(ctx context.Context, r *run) (string, error) {
	if err := o.advance(r, PhaseRetrievingKey); err != nil {
		return "", err
	}

	var key custody.Key
	err := o.withRetry(ctx, r, "retrieve key", func(ctx context.Context) error {
		var err error
		key, err = o.custody.Retrieve(ctx, r.p, "")
		return err
	})
	if errors.Is(err, ErrSuperseded) {
		return "", err
	}
	if err == nil {
		err = o.checkKey(r, key)
	}
	if err == nil {
		return key.PrivateKey, nil
	}

	o.warn(r, err, "signed key unavailable; connect a wallet manually to sign transactions")
	return "", nil
}

// checkKey rejects a key that belongs to another account.
func (o *Orchestrator) checkKey(r *run, key custody.Key) error {
	if key.AccountID != "" && key.AccountID != r.out.AccountID {
		return fmt.Errorf("%w: escrowed key is for %s", common.ErrForbidden, key.AccountID)
	}
	if r.publicKey != "" {
		pub, err := cryptox.PublicKeyOf(key.PrivateKey)
		if err != nil {
			return err
		}
		if pub != r.publicKey {
			return fmt.Errorf("%w: escrowed key does not match the account key", common.ErrForbidden)
		}
	}
	return nil
}

func (o *Orchestrator) activate(ctx context.Context, r *run, key string) error {
	if err := o.advance(r, PhaseActivatingSession); err != nil {
		return err
	}

	// Held across the write so a concurrent Logout either supersedes the run
	// first or signs out after the key lands.
	o.mu.Lock()
	if o.episode != r.ep {
		o.mu.Unlock()
		return ErrSuperseded
	}
	err := o.wallet.ConnectWithKey(ctx, key, r.out.AccountID)
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("activate session: %w", err)
	}

	if err := o.wallet.ForceSync(r.out.AccountID); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	walletID := o.wallet.WalletID()
	return o.update(r, func(s *State) { s.ActiveWalletID = walletID })
}

// settle enters Settled. When a session was activated, the wallet must show
// the managed account at this moment.
func (o *Orchestrator) settle(r *run) error {
	o.mu.Lock()
	if o.episode != r.ep {
		o.mu.Unlock()
		return ErrSuperseded
	}
	if o.state.ActiveWalletID != "" {
		ws := o.wallet.State()
		if !ws.SignedIn || ws.AccountID != r.out.AccountID {
			o.mu.Unlock()
			return fmt.Errorf("%w: wallet shows %q, expected %q", ErrActivationMismatch, ws.AccountID, r.out.AccountID)
		}
		r.out.Activated = true
	}
	o.activated = r.out.Activated
	o.phase = PhaseSettled
	o.mu.Unlock()

	o.ui.Status(PhaseSettled)
	return nil
}

// fail records err as the failure reason and clears the guards so the user
// can start again from Idle.
func (o *Orchestrator) fail(ctx context.Context, r *run, err error) (Outcome, error) {
	o.mu.Lock()
	if errors.Is(err, ErrSuperseded) || o.episode != r.ep {
		o.mu.Unlock()
		o.log.Debug(ctx, "stale run discarded", "run_id", r.id, "episode", r.ep)
		return r.out, ErrSuperseded
	}
	o.phase = PhaseFailed
	o.lastErr = err
	o.state = State{}
	o.mu.Unlock()

	o.log.Warn(ctx, "reconciliation failed", "run_id", r.id, "class", common.Classify(err), "error", err)
	o.ui.Status(PhaseFailed)
	o.ui.Failed(err)
	return r.out, err
}

func (o *Orchestrator) current(r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.episode == r.ep
}

func (o *Orchestrator) advance(r *run, phase Phase) error {
	o.mu.Lock()
	if o.episode != r.ep {
		o.mu.Unlock()
		return ErrSuperseded
	}
	o.phase = phase
	o.mu.Unlock()

	o.ui.Status(phase)
	return nil
}

func (o *Orchestrator) update(r *run, fn func(*State)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.episode != r.ep {
		return ErrSuperseded
	}
	fn(&o.state)
	return nil
}

func (o *Orchestrator) setAccount(r *run, accountID string) error {
	r.out.AccountID = accountID
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.episode != r.ep {
		return ErrSuperseded
	}
	o.accountID = accountID
	return nil
}

func (o *Orchestrator) warn(r *run, err error, msg string) {
	w := Warning{Class: common.Classify(err), Message: msg, Err: err}
	r.out.Warnings = append(r.out.Warnings, w)

	o.mu.Lock()
	stale := o.episode != r.ep
	if !stale {
		o.warnings = append(o.warnings, w)
	}
	o.mu.Unlock()

	if !stale {
		o.log.Warn(context.Background(), msg, "run_id", r.id, "class", w.Class, "error", err)
		o.ui.Warn(w)
	}
}
