// Package wallet is the local wallet session: the process's single view of
// which account is signed in and with which key.
//
// A Session is opened once and closed on teardown. Every writer, whether an
// organic wallet connection or the orchestrator injecting a custody key,
// goes through the same selection path, so there is one answer to "who is
// signed in". Subscribers hear about each real change exactly once.
package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nova-sdk/novakeeper/internal/client/migrations"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/repositories/storage"
	"github.com/nova-sdk/novakeeper/internal/cryptox"
	"github.com/nova-sdk/novakeeper/internal/dbx"
	"github.com/nova-sdk/novakeeper/internal/logging"

	_ "modernc.org/sqlite"
)

var (
	ErrClosed      = errors.New("wallet session closed")
	ErrNotSelected = errors.New("account is not the selected account")
)

// State is what the wallet stack reports as signed in.
type State struct {
	SignedIn  bool
	AccountID string
}

// Options configure Open.
type Options struct {
	// DSN is the SQLite data source, e.g. "wallet.db" or ":memory:".
	DSN          string
	Network      models.Network
	AppKeyPrefix string
	Logger       logging.Logger
}

// notice is a state change numbered in the order it happened.
type notice struct {
	seq uint64
	st  State
}

type subscriber struct {
	id int
	fn func(State)
}

type Session struct {
	db      *sql.DB
	store   storage.Repository
	network models.Network
	authKey string
	log     logging.Logger

	mu       sync.Mutex
	state    State
	walletID string
	closed   bool
	subs     []subscriber
	nextSub  int
	seq      uint64
	pending  []notice
	busy     bool

	// notifyMu orders deliveries and guards lastSent and lastSeq.
	notifyMu sync.Mutex
	lastSent State
	lastSeq  uint64

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// Open creates the store if needed, loads the persisted selection and
// starts the notification dispatcher.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.DSN == "" {
		return nil, errors.New("wallet: DSN is required")
	}
	if opts.AppKeyPrefix == "" {
		opts.AppKeyPrefix = "nova"
	}

	db, err := sql.Open("sqlite", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open wallet store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Session{
		db:      db,
		store:   storage.NewSQLiteRepository(db),
		network: opts.Network,
		authKey: authKey(opts.AppKeyPrefix),
		log:     logging.OrNop(opts.Logger).With("module", "wallet"),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	st, walletID, err := s.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.state, s.walletID, s.lastSent = st, walletID, st

	s.wg.Add(1)
	go s.dispatch()

	s.log.Debug(ctx, "wallet session opened", "signed_in", st.SignedIn, "account_id", st.AccountID)
	return s, nil
}

// load reads the selection the wallet stack would see. A selection whose
// key is missing counts as signed out.
func (s *Session) load(ctx context.Context) (State, string, error) {
	raw, err := s.store.Get(ctx, s.authKey)
	if err != nil || raw == nil {
		return State{}, "", err
	}
	var rec authRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn(ctx, "ignoring malformed auth record", "error", err)
		return State{}, "", nil
	}
	key, err := s.store.Get(ctx, keystoreKey(rec.AccountID, s.network))
	if err != nil {
		return State{}, "", err
	}
	if key == nil {
		return State{}, "", nil
	}

	var walletID string
	if raw, err := s.store.Get(ctx, selectedWalletKey); err != nil {
		return State{}, "", err
	} else if raw != nil {
		_ = json.Unmarshal(raw, &walletID)
	}
	return State{SignedIn: true, AccountID: rec.AccountID}, walletID, nil
}

// Close stops the dispatcher and closes the store. Pending notifications
// are dropped.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

// State returns the current selection.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WalletID returns the id of the wallet that made the current selection.
func (s *Session) WalletID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walletID
}

// ConnectWithKey installs a key obtained from custody as the active signer
// and selects its account.
func (s *Session) ConnectWithKey(ctx context.Context, privateKey, accountID string) error {
	return s.selectAccount(ctx, InjectedWalletID, accountID, privateKey)
}

// Connect records a connection the user approved in a wallet.
func (s *Session) Connect(ctx context.Context, walletID, accountID, privateKey string) error {
	if walletID == "" {
		return errors.New("wallet: wallet id is required")
	}
	return s.selectAccount(ctx, walletID, accountID, privateKey)
}

func (s *Session) selectAccount(ctx context.Context, walletID, accountID, privateKey string) error {
	if accountID == "" {
		return errors.New("wallet: account id is required")
	}
	pub, err := cryptox.PublicKeyOf(privateKey)
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	auth, err := json.Marshal(authRecord{AccountID: accountID, AllKeys: []string{pub}})
	if err != nil {
		return err
	}
	selected, err := json.Marshal(walletID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev := s.state
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := storage.NewSQLiteRepository(tx)
		if prev.SignedIn && prev.AccountID != accountID {
			if err := repo.Delete(ctx, keystoreKey(prev.AccountID, s.network)); err != nil {
				return err
			}
		}
		if err := repo.Set(ctx, keystoreKey(accountID, s.network), []byte(privateKey)); err != nil {
			return err
		}
		if err := repo.Set(ctx, s.authKey, auth); err != nil {
			return err
		}
		return repo.Set(ctx, selectedWalletKey, selected)
	})
	if err != nil {
		return fmt.Errorf("wallet: select %s: %w", accountID, err)
	}

	s.state = State{SignedIn: true, AccountID: accountID}
	s.walletID = walletID
	s.enqueueLocked(s.state)
	s.log.Info(ctx, "account selected", "account_id", accountID, "wallet_id", walletID)
	return nil
}

// SignOut clears the selection and the stored key.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	prev := s.state
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := storage.NewSQLiteRepository(tx)
		if prev.AccountID != "" {
			if err := repo.Delete(ctx, keystoreKey(prev.AccountID, s.network)); err != nil {
				return err
			}
		}
		if err := repo.Delete(ctx, s.authKey); err != nil {
			return err
		}
		return repo.Delete(ctx, selectedWalletKey)
	})
	if err != nil {
		return fmt.Errorf("wallet: sign out: %w", err)
	}

	s.state = State{}
	s.walletID = ""
	s.enqueueLocked(s.state)
	s.log.Info(ctx, "signed out", "account_id", prev.AccountID)
	return nil
}

// storedKey returns the private key stored for accountID, or "" if none.
func (s *Session) storedKey(ctx context.Context, accountID string) (string, error) {
	raw, err := s.store.Get(ctx, keystoreKey(accountID, s.network))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Subscribe registers fn for state changes. fn runs on the dispatcher
// goroutine, or on the caller's goroutine for ForceSync. The returned func
// removes the subscription.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// ForceSync delivers the current state to subscribers on the calling
// goroutine, ahead of the dispatcher. accountID must be the selected
// account. Queued changes older than the current state are dropped, and
// the dispatcher skips anything not newer than what was delivered, so
// nobody hears a stale state or the current one twice.
func (s *Session) ForceSync(accountID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.state.SignedIn || s.state.AccountID != accountID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSelected, accountID)
	}
	n := notice{seq: s.seq, st: s.state}
	s.pending = nil
	s.mu.Unlock()

	s.deliver(n)
	return nil
}

func (s *Session) enqueueLocked(st State) {
	s.seq++
	s.pending = append(s.pending, notice{seq: s.seq, st: st})
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.pending) == 0 || s.closed {
				s.busy = false
				s.mu.Unlock()
				break
			}
			n := s.pending[0]
			s.pending = s.pending[1:]
			s.busy = true
			s.mu.Unlock()

			s.deliver(n)
		}
	}
}

// deliver notifies subscribers unless n is older than the last delivery or
// carries the state they last heard.
func (s *Session) deliver(n notice) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if n.seq < s.lastSeq || n.st == s.lastSent {
		return
	}
	s.lastSent, s.lastSeq = n.st, n.seq
	st := n.st

	s.mu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(st)
	}
}
