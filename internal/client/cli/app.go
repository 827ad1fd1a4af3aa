package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nova-sdk/novakeeper/internal/client/client"
	"github.com/nova-sdk/novakeeper/internal/client/config"
	"github.com/nova-sdk/novakeeper/internal/client/custody"
	"github.com/nova-sdk/novakeeper/internal/client/funding"
	"github.com/nova-sdk/novakeeper/internal/client/identity"
	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/reconcile"
	"github.com/nova-sdk/novakeeper/internal/client/registry"
	"github.com/nova-sdk/novakeeper/internal/client/wallet"
	"github.com/nova-sdk/novakeeper/internal/common"
	"github.com/nova-sdk/novakeeper/internal/filex"
	"github.com/nova-sdk/novakeeper/internal/logging"
)

// reconciler is the orchestrator surface the harness drives.
type reconciler interface {
	SetPrincipal(p models.Principal) bool
	Run(ctx context.Context) (reconcile.Outcome, error)
	Retry(ctx context.Context) (reconcile.Outcome, error)
	Logout(ctx context.Context) error
	HandleCallback(ctx context.Context, rawURL string) (string, bool, error)
	Snapshot() reconcile.Snapshot
}

type walletView interface {
	State() wallet.State
}

// App is the terminal harness. It raises lifecycle events on the
// orchestrator and plays the UI collaborator for it.
type App struct {
	config    *config.Config
	orch      reconciler
	wallet    walletView
	log       logging.Logger
	reader    *bufio.Reader
	out       io.Writer
	principal models.Principal
	closers   []func() error
}

// NewApp opens the wallet store and wires the boundary clients and the
// orchestrator described by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.New(os.Stderr, "text", c.LogLevel)
	a := &App{
		config: c,
		log:    log.With("module", "cli"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	newAPI := func(baseURL string, timeout time.Duration, unavailable, notFound error) (*client.Client, error) {
		return client.New(client.Config{
			BaseURL:     baseURL,
			Timeout:     timeout,
			Unavailable: unavailable,
			NotFound:    notFound,
			Logger:      log,
		})
	}

	identityAPI, err := newAPI(c.IdentityURL, c.RequestTimeout, common.ErrUnavailable, common.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}
	registryAPI, err := newAPI(c.RegistryURL, c.LedgerTimeout, common.ErrLedgerUnavailable, common.ErrAccountNotFound)
	if err != nil {
		return nil, fmt.Errorf("registry client: %w", err)
	}
	custodyAPI, err := newAPI(c.CustodyURL, c.RequestTimeout, common.ErrCustodyUnavailable, common.ErrKeyNotFound)
	if err != nil {
		return nil, fmt.Errorf("custody client: %w", err)
	}

	reg := registry.NewHTTPRegistry(registryAPI, c.ParentDomain, c.Network, log)

	var neg funding.Negotiator
	if c.FundingEnabled {
		fundingAPI, err := newAPI(c.FundingURL, c.RequestTimeout, common.ErrFundingUnavailable, common.ErrFundingNotFound)
		if err != nil {
			return nil, fmt.Errorf("funding client: %w", err)
		}
		neg = funding.NewHTTPNegotiator(fundingAPI, reg, c.Network, log)
	}

	if _, err := filex.EnsureDBDir(c.WalletDBPath); err != nil {
		return nil, fmt.Errorf("wallet directory: %w", err)
	}
	sess, err := wallet.Open(ctx, wallet.Options{
		DSN:          c.WalletDBPath,
		Network:      c.Network,
		AppKeyPrefix: c.AppKeyPrefix,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	a.wallet = sess

	unsubscribe := sess.Subscribe(a.walletChanged)
	a.closers = append(a.closers, func() error { unsubscribe(); return nil }, sess.Close)

	orch, err := reconcile.New(reconcile.Config{
		Network:          c.Network,
		RetryBackoff:     c.RetryBackoff,
		FundingEnabled:   c.FundingEnabled,
		FundingAmountUSD: c.FundingAmountUSD,
	}, reconcile.Deps{
		Verifier: identity.NewHTTPVerifier(identityAPI, log),
		Registry: reg,
		Custody:  custody.NewHTTPCustody(custodyAPI, log),
		Wallet:   sess,
		Funding:  neg,
		UI:       a,
		Logger:   log,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.orch = orch

	return a, nil
}

// Run blocks in the REPL until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("NovaKeeper client (type 'help' for commands)")
	if st := a.wallet.State(); st.SignedIn {
		printlnFn("Wallet session restored for", st.AccountID)
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close releases the wallet store. It is safe to call more than once.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) isSignedIn() bool {
	return a.wallet != nil && a.wallet.State().SignedIn
}

func (a *App) getStatus() string {
	s := ""
	if a.wallet != nil {
		if st := a.wallet.State(); st.SignedIn {
			s = st.AccountID
		}
	}
	if a.orch != nil {
		if snap := a.orch.Snapshot(); snap.Phase != reconcile.PhaseIdle {
			if s != "" {
				s += " "
			}
			s += string(snap.Phase)
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) walletChanged(st wallet.State) {
	if st.SignedIn {
		printlnFn("Wallet: signed in as", st.AccountID)
		return
	}
	printlnFn("Wallet: signed out")
}
