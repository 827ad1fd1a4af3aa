package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nova-sdk/novakeeper/internal/client/models"
	"github.com/nova-sdk/novakeeper/internal/client/reconcile"
	"github.com/nova-sdk/novakeeper/internal/common"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// Login prompts for an email and the identity token issued by the provider,
// installs the federated principal and runs the pipeline. The token is never
// echoed.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	token, err := getSecret(a.out, "Enter identity token: ")
	if err != nil {
		return err
	}
	p := models.FederatedPrincipal{
		Subject:      email,
		Email:        email,
		SessionToken: strings.TrimSpace(string(token)),
	}
	common.WipeByteArray(token)

	a.principal = p
	a.orch.SetPrincipal(p)
	return a.report(a.orch.Run(ctx))
}

// Wallet signs in with an external wallet address.
func (a *App) Wallet(ctx context.Context, address string) error {
	if !models.ValidWalletAddress(address) {
		return fmt.Errorf("%q is not a wallet address", address)
	}
	p := models.WalletPrincipal{ExternalWalletAddress: address}
	a.principal = p
	a.orch.SetPrincipal(p)
	return a.report(a.orch.Run(ctx))
}

// Callback hands a provider redirect to the orchestrator. When the URL
// carries callback parameters the episode restarts and, with a principal
// present, the pipeline runs again.
func (a *App) Callback(ctx context.Context, rawURL string) error {
	clean, detected, err := a.orch.HandleCallback(ctx, rawURL)
	if err != nil {
		return err
	}
	if !detected {
		printlnFn("No provider parameters in URL")
		return nil
	}
	printlnFn("Callback handled; continue at", clean)
	if a.principal == nil {
		return nil
	}
	return a.report(a.orch.Run(ctx))
}

// ShowStatus prints the orchestrator snapshot and the wallet state.
func (a *App) ShowStatus(ctx context.Context) error {
	snap := a.orch.Snapshot()
	printlnFn("Phase:     ", snap.Phase)
	if snap.Identifier != "" {
		printlnFn("Identifier:", snap.Identifier)
	}
	if snap.AccountID != "" {
		printlnFn("Account:   ", snap.AccountID)
	}
	printlnFn("Verified:  ", snap.State.IdentityVerified, " checked:", snap.State.AccountChecked,
		" attempted:", snap.State.AutoSignInAttempted)
	if snap.State.ActiveWalletID != "" {
		printlnFn("Wallet id: ", snap.State.ActiveWalletID)
	}
	st := a.wallet.State()
	if st.SignedIn {
		printlnFn("Wallet:     signed in as", st.AccountID)
	} else {
		printlnFn("Wallet:     signed out")
	}
	if snap.Err != nil {
		printlnFn("Last error:", snap.Err)
	}
	for _, w := range snap.Warnings {
		printlnFn("Warning:   ", w.String())
	}
	return nil
}

// Retry runs the pipeline again once the previous attempt ended.
func (a *App) Retry(ctx context.Context) error {
	if a.principal == nil {
		return errors.New("nobody is logged in; use login or wallet first")
	}
	return a.report(a.orch.Retry(ctx))
}

// Logout ends the episode and signs the wallet session out.
func (a *App) Logout(ctx context.Context) error {
	a.principal = nil
	if err := a.orch.Logout(ctx); err != nil {
		return err
	}
	printlnFn("Logged out")
	return nil
}

// report prints a run's outcome. Failures were already shown through the
// UI collaborator, so only no-op reasons and successes are printed here.
func (a *App) report(out reconcile.Outcome, err error) error {
	switch {
	case err == nil:
	case reconcile.IsNoop(err):
		printlnFn("Nothing to do:", err)
		return nil
	default:
		a.log.Debug(context.Background(), "run ended with error", "err", err)
		return nil
	}

	if out.Activated {
		printlnFn("Signed in as", out.AccountID)
	} else {
		printlnFn("Account", out.AccountID, "found, but the wallet was not activated")
	}
	if out.Funding != nil {
		switch {
		case out.Funding.TxHash != "":
			printlnFn("Funding transaction:", out.Funding.TxHash)
		case out.Funding.Session != nil:
			printlnFn("Funding session:", out.Funding.Session.SessionID)
		}
	}
	return nil
}
