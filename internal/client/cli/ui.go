package cli

import (
	"context"
	"fmt"

	"github.com/nova-sdk/novakeeper/internal/client/reconcile"
)

var _ reconcile.UI = (*App)(nil)

var phaseText = map[reconcile.Phase]string{
	reconcile.PhaseVerifyingIdentity: "Verifying identity...",
	reconcile.PhaseCheckingAccount:   "Looking up your account...",
	reconcile.PhaseCreatingAccount:   "Creating your account...",
	reconcile.PhaseFundingOptional:   "Funding...",
	reconcile.PhaseRetrievingKey:     "Retrieving your key...",
	reconcile.PhaseActivatingSession: "Activating wallet session...",
	reconcile.PhaseSettled:           "Done.",
}

// Status prints a progress line for each phase that has one.
func (a *App) Status(phase reconcile.Phase) {
	if text, ok := phaseText[phase]; ok {
		printlnFn(text)
	}
}

// PromptAccountName asks for a name, offering the suggestion as the default.
// An empty answer with no suggestion, "cancel" or closed input dismisses it.
func (a *App) PromptAccountName(ctx context.Context, suggestion string, previous error) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if previous != nil {
		printlnFn("That name cannot be used:", previous)
	}
	prompt := fmt.Sprintf("Choose an account name under %s", a.config.ParentDomain)
	if suggestion != "" {
		prompt += fmt.Sprintf(" [%s]", suggestion)
	}
	name, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil || name == "cancel" {
		return "", false
	}
	if name == "" {
		name = suggestion
	}
	return name, name != ""
}

// OfferFunding asks whether to fund the new account. Unreadable answers
// decline.
func (a *App) OfferFunding(ctx context.Context, accountID string, defaultUSD float64) (float64, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	prompt := fmt.Sprintf("Fund %s with $%.2f? [Y/n or amount]", accountID, defaultUSD)
	answer, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return 0, false
	}
	amount, ok, err := parseFundingAnswer(answer, defaultUSD)
	if err != nil {
		printlnFn("Skipping funding:", err)
		return 0, false
	}
	return amount, ok
}

func (a *App) AccountCreated(accountID string, keyBackedUp bool) {
	printlnFn("Created account", accountID)
	if !keyBackedUp {
		printlnFn("Your key could not be backed up. It is only stored on this device.")
	}
}

func (a *App) Warn(w reconcile.Warning) {
	printlnFn("Warning:", w.String())
}

func (a *App) Failed(reason error) {
	printlnFn("Sign-in failed:", reason)
}
