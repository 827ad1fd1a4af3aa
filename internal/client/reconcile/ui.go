package reconcile

import "context"

// UI is the presentation collaborator. Calls are made from the goroutine
// running the pipeline and never while the orchestrator holds its lock, so
// implementations may call Snapshot.
type UI interface {
	// Status reports every phase transition.
	Status(phase Phase)
	// PromptAccountName suspends the run until the user picks a name.
	// previous is nil on the first prompt and otherwise says why the last
	// name was refused. ok=false means the user dismissed the prompt.
	PromptAccountName(ctx context.Context, suggestion string, previous error) (name string, ok bool)
	// OfferFunding asks whether to fund a new account and with how much.
	OfferFunding(ctx context.Context, accountID string, defaultUSD float64) (amountUSD float64, accept bool)
	// AccountCreated is called once escrow has been attempted.
	AccountCreated(accountID string, keyBackedUp bool)
	Warn(w Warning)
	Failed(reason error)
}

// NopUI declines every prompt. Useful for callers with no interactive user.
type NopUI struct{}

func (NopUI) Status(Phase) {}
func (NopUI) PromptAccountName(context.Context, string, error) (string, bool) {
	return "", false
}
func (NopUI) OfferFunding(context.Context, string, float64) (float64, bool) { return 0, false }
func (NopUI) AccountCreated(string, bool)                                    {}
func (NopUI) Warn(Warning)                                                   {}
func (NopUI) Failed(error)                                                   {}
