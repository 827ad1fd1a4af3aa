package reconcile

import (
	"errors"
	"fmt"

	"github.com/nova-sdk/novakeeper/internal/client/funding"
	"github.com/nova-sdk/novakeeper/internal/common"
)

// Phase is a state of the reconciliation state machine.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseVerifyingIdentity Phase = "verifying_identity"
	PhaseCheckingAccount   Phase = "checking_account"
	PhaseCreatingAccount   Phase = "creating_account"
	PhaseFundingOptional   Phase = "funding_optional"
	PhaseRetrievingKey     Phase = "retrieving_key"
	PhaseActivatingSession Phase = "activating_session"
	PhaseSettled           Phase = "settled"
	PhaseFailed            Phase = "failed"
)

// Terminal reports whether a run ends in p.
func (p Phase) Terminal() bool {
	return p == PhaseSettled || p == PhaseFailed
}

// State is the per-episode guard state. Only the orchestrator writes it.
type State struct {
	IdentityVerified bool
	AccountChecked   bool
	// AutoSignInAttempted is the one-shot latch: it goes false to true once
	// per episode and is cleared only by a failure, a logout or a provider
	// callback.
	AutoSignInAttempted bool
	// ActiveWalletID is empty until a session is activated.
	ActiveWalletID string
}

// Run outcomes that are not failures. Callers that re-fire Run from
// several lifecycle hooks should treat these as "nothing to do".
var (
	ErrNoPrincipal      = errors.New("no principal")
	ErrInProgress       = errors.New("verification already in progress")
	ErrAlreadyAttempted = errors.New("auto sign-in already attempted this episode")
	ErrAlreadySignedIn  = errors.New("wallet already signed in")
	// ErrSuperseded is returned by a run whose episode ended (logout or a
	// provider callback) while it was waiting on the network.
	ErrSuperseded = errors.New("episode superseded")
)

// Failure reasons raised by the orchestrator itself.
var (
	ErrCancelled          = errors.New("account naming dismissed")
	ErrActivationMismatch = errors.New("wallet session does not show the managed account")
)

// IsNoop reports whether err means Run deliberately did nothing.
func IsNoop(err error) bool {
	return errors.Is(err, ErrInProgress) ||
		errors.Is(err, ErrAlreadyAttempted) ||
		errors.Is(err, ErrAlreadySignedIn) ||
		errors.Is(err, ErrSuperseded)
}

// Warning is a dismissible, non-fatal message for the UI.
type Warning struct {
	Class   common.Class
	Message string
	Err     error
}

func (w Warning) String() string {
	if w.Err == nil {
		return w.Message
	}
	return fmt.Sprintf("%s (%v)", w.Message, w.Err)
}

// Outcome summarises one run.
type Outcome struct {
	AccountID   string
	Created     bool
	KeyBackedUp bool
	Checksum    string
	// Activated is true when the wallet session now signs as AccountID.
	Activated bool
	Funding   *funding.Result
	Warnings  []Warning
}

// Snapshot is a consistent read of the orchestrator for status displays.
type Snapshot struct {
	Phase      Phase
	State      State
	Episode    uint64
	Identifier string
	AccountID  string
	Activated  bool
	Running    bool
	Err        error
	Warnings   []Warning
}
