package keys

import (
	"context"

	"github.com/aurovest/keydesk/pkg/emailaddr"
	"github.com/aurovest/keydesk/pkg/models"
)

// Single-assignment states.
const (
	StateSelecting           = "selecting_recipient"
	StatePendingConfirmation = "pending_confirmation"
	StateAssigning           = "assigning"
	StateSucceeded           = "succeeded"
	StateFailed              = "failed"
	StateCancelled           = "cancelled"
)

var singleTransitions = map[string][]string{
	StateSelecting:           {StatePendingConfirmation, StateAssigning},
	StatePendingConfirmation: {StateAssigning, StateCancelled},
	StateAssigning:           {StateSucceeded, StateFailed},
	// Failed assignments reopen rather than silently closing.
	StateFailed: {StateSelecting},
}

// SingleAssignment drives the one-recipient assignment flow for a single key.
// Selecting a registered account requires an explicit confirmation step before
// the remote call; the manual-email path goes straight to assigning once the
// address validates, since typing an address is already a deliberate action.
type SingleAssignment struct {
	key     models.AuthKey
	state   string
	account *models.Account
	email   string
}

// NewSingleAssignment opens the flow for a key. A key that already has a
// distribution target is rejected; the action is simply not offered for it.
func NewSingleAssignment(key models.AuthKey) (*SingleAssignment, error) {
	if key.Distributed() {
		return nil, ErrAlreadyDistributed
	}
	return &SingleAssignment{key: key, state: StateSelecting}, nil
}

func (a *SingleAssignment) State() string {
	return a.state
}

func (a *SingleAssignment) Key() models.AuthKey {
	return a.key
}

func (a *SingleAssignment) transition(to string) error {
	for _, allowed := range singleTransitions[a.state] {
		if allowed == to {
			a.state = to
			return nil
		}
	}
	return ErrInvalidTransition
}

// SelectAccount chooses a registered account and moves to pending
// confirmation. No further input is needed before confirm or cancel.
func (a *SingleAssignment) SelectAccount(acct models.Account) error {
	if a.state != StateSelecting {
		return ErrInvalidTransition
	}
	a.account = &acct
	return a.transition(StatePendingConfirmation)
}

// Confirm approves the pending account selection and moves to assigning.
func (a *SingleAssignment) Confirm() error {
	if a.state != StatePendingConfirmation {
		return ErrInvalidTransition
	}
	return a.transition(StateAssigning)
}

// Cancel discards the pending selection. The key context stays open; only the
// selection is dropped.
func (a *SingleAssignment) Cancel() error {
	if a.state != StatePendingConfirmation {
		return ErrInvalidTransition
	}
	a.account = nil
	return a.transition(StateCancelled)
}

// SubmitEmail validates the manual address and moves straight to assigning.
// On a validation failure the flow stays in selecting and the input is
// untouched for correction.
func (a *SingleAssignment) SubmitEmail(raw string) error {
	if a.state != StateSelecting {
		return ErrInvalidTransition
	}
	if !emailaddr.Valid(raw) {
		return newValidationError(CodeInvalidEmailSyntax, "%q is not a valid email address", raw)
	}
	a.email = emailaddr.Normalize(raw)
	return a.transition(StateAssigning)
}

// Execute issues the remote call for the assigning state and settles the flow
// in succeeded or failed. The platform error is returned as-is so callers can
// surface the service message.
func (a *SingleAssignment) Execute(ctx context.Context, d Distributor) error {
	if a.state != StateAssigning {
		return ErrInvalidTransition
	}

	var err error
	if a.account != nil {
		err = d.DistributeToAccount(ctx, a.key.ID, a.account.ID)
	} else {
		err = d.DistributeToEmail(ctx, a.key.ID, a.email)
	}

	if err != nil {
		_ = a.transition(StateFailed)
		return err
	}
	return a.transition(StateSucceeded)
}

// Retry reopens a failed assignment for a new selection.
func (a *SingleAssignment) Retry() error {
	if a.state != StateFailed {
		return ErrInvalidTransition
	}
	a.account = nil
	a.email = ""
	return a.transition(StateSelecting)
}
