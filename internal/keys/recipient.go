package keys

import (
	"github.com/aurovest/keydesk/pkg/emailaddr"
	"github.com/aurovest/keydesk/pkg/models"
)

// Recipient kinds share the audit trail vocabulary; the strings recorded in
// distribution_outcomes rows are these same values.
const (
	RecipientAccount = models.RecipientKindAccount
	RecipientEmail   = models.RecipientKindEmail
)

// Recipient is a tagged union of assignment targets: a registered account or
// a bare email address. Keeping both kinds in one ordered sequence is what
// makes the positional pairing in Allocate a single loop.
type Recipient struct {
	Kind        string
	AccountID   string
	DisplayName string
	Address     string // normalized email address for the email kind
}

// Ref is the audit reference: account ID for accounts, address for emails.
func (r Recipient) Ref() string {
	if r.Kind == RecipientAccount {
		return r.AccountID
	}
	return r.Address
}

// AccountRecipient builds a Recipient from a registered account.
func AccountRecipient(a models.Account) Recipient {
	return Recipient{
		Kind:        RecipientAccount,
		AccountID:   a.ID,
		DisplayName: a.Name,
		Address:     emailaddr.Normalize(a.Email),
	}
}

// EmailRecipient builds a Recipient from an already-normalized address.
func EmailRecipient(address string) Recipient {
	return Recipient{Kind: RecipientEmail, Address: address}
}

// RecipientSet is the ordered, deduplicated collection of assignment targets
// for one bulk distribution: account recipients in selection order followed by
// email recipients in addition order. Its size can never exceed the capacity
// it was created with (the current key pool size).
type RecipientSet struct {
	capacity   int
	accounts   []Recipient
	emails     []Recipient
	accountIDs map[string]bool
	addresses  map[string]bool
}

// NewRecipientSet creates an empty set bounded by the given pool capacity.
func NewRecipientSet(capacity int) *RecipientSet {
	if capacity < 0 {
		capacity = 0
	}
	return &RecipientSet{
		capacity:   capacity,
		accountIDs: make(map[string]bool),
		addresses:  make(map[string]bool),
	}
}

func (s *RecipientSet) Size() int {
	return len(s.accounts) + len(s.emails)
}

func (s *RecipientSet) Capacity() int {
	return s.capacity
}

// AddAccount selects a registered account. Selecting an already-selected
// account is a no-op. Fails with CAPACITY_EXCEEDED when the set is full.
func (s *RecipientSet) AddAccount(a models.Account) error {
	if s.accountIDs[a.ID] {
		return nil
	}
	if s.Size() >= s.capacity {
		return newValidationError(CodeCapacityExceeded,
			"only %d keys available for this plan", s.capacity)
	}
	s.accounts = append(s.accounts, AccountRecipient(a))
	s.accountIDs[a.ID] = true
	return nil
}

// RemoveAccount deselects an account; absent IDs are a no-op.
func (s *RecipientSet) RemoveAccount(id string) {
	if !s.accountIDs[id] {
		return
	}
	delete(s.accountIDs, id)
	for i, r := range s.accounts {
		if r.AccountID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return
		}
	}
}

// AddEmail validates and appends a manual email recipient. The raw input is
// only consumed on success; on failure the caller keeps the operator's input
// for correction.
func (s *RecipientSet) AddEmail(raw string) error {
	if !emailaddr.Valid(raw) {
		return newValidationError(CodeInvalidEmailSyntax,
			"%q is not a valid email address", raw)
	}
	addr := emailaddr.Normalize(raw)
	if s.addresses[addr] {
		return newValidationError(CodeDuplicateRecipient,
			"%s is already a recipient", addr)
	}
	if s.Size() >= s.capacity {
		return newValidationError(CodeCapacityExceeded,
			"only %d keys available for this plan", s.capacity)
	}
	s.emails = append(s.emails, EmailRecipient(addr))
	s.addresses[addr] = true
	return nil
}

// RemoveEmail removes an email recipient by normalized match.
func (s *RecipientSet) RemoveEmail(raw string) {
	addr := emailaddr.Normalize(raw)
	if !s.addresses[addr] {
		return
	}
	delete(s.addresses, addr)
	for i, r := range s.emails {
		if r.Address == addr {
			s.emails = append(s.emails[:i], s.emails[i+1:]...)
			return
		}
	}
}

// SelectAll selects candidate accounts in their given order until the set is
// full. Already-selected accounts keep their original position.
func (s *RecipientSet) SelectAll(candidates []models.Account) {
	for _, a := range candidates {
		if s.Size() >= s.capacity {
			return
		}
		_ = s.AddAccount(a)
	}
}

// DeselectAll clears all account selections, leaving email recipients intact.
func (s *RecipientSet) DeselectAll() {
	s.accounts = nil
	s.accountIDs = make(map[string]bool)
}

// Validate is the pre-submission guard. A violation blocks the remote calls
// entirely; an over-capacity set is never partially submitted.
func (s *RecipientSet) Validate() error {
	if s.Size() == 0 {
		return newValidationError(CodeEmptySelection, "select at least one recipient")
	}
	if s.Size() > s.capacity {
		return newValidationError(CodeCapacityExceeded,
			"%d recipients selected but only %d keys available", s.Size(), s.capacity)
	}
	return nil
}

// Recipients returns the combined ordered sequence: accounts first in
// selection order, then emails in addition order.
func (s *RecipientSet) Recipients() []Recipient {
	out := make([]Recipient, 0, s.Size())
	out = append(out, s.accounts...)
	out = append(out, s.emails...)
	return out
}
