package keys

import (
	"context"
	"fmt"

	"github.com/aurovest/keydesk/pkg/models"
)

// Distributor is the subset of the platform client the allocation engine
// needs: one remote call per recipient/key pair.
type Distributor interface {
	DistributeToAccount(ctx context.Context, keyID, accountID string) error
	DistributeToEmail(ctx context.Context, keyID, email string) error
}

// Outcome records the result of one attempted pair.
type Outcome struct {
	Recipient   Recipient
	Key         models.AuthKey
	Status      string // models.OutcomeSucceeded or models.OutcomeFailed
	ErrorDetail string
}

// BatchSummary is the reduction of a batch's outcomes for operator-facing
// reporting. FailedEmails lists only email-kind failures: those are the ones
// the operator can retry individually.
type BatchSummary struct {
	Succeeded    int      `json:"succeeded"`
	Failed       int      `json:"failed"`
	FailedEmails []string `json:"failed_emails"`
}

// Engine pairs recipients with keys positionally and executes the remote
// distribution calls.
type Engine struct {
	distributor Distributor
}

func NewEngine(d Distributor) *Engine {
	return &Engine{distributor: d}
}

// Allocate pairs recipient i with keys[i] and issues exactly one distribution
// call per pair, strictly in sequence. The platform is the sole arbiter of key
// uniqueness: calls are never issued concurrently, so two recipients can never
// race for the same key from this batch, and the positional pairing stays
// valid even when another session consumes a key mid-batch; that pair simply
// fails and the loop moves on. A failed pair never aborts the batch.
//
// len(recipients) > len(keys) is a programming error (guards enforce capacity
// upstream); it fails fast with ErrInsufficientKeys before any call is issued.
func (e *Engine) Allocate(ctx context.Context, recipients []Recipient, keys []models.AuthKey) ([]Outcome, error) {
	if len(recipients) > len(keys) {
		return nil, ErrInsufficientKeys
	}

	outcomes := make([]Outcome, 0, len(recipients))
	for i, r := range recipients {
		key := keys[i]

		var err error
		switch r.Kind {
		case RecipientAccount:
			err = e.distributor.DistributeToAccount(ctx, key.ID, r.AccountID)
		case RecipientEmail:
			err = e.distributor.DistributeToEmail(ctx, key.ID, r.Address)
		default:
			// A kind the engine does not know must never be recorded as a
			// success; no remote call exists for it.
			err = fmt.Errorf("unknown recipient kind %q", r.Kind)
		}

		o := Outcome{Recipient: r, Key: key, Status: models.OutcomeSucceeded}
		if err != nil {
			// Transport failures and platform rejections collapse to the
			// same failed outcome; the distinction is in ErrorDetail.
			o.Status = models.OutcomeFailed
			o.ErrorDetail = err.Error()
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// Summarize reduces outcomes to counts plus the failed email addresses, in
// attempt order.
func Summarize(outcomes []Outcome) BatchSummary {
	s := BatchSummary{FailedEmails: []string{}}
	for _, o := range outcomes {
		if o.Status == models.OutcomeSucceeded {
			s.Succeeded++
			continue
		}
		s.Failed++
		if o.Recipient.Kind == RecipientEmail {
			s.FailedEmails = append(s.FailedEmails, o.Recipient.Address)
		}
	}
	return s
}
