// Package quote implements the event-sourced quote/policy aggregate:
// quote lifecycle from first form data through submission, policy issuance,
// and renewal/adjustment/cancellation transactions. All state is rebuilt by
// replaying the aggregate's ordered event stream; no field is mutated
// except through an event applier.
package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
)

// Type classifies what a quote is for.
type Type string

const (
	TypeNewBusiness  Type = "newBusiness"
	TypeRenewal      Type = "renewal"
	TypeAdjustment   Type = "adjustment"
	TypeCancellation Type = "cancellation"
)

// Status is a quote's lifecycle status. Transitions are governed by an
// injected workflow policy.
type Status string

const (
	StatusNascent    Status = "nascent"
	StatusIncomplete Status = "incomplete"
	StatusApproved   Status = "approved"
	StatusReview     Status = "review"
	StatusDeclined   Status = "declined"
	StatusComplete   Status = "complete"
	StatusDiscarded  Status = "discarded"
)

// CalculationTriggers are the flags a rating calculation raises to steer
// the workflow's status decision.
type CalculationTriggers struct {
	RequiresReview bool `json:"requiresReview,omitempty"`
	Declined       bool `json:"declined,omitempty"`
}

// Workflow decides quote status transitions. It is injected, swappable per
// tenant/product configuration.
type Workflow interface {
	// StatusAfterCalculation returns the status a quote moves to after a
	// calculation with the given trigger flags.
	StatusAfterCalculation(current Status, triggers CalculationTriggers) Status

	// CanTransition reports whether a quote may move between two statuses.
	CanTransition(from, to Status) bool
}

// DefaultWorkflow is the stock workflow: declined beats review, review
// beats approved, and completed/discarded quotes are terminal.
type DefaultWorkflow struct{}

// StatusAfterCalculation implements Workflow.
func (DefaultWorkflow) StatusAfterCalculation(current Status, triggers CalculationTriggers) Status {
	switch current {
	case StatusComplete, StatusDiscarded:
		return current
	}
	if triggers.Declined {
		return StatusDeclined
	}
	if triggers.RequiresReview {
		return StatusReview
	}
	return StatusApproved
}

// CanTransition implements Workflow.
func (DefaultWorkflow) CanTransition(from, to Status) bool {
	switch from {
	case StatusComplete, StatusDiscarded:
		return false
	}
	if from == StatusNascent {
		return to == StatusIncomplete || to == StatusDiscarded
	}
	return true
}

// Quote is a sub-entity of the aggregate. Quotes refer to their policy
// transaction by id; the aggregate owns the flat collections and resolves
// references through them.
type Quote struct {
	ID                uuid.UUID
	Type              Type
	Status            Status
	QuoteNumber       string
	FormData          *formdata.DataUpdate
	CalculationResult *formdata.DataUpdate
	Submitted         bool
	IsTestData        bool

	// InceptionDate/ExpiryDate are civil calendar dates (midnight UTC
	// carriers) seeded on renewal and adjustment quotes.
	InceptionDate time.Time
	ExpiryDate    time.Time

	// PolicyTransactionID links to the transaction issued from this quote,
	// if any.
	PolicyTransactionID uuid.UUID

	CreatedAt time.Time
}

// HasFormData reports whether the quote has received any form data yet.
func (q *Quote) HasFormData() bool {
	return q.FormData != nil
}

// IsBound reports whether a policy transaction has been issued from this
// quote, freezing it against further mutation.
func (q *Quote) IsBound() bool {
	return q.PolicyTransactionID != uuid.Nil
}

// NumberGenerator supplies unique human-readable reference numbers.
type NumberGenerator interface {
	Next() (string, error)
}
