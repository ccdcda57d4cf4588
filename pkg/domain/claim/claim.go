// Package claim implements the event-sourced claim aggregate: lodgement
// and assessment lifecycle, file attachments, immutable version records,
// and associations to the policy, customer and handling organisation.
// Every state transition is explicit and auditable via the event log.
package claim

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
)

// Status is a claim's lifecycle status, driven by an injected workflow.
type Status string

const (
	StatusNascent    Status = "nascent"
	StatusIncomplete Status = "incomplete"
	StatusNotified   Status = "notified"
	StatusAssessment Status = "assessment"
	StatusApproved   Status = "approved"
	StatusDeclined   Status = "declined"
	StatusSettled    Status = "settled"
	StatusWithdrawn  Status = "withdrawn"
)

// Action is a requested claim state change.
type Action string

const (
	ActionNotify   Action = "notify"
	ActionAssess   Action = "assess"
	ActionApprove  Action = "approve"
	ActionDecline  Action = "decline"
	ActionSettle   Action = "settle"
	ActionWithdraw Action = "withdraw"
	ActionReturn   Action = "return"
)

// Workflow decides claim state transitions. Injected, swappable per
// tenant/product.
type Workflow interface {
	// ResultingState returns the state the claim moves to when the action
	// is performed in the current state, or ok=false when the current
	// state does not support the action.
	ResultingState(current Status, action Action) (Status, bool)
}

// DefaultWorkflow is the stock claim workflow.
type DefaultWorkflow struct{}

// ResultingState implements Workflow.
func (DefaultWorkflow) ResultingState(current Status, action Action) (Status, bool) {
	switch action {
	case ActionNotify:
		if current == StatusNascent || current == StatusIncomplete {
			return StatusNotified, true
		}
	case ActionAssess:
		if current == StatusNotified {
			return StatusAssessment, true
		}
	case ActionReturn:
		if current == StatusAssessment {
			return StatusNotified, true
		}
	case ActionApprove:
		if current == StatusAssessment {
			return StatusApproved, true
		}
	case ActionDecline:
		if current == StatusAssessment {
			return StatusDeclined, true
		}
	case ActionSettle:
		if current == StatusApproved {
			return StatusSettled, true
		}
	case ActionWithdraw:
		switch current {
		case StatusSettled, StatusDeclined, StatusWithdrawn:
			return "", false
		default:
			return StatusWithdrawn, true
		}
	}
	return "", false
}

// Attachment is a file attached to the claim. Content lives in an external
// content store, referenced by ContentID.
type Attachment struct {
	Name      string    `json:"name"`
	MIMEType  string    `json:"mimeType"`
	SizeBytes int64     `json:"sizeBytes"`
	ContentID uuid.UUID `json:"contentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Version is an immutable record of the claim's mutable fields and
// attachments at the point it was created: status, reference number, the
// data-update pair, the current associations and a copy of the attachment
// list. Enough to reconstruct the claim as it stood when the version was cut.
type Version struct {
	ID                uuid.UUID            `json:"id"`
	Number            int                  `json:"number"`
	Status            Status               `json:"status"`
	ClaimNumber       string               `json:"claimNumber,omitempty"`
	FormData          *formdata.DataUpdate `json:"formData,omitempty"`
	CalculationResult *formdata.DataUpdate `json:"calculationResult,omitempty"`
	Attachments       []Attachment         `json:"attachments,omitempty"`
	OwnerUserID       uuid.UUID            `json:"ownerUserId,omitempty"`
	CustomerID        uuid.UUID            `json:"customerId,omitempty"`
	PolicyID          uuid.UUID            `json:"policyId,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
}
