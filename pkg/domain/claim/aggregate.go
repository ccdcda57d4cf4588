package claim

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// Aggregate is the event-sourced root owning exactly one claim.
type Aggregate struct {
	eventsourcing.AggregateRoot

	organisationID uuid.UUID
	isTestData     bool

	status            Status
	claimNumber       string
	formData          *formdata.DataUpdate
	calculationResult *formdata.DataUpdate
	attachments       []Attachment
	versions          []Version

	ownerUserID uuid.UUID
	customerID  uuid.UUID
	policyID    uuid.UUID

	deleted bool
}

// New creates an empty aggregate ready for event replay.
func New(id string) *Aggregate {
	return &Aggregate{
		AggregateRoot: eventsourcing.NewAggregateRoot(id, AggregateType),
		status:        StatusNascent,
	}
}

// CreateForPolicy is the factory for a claim lodged against a policy.
func CreateForPolicy(
	aggregateID string,
	organisationID, policyID, customerID uuid.UUID,
	isTestData bool,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) (*Aggregate, error) {
	a := New(aggregateID)
	payload := &Initialized{
		OrganisationID: organisationID,
		PolicyID:       policyID,
		CustomerID:     customerID,
		IsTestData:     isTestData,
		Timestamp:      timestamp,
	}
	if err := a.raise(payload, EventInitialized, metadata); err != nil {
		return nil, err
	}
	return a, nil
}

// Status returns the claim's current workflow status.
func (a *Aggregate) Status() Status { return a.status }

// ClaimNumber returns the assigned reference number, or "".
func (a *Aggregate) ClaimNumber() string { return a.claimNumber }

// FormData returns the latest form data update, or nil.
func (a *Aggregate) FormData() *formdata.DataUpdate { return a.formData }

// CalculationResult returns the latest calculation update, or nil.
func (a *Aggregate) CalculationResult() *formdata.DataUpdate { return a.calculationResult }

// Attachments returns the claim's file attachments in attach order.
func (a *Aggregate) Attachments() []Attachment { return a.attachments }

// Versions returns the claim's immutable version records in order.
func (a *Aggregate) Versions() []Version { return a.versions }

// PolicyID returns the associated policy id, or uuid.Nil.
func (a *Aggregate) PolicyID() uuid.UUID { return a.policyID }

// CustomerID returns the associated customer id, or uuid.Nil.
func (a *Aggregate) CustomerID() uuid.UUID { return a.customerID }

// OwnerUserID returns the handling user, or uuid.Nil.
func (a *Aggregate) OwnerUserID() uuid.UUID { return a.ownerUserID }

// OrganisationID returns the owning organisation.
func (a *Aggregate) OrganisationID() uuid.UUID { return a.organisationID }

// IsDeleted reports whether the deletion marker has been applied.
func (a *Aggregate) IsDeleted() bool { return a.deleted }

func (a *Aggregate) raise(payload any, eventType string, metadata eventsourcing.EventMetadata) error {
	if err := a.apply(payload); err != nil {
		return err
	}
	if _, err := a.ApplyChange(payload, eventType, metadata); err != nil {
		return err
	}
	return nil
}

// ApplyEvent applies a persisted event during replay.
func (a *Aggregate) ApplyEvent(event *eventsourcing.Event) error {
	payload, err := eventsourcing.Decode(event)
	if err != nil {
		return err
	}
	if err := a.apply(payload); err != nil {
		return err
	}
	return a.LoadFromHistory([]*eventsourcing.Event{event})
}

func (a *Aggregate) apply(payload any) error {
	switch e := payload.(type) {
	case *Initialized:
		a.organisationID = e.OrganisationID
		a.policyID = e.PolicyID
		a.customerID = e.CustomerID
		a.isTestData = e.IsTestData
		a.status = StatusNascent
	case *FormDataUpdated:
		a.formData = formdata.NewDataUpdate(e.UpdateID, e.FormData, e.Timestamp)
		if a.status == StatusNascent {
			a.status = StatusIncomplete
		}
	case *CalculationResultRecorded:
		a.calculationResult = formdata.NewDataUpdate(e.UpdateID, e.CalculationResult, e.Timestamp)
	case *NumberAssigned:
		a.claimNumber = e.ClaimNumber
	case *NumberUnassigned:
		a.claimNumber = ""
	case *StateChanged:
		a.status = e.ResultingState
	case *FileAttached:
		a.attachments = append(a.attachments, e.Attachment)
	case *VersionCreated:
		// Data updates are immutable once applied, so the version can hold
		// the same pointers; later updates replace the aggregate's pointer
		// rather than mutate the document.
		a.versions = append(a.versions, Version{
			ID:                e.VersionID,
			Number:            len(a.versions) + 1,
			Status:            a.status,
			ClaimNumber:       a.claimNumber,
			FormData:          a.formData,
			CalculationResult: a.calculationResult,
			Attachments:       append([]Attachment(nil), a.attachments...),
			OwnerUserID:       a.ownerUserID,
			CustomerID:        a.customerID,
			PolicyID:          a.policyID,
			CreatedAt:         e.Timestamp,
		})
	case *AssociatedWithPolicy:
		a.policyID = e.PolicyID
	case *DisassociatedFromPolicy:
		a.policyID = uuid.Nil
	case *AssignedToOwner:
		a.ownerUserID = e.UserID
	case *AssignedToCustomer:
		a.customerID = e.CustomerID
	case *TransferredToOrganisation:
		a.organisationID = e.OrganisationID
	case *Deleted:
		a.deleted = true
	default:
		return fmt.Errorf("%w: %T", eventsourcing.ErrUnknownEventType, payload)
	}
	return nil
}

type aggregateSnapshot struct {
	ID                string               `json:"id"`
	Version           int64                `json:"version"`
	OrganisationID    uuid.UUID            `json:"organisationId"`
	IsTestData        bool                 `json:"isTestData,omitempty"`
	Status            Status               `json:"status"`
	ClaimNumber       string               `json:"claimNumber,omitempty"`
	FormData          *formdata.DataUpdate `json:"formData,omitempty"`
	CalculationResult *formdata.DataUpdate `json:"calculationResult,omitempty"`
	Attachments       []Attachment         `json:"attachments,omitempty"`
	Versions          []Version            `json:"versions,omitempty"`
	OwnerUserID       uuid.UUID            `json:"ownerUserId,omitempty"`
	CustomerID        uuid.UUID            `json:"customerId,omitempty"`
	PolicyID          uuid.UUID            `json:"policyId,omitempty"`
	Deleted           bool                 `json:"deleted,omitempty"`
}

// MarshalSnapshot implements eventsourcing.Snapshotter.
func (a *Aggregate) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(aggregateSnapshot{
		ID:                a.ID(),
		Version:           a.Version(),
		OrganisationID:    a.organisationID,
		IsTestData:        a.isTestData,
		Status:            a.status,
		ClaimNumber:       a.claimNumber,
		FormData:          a.formData,
		CalculationResult: a.calculationResult,
		Attachments:       a.attachments,
		Versions:          a.versions,
		OwnerUserID:       a.ownerUserID,
		CustomerID:        a.customerID,
		PolicyID:          a.policyID,
		Deleted:           a.deleted,
	})
}

// UnmarshalSnapshot implements eventsourcing.Snapshotter.
func (a *Aggregate) UnmarshalSnapshot(data []byte) error {
	var snap aggregateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to restore claim aggregate snapshot: %w", err)
	}
	a.Restore(snap.ID, AggregateType, snap.Version)
	a.organisationID = snap.OrganisationID
	a.isTestData = snap.IsTestData
	a.status = snap.Status
	a.claimNumber = snap.ClaimNumber
	a.formData = snap.FormData
	a.calculationResult = snap.CalculationResult
	a.attachments = snap.Attachments
	a.versions = snap.Versions
	a.ownerUserID = snap.OwnerUserID
	a.customerID = snap.CustomerID
	a.policyID = snap.PolicyID
	a.deleted = snap.Deleted
	return nil
}
