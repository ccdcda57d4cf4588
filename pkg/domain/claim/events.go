package claim

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// AggregateType is the type tag claim aggregates persist under.
const AggregateType = "ClaimAggregate"

// Event type tags.
const (
	EventInitialized               = "claim.Initialized"
	EventFormDataUpdated           = "claim.FormDataUpdated"
	EventCalculationRecorded       = "claim.CalculationResultRecorded"
	EventNumberAssigned            = "claim.NumberAssigned"
	EventNumberUnassigned          = "claim.NumberUnassigned"
	EventStateChanged              = "claim.StateChanged"
	EventFileAttached              = "claim.FileAttached"
	EventVersionCreated            = "claim.VersionCreated"
	EventAssociatedWithPolicy      = "claim.AssociatedWithPolicy"
	EventDisassociatedFromPolicy   = "claim.DisassociatedFromPolicy"
	EventAssignedToOwner           = "claim.AssignedToOwner"
	EventAssignedToCustomer        = "claim.AssignedToCustomer"
	EventTransferredToOrganisation = "claim.TransferredToOrganisation"
	EventDeleted                   = "claim.Deleted"
)

// Initialized starts a claim aggregate.
type Initialized struct {
	OrganisationID uuid.UUID `json:"organisationId"`
	PolicyID       uuid.UUID `json:"policyId,omitempty"`
	CustomerID     uuid.UUID `json:"customerId,omitempty"`
	IsTestData     bool      `json:"isTestData,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// FormDataUpdated captures a new claim form document.
type FormDataUpdated struct {
	UpdateID    uuid.UUID `json:"updateId"`
	FormData    string    `json:"formData"`
	PerformedBy uuid.UUID `json:"performedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CalculationResultRecorded captures a claim calculation output.
type CalculationResultRecorded struct {
	UpdateID          uuid.UUID `json:"updateId"`
	CalculationResult string    `json:"calculationResult"`
	Timestamp         time.Time `json:"timestamp"`
}

// NumberAssigned records the claim reference number.
type NumberAssigned struct {
	ClaimNumber string    `json:"claimNumber"`
	Timestamp   time.Time `json:"timestamp"`
}

// NumberUnassigned releases the claim reference number.
type NumberUnassigned struct {
	Timestamp time.Time `json:"timestamp"`
}

// StateChanged records one explicit, audited workflow transition.
type StateChanged struct {
	Action         Action    `json:"action"`
	PerformedBy    uuid.UUID `json:"performedBy,omitempty"`
	OriginalState  Status    `json:"originalState"`
	ResultingState Status    `json:"resultingState"`
	Timestamp      time.Time `json:"timestamp"`
}

// FileAttached adds a file reference to the claim.
type FileAttached struct {
	Attachment Attachment `json:"attachment"`
	Timestamp  time.Time  `json:"timestamp"`
}

// VersionCreated freezes the claim's mutable fields into a version record.
type VersionCreated struct {
	VersionID uuid.UUID `json:"versionId"`
	Timestamp time.Time `json:"timestamp"`
}

// AssociatedWithPolicy links the claim to a policy.
type AssociatedWithPolicy struct {
	PolicyID  uuid.UUID `json:"policyId"`
	Timestamp time.Time `json:"timestamp"`
}

// DisassociatedFromPolicy unlinks the claim from its policy.
type DisassociatedFromPolicy struct {
	Timestamp time.Time `json:"timestamp"`
}

// AssignedToOwner assigns a handling user.
type AssignedToOwner struct {
	UserID    uuid.UUID `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// AssignedToCustomer links the claim to a customer record.
type AssignedToCustomer struct {
	CustomerID uuid.UUID `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferredToOrganisation moves the claim to another organisation.
type TransferredToOrganisation struct {
	OrganisationID uuid.UUID `json:"organisationId"`
	PerformedBy    uuid.UUID `json:"performedBy,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Deleted is the permanent deletion marker.
type Deleted struct {
	PerformedBy uuid.UUID `json:"performedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func init() {
	eventsourcing.Register(EventInitialized, func() any { return &Initialized{} })
	eventsourcing.Register(EventFormDataUpdated, func() any { return &FormDataUpdated{} })
	eventsourcing.Register(EventCalculationRecorded, func() any { return &CalculationResultRecorded{} })
	eventsourcing.Register(EventNumberAssigned, func() any { return &NumberAssigned{} })
	eventsourcing.Register(EventNumberUnassigned, func() any { return &NumberUnassigned{} })
	eventsourcing.Register(EventStateChanged, func() any { return &StateChanged{} })
	eventsourcing.Register(EventFileAttached, func() any { return &FileAttached{} })
	eventsourcing.Register(EventVersionCreated, func() any { return &VersionCreated{} })
	eventsourcing.Register(EventAssociatedWithPolicy, func() any { return &AssociatedWithPolicy{} })
	eventsourcing.Register(EventDisassociatedFromPolicy, func() any { return &DisassociatedFromPolicy{} })
	eventsourcing.Register(EventAssignedToOwner, func() any { return &AssignedToOwner{} })
	eventsourcing.Register(EventAssignedToCustomer, func() any { return &AssignedToCustomer{} })
	eventsourcing.Register(EventTransferredToOrganisation, func() any { return &TransferredToOrganisation{} })
	eventsourcing.Register(EventDeleted, func() any { return &Deleted{} })
}
