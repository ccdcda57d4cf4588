package claim

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// UpdateFormData records a new form data document for the claim. The first
// form data update moves a nascent claim to incomplete.
func (a *Aggregate) UpdateFormData(
	formData string,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&FormDataUpdated{
		UpdateID:    uuid.New(),
		FormData:    formData,
		PerformedBy: userID,
		Timestamp:   timestamp,
	}, EventFormDataUpdated, metadata)
}

// RecordCalculationResult captures an assessment calculation output.
func (a *Aggregate) RecordCalculationResult(
	calculationResult string,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&CalculationResultRecorded{
		UpdateID:          uuid.New(),
		CalculationResult: calculationResult,
		Timestamp:         timestamp,
	}, EventCalculationRecorded, metadata)
}

// AssignClaimNumber stamps the claim with a reference number from the
// injected generator. Assigning while a number is held is a conflict;
// callers must unassign first.
func (a *Aggregate) AssignClaimNumber(
	number string,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	if a.claimNumber != "" {
		return domain.Conflict(domain.CodeClaimNumberAlreadyAssigned,
			"claim %s already holds number %s", a.ID(), a.claimNumber)
	}
	return a.raise(&NumberAssigned{
		ClaimNumber: number,
		Timestamp:   timestamp,
	}, EventNumberAssigned, metadata)
}

// UnassignClaimNumber releases the claim's reference number so it can be
// returned to the number pool.
func (a *Aggregate) UnassignClaimNumber(
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	if a.claimNumber == "" {
		return domain.Invalid(domain.CodeClaimNumberNotAssigned,
			"claim %s has no number to unassign", a.ID())
	}
	return a.raise(&NumberUnassigned{
		Timestamp: timestamp,
	}, EventNumberUnassigned, metadata)
}

// ChangeClaimState performs a workflow action. The resulting state is
// resolved by the injected workflow; actions the current state does not
// support are rejected with a stable error code.
func (a *Aggregate) ChangeClaimState(
	action Action,
	workflow Workflow,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	resulting, ok := workflow.ResultingState(a.status, action)
	if !ok {
		return domain.Invalid(domain.CodeClaimActionNotPermitted,
			"action %s is not permitted while claim %s is %s", action, a.ID(), a.status)
	}
	return a.raise(&StateChanged{
		Action:         action,
		PerformedBy:    userID,
		OriginalState:  a.status,
		ResultingState: resulting,
		Timestamp:      timestamp,
	}, EventStateChanged, metadata)
}

// AttachFile records a file reference on the claim. The content itself is
// stored out of band under the attachment's content id.
func (a *Aggregate) AttachFile(
	attachment Attachment,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = timestamp
	}
	return a.raise(&FileAttached{
		Attachment: attachment,
		Timestamp:  timestamp,
	}, EventFileAttached, metadata)
}

// CreateVersion freezes the claim's current mutable fields into an
// immutable version record.
func (a *Aggregate) CreateVersion(
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) (uuid.UUID, error) {
	if err := a.guardMutable(); err != nil {
		return uuid.Nil, err
	}
	versionID := uuid.New()
	if err := a.raise(&VersionCreated{
		VersionID: versionID,
		Timestamp: timestamp,
	}, EventVersionCreated, metadata); err != nil {
		return uuid.Nil, err
	}
	return versionID, nil
}

// AssociateWithPolicy links the claim to a policy. Re-association to a
// different policy is allowed; the event log carries the full history.
func (a *Aggregate) AssociateWithPolicy(
	policyID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&AssociatedWithPolicy{
		PolicyID:  policyID,
		Timestamp: timestamp,
	}, EventAssociatedWithPolicy, metadata)
}

// DisassociateFromPolicy unlinks the claim from its policy.
func (a *Aggregate) DisassociateFromPolicy(
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&DisassociatedFromPolicy{
		Timestamp: timestamp,
	}, EventDisassociatedFromPolicy, metadata)
}

// AssignToOwner assigns a handling user to the claim.
func (a *Aggregate) AssignToOwner(
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&AssignedToOwner{
		UserID:    userID,
		Timestamp: timestamp,
	}, EventAssignedToOwner, metadata)
}

// AssignToCustomer links the claim to a customer record.
func (a *Aggregate) AssignToCustomer(
	customerID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&AssignedToCustomer{
		CustomerID: customerID,
		Timestamp:  timestamp,
	}, EventAssignedToCustomer, metadata)
}

// TransferToAnotherOrganisation moves the claim to another organisation.
func (a *Aggregate) TransferToAnotherOrganisation(
	organisationID uuid.UUID,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if err := a.guardMutable(); err != nil {
		return err
	}
	return a.raise(&TransferredToOrganisation{
		OrganisationID: organisationID,
		PerformedBy:    userID,
		Timestamp:      timestamp,
	}, EventTransferredToOrganisation, metadata)
}

// MarkDeleted appends the permanent deletion marker. The event log itself
// is never destroyed; downstream projections honor the marker.
func (a *Aggregate) MarkDeleted(
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if a.deleted {
		return domain.Invalid(domain.CodeAggregateDeleted,
			"claim %s has already been deleted", a.ID())
	}
	return a.raise(&Deleted{
		PerformedBy: userID,
		Timestamp:   timestamp,
	}, EventDeleted, metadata)
}

func (a *Aggregate) guardMutable() error {
	if a.deleted {
		return domain.Invalid(domain.CodeAggregateDeleted,
			"claim %s has been deleted", a.ID())
	}
	return nil
}
