package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain"
	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/locator"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// UpdateFormData records a new form data document for a quote. Rejected on
// completed quotes and on quotes whose policy transaction is already bound.
func (a *Aggregate) UpdateFormData(
	quoteID uuid.UUID,
	formData string,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if q.Submitted {
		return domain.Invalid(domain.CodeOperationOnSubmittedQuote,
			"cannot update form data on quote %s after submission", quoteID)
	}
	if q.IsBound() {
		return domain.Invalid(domain.CodeOperationOnIssuedPolicy,
			"cannot update form data on quote %s: its policy transaction is bound", quoteID)
	}

	return a.raise(&FormDataUpdated{
		QuoteID:     quoteID,
		UpdateID:    uuid.New(),
		FormData:    formData,
		PerformedBy: userID,
		Timestamp:   timestamp,
	}, EventFormDataUpdated, metadata)
}

// UpdateCustomerDetails attaches or replaces the aggregate's customer.
func (a *Aggregate) UpdateCustomerDetails(
	details formdata.CustomerDetails,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if a.deleted {
		return domain.Invalid(domain.CodeAggregateDeleted, "aggregate %s has been deleted", a.ID())
	}
	return a.raise(&CustomerDetailsUpdated{
		Details:   details,
		Timestamp: timestamp,
	}, EventCustomerDetailsUpdated, metadata)
}

// RecordCalculationResult captures a rating output for a quote and moves
// the quote to the status the workflow resolves from the calculation's
// trigger flags. allowOnSubmittedQuote exists for operations (such as
// refunds) that legitimately re-rate a completed quote.
func (a *Aggregate) RecordCalculationResult(
	quoteID uuid.UUID,
	calculationResult string,
	triggers CalculationTriggers,
	workflow Workflow,
	allowOnSubmittedQuote bool,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if q.Submitted && !allowOnSubmittedQuote {
		return domain.Invalid(domain.CodeOperationOnSubmittedQuote,
			"cannot record a calculation result on submitted quote %s", quoteID)
	}
	if q.IsBound() {
		return domain.Invalid(domain.CodeOperationOnIssuedPolicy,
			"cannot record a calculation result on quote %s: policy already issued", quoteID)
	}

	resulting := workflow.StatusAfterCalculation(q.Status, triggers)

	return a.raise(&CalculationResultRecorded{
		QuoteID:           quoteID,
		UpdateID:          uuid.New(),
		CalculationResult: calculationResult,
		Triggers:          triggers,
		ResultingStatus:   resulting,
		Timestamp:         timestamp,
	}, EventCalculationRecorded, metadata)
}

// AssignQuoteNumber stamps the quote with a reference number from the
// injected generator.
func (a *Aggregate) AssignQuoteNumber(
	quoteID uuid.UUID,
	generator NumberGenerator,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if q.QuoteNumber != "" {
		return nil // Already assigned; assignment is stable.
	}
	number, err := generator.Next()
	if err != nil {
		return err
	}
	return a.raise(&QuoteNumberAssigned{
		QuoteID:     quoteID,
		QuoteNumber: number,
		Timestamp:   timestamp,
	}, EventQuoteNumberAssigned, metadata)
}

// Submit completes a quote. A quote cannot be submitted without form data
// and cannot be submitted twice.
func (a *Aggregate) Submit(
	quoteID uuid.UUID,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if !q.HasFormData() {
		return domain.Invalid(domain.CodeQuoteRequiresFormData,
			"quote %s cannot be submitted before any form data is captured", quoteID)
	}
	if q.Submitted {
		return domain.Conflict(domain.CodeQuoteAlreadySubmitted,
			"quote %s has already been submitted", quoteID)
	}

	return a.raise(&Submitted{
		QuoteID:     quoteID,
		PerformedBy: userID,
		Timestamp:   timestamp,
	}, EventSubmitted, metadata)
}

// Discard abandons a quote. Bound quotes cannot be discarded.
func (a *Aggregate) Discard(
	quoteID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if q.IsBound() {
		return domain.Invalid(domain.CodeOperationOnIssuedPolicy,
			"cannot discard quote %s: policy already issued", quoteID)
	}
	return a.raise(&Discarded{
		QuoteID:   quoteID,
		Timestamp: timestamp,
	}, EventDiscarded, metadata)
}

// IssuePolicy issues the policy from a new-business quote: it validates the
// quote is fully prepared (calculation, customer, quote number), computes
// inception/expiry instants by applying the time-of-day scheme to the civil
// dates in the insured's zone, and freezes a data snapshot of exactly what
// the customer agreed to.
func (a *Aggregate) IssuePolicy(
	quoteID uuid.UUID,
	calculationResultID uuid.UUID,
	policyNumbers NumberGenerator,
	cfg ProductConfig,
	scheme TimeOfDayScheme,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	q, err := a.mutableQuote(quoteID)
	if err != nil {
		return err
	}
	if q.Type != TypeNewBusiness {
		return domain.Invalid(domain.CodeQuoteTypeInvalidForAction,
			"policy issuance is only valid on a new business quote, not %s", q.Type)
	}
	if a.policy != nil {
		return domain.Conflict(domain.CodePolicyAlreadyIssued,
			"a policy has already been issued from this aggregate")
	}
	if q.CalculationResult == nil || q.CalculationResult.ID != calculationResultID {
		return domain.Invalid(domain.CodeCalculationResultRequired,
			"quote %s has no calculation result %s to bind", quoteID, calculationResultID)
	}
	if a.customer == nil {
		return domain.Invalid(domain.CodeCustomerDetailsRequired,
			"quote %s has no customer details", quoteID)
	}
	if q.QuoteNumber == "" {
		return domain.Invalid(domain.CodeQuoteNumberRequired,
			"quote %s has no quote number assigned", quoteID)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	inceptionDate, expiryDate := a.policyDates(q, cfg, timestamp, loc)
	policyNumber, err := policyNumbers.Next()
	if err != nil {
		return err
	}

	snapshot := formdata.QuoteDataSnapshot{
		FormData:          q.FormData,
		CalculationResult: q.CalculationResult,
		CustomerDetails:   a.customer,
	}

	return a.raise(&PolicyIssued{
		QuoteID:             quoteID,
		PolicyID:            uuid.New(),
		TransactionID:       uuid.New(),
		PolicyNumber:        policyNumber,
		CalculationResultID: calculationResultID,
		TimeZone:            cfg.TimeZone,
		InceptionDate:       inceptionDate,
		ExpiryDate:          expiryDate,
		InceptionTime:       scheme.MomentOf(inceptionDate, loc),
		ExpiryTime:          scheme.MomentOf(expiryDate, loc),
		Snapshot:            snapshot,
		PerformedBy:         userID,
		Timestamp:           timestamp,
	}, EventPolicyIssued, metadata)
}

// policyDates resolves the civil inception/expiry dates from the quote's
// documents via the product's locator rules, defaulting to the issuance
// day and the standard term.
func (a *Aggregate) policyDates(q *Quote, cfg ProductConfig, timestamp time.Time, loc *time.Location) (time.Time, time.Time) {
	var form, calc *formdata.Wrapper
	if q.FormData != nil {
		form = q.FormData.Data
	}
	if q.CalculationResult != nil {
		calc = q.CalculationResult.Data
	}
	r := locator.NewRetriever(form, calc, cfg.LocatorRules)

	inception, ok := r.Date(locator.FieldInceptionDate)
	if !ok {
		local := timestamp.In(loc)
		inception = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	}
	expiry, ok := r.Date(locator.FieldExpiryDate)
	if !ok {
		expiry = inception.AddDate(0, cfg.Term(), 0)
	}
	return inception, expiry
}

// MarkDeleted appends the permanent deletion marker. The event log itself
// is never destroyed; downstream projections honor the marker.
func (a *Aggregate) MarkDeleted(
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) error {
	if a.deleted {
		return domain.Invalid(domain.CodeAggregateDeleted, "aggregate %s has already been deleted", a.ID())
	}
	return a.raise(&Deleted{
		PerformedBy: userID,
		Timestamp:   timestamp,
	}, EventDeleted, metadata)
}

// mutableQuote fetches a quote, rejecting operations on deleted aggregates
// and unknown or discarded quotes.
func (a *Aggregate) mutableQuote(quoteID uuid.UUID) (*Quote, error) {
	if a.deleted {
		return nil, domain.Invalid(domain.CodeAggregateDeleted, "aggregate %s has been deleted", a.ID())
	}
	q, ok := a.quotes[quoteID]
	if !ok {
		return nil, domain.NotFound(domain.CodeQuoteNotFound, "quote %s does not exist in aggregate %s", quoteID, a.ID())
	}
	if q.Status == StatusDiscarded {
		return nil, domain.Invalid(domain.CodeQuoteDiscarded, "quote %s has been discarded", quoteID)
	}
	return q, nil
}
