package quote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/sjson"

	"github.com/plaenen/policyadmin/pkg/domain"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// PastClaimsKey is the well-known form model key downstream rating and
// document templates read prior claims from.
const PastClaimsKey = "pastClaims"

// pastClaimDateFormat renders claim dates the way document templates
// expect: "2 Jan 2006".
const pastClaimDateFormat = "2 Jan 2006"

// PastClaim is the read model of a prior claim injected into renewal and
// adjustment quotes.
type PastClaim struct {
	DateOfClaim       time.Time
	ClaimNumber       string
	DetailsOfLoss     string
	TotalClaimInsurer decimal.Decimal
	Status            string
}

// pastClaimEntry is the serialized shape of one prior claim in the form
// model. Amounts are plain decimals, not strings.
type pastClaimEntry struct {
	DateOfClaim       string      `json:"dateOfClaim"`
	ClaimNumber       string      `json:"claimNumber"`
	DetailsOfLoss     string      `json:"detailsOfLoss"`
	TotalClaimInsurer json.Number `json:"totalClaimInsurer"`
	ClaimStatus       string      `json:"claimStatus"`
}

// injectPastClaims writes the claims history into the form model under the
// well-known array key, preserving input order. The array is assembled as
// typed entries and serialized once.
func injectPastClaims(formRaw string, claims []PastClaim) (string, error) {
	if formRaw == "" {
		formRaw = "{}"
	}
	entries := make([]pastClaimEntry, 0, len(claims))
	for _, c := range claims {
		entries = append(entries, pastClaimEntry{
			DateOfClaim:       c.DateOfClaim.Format(pastClaimDateFormat),
			ClaimNumber:       c.ClaimNumber,
			DetailsOfLoss:     c.DetailsOfLoss,
			TotalClaimInsurer: json.Number(c.TotalClaimInsurer.String()),
			ClaimStatus:       c.Status,
		})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to serialize past claims: %w", err)
	}
	updated, err := sjson.SetRaw(formRaw, PastClaimsKey, string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to inject past claims: %w", err)
	}
	return updated, nil
}

// civilDateLayout renders civil dates in the form model.
const civilDateLayout = "2006-01-02"

// CreateRenewalQuote opens a renewal quote for the issued policy. The new
// term abuts the old one: inception is the prior transaction's expiry date
// (not "today"), and the default new expiry preserves the original term
// length by extending the prior inception by twice the product term.
func (a *Aggregate) CreateRenewalQuote(
	pastClaims []PastClaim,
	timestamp time.Time,
	quoteNumber string,
	userID uuid.UUID,
	cfg ProductConfig,
	isTestData bool,
	metadata eventsourcing.EventMetadata,
) (uuid.UUID, error) {
	base, err := a.transactionForSuccessor()
	if err != nil {
		return uuid.Nil, err
	}

	inception := base.ExpiryDate
	expiry := base.InceptionDate.AddDate(0, 2*cfg.Term(), 0)

	form, err := a.seedSuccessorFormData(base, pastClaims, inception, expiry)
	if err != nil {
		return uuid.Nil, err
	}

	quoteID := uuid.New()
	event := &RenewalQuoteCreated{
		QuoteID:       quoteID,
		QuoteNumber:   quoteNumber,
		FormDataID:    uuid.New(),
		FormData:      form,
		InceptionDate: inception,
		ExpiryDate:    expiry,
		IsTestData:    isTestData,
		PerformedBy:   userID,
		Timestamp:     timestamp,
	}
	if err := a.raise(event, EventRenewalQuoteCreated, metadata); err != nil {
		return uuid.Nil, err
	}
	return quoteID, nil
}

// CreateAdjustmentQuote opens a mid-term adjustment quote. It starts from
// the policy's current form data rather than re-deriving dates.
func (a *Aggregate) CreateAdjustmentQuote(
	pastClaims []PastClaim,
	effectiveDate time.Time,
	timestamp time.Time,
	quoteNumber string,
	userID uuid.UUID,
	isTestData bool,
	metadata eventsourcing.EventMetadata,
) (uuid.UUID, error) {
	current, err := a.currentTransaction(timestamp)
	if err != nil {
		return uuid.Nil, err
	}

	form := snapshotFormRaw(current)
	form, err = injectPastClaims(form, pastClaims)
	if err != nil {
		return uuid.Nil, err
	}

	quoteID := uuid.New()
	event := &AdjustmentQuoteCreated{
		QuoteID:       quoteID,
		QuoteNumber:   quoteNumber,
		FormDataID:    uuid.New(),
		FormData:      form,
		EffectiveDate: effectiveDate,
		IsTestData:    isTestData,
		PerformedBy:   userID,
		Timestamp:     timestamp,
	}
	if err := a.raise(event, EventAdjustmentQuoteCreated, metadata); err != nil {
		return uuid.Nil, err
	}
	return quoteID, nil
}

// CreateCancellationQuote opens a cancellation quote effective on the given
// date, seeded from the policy's current form data.
func (a *Aggregate) CreateCancellationQuote(
	effectiveDate time.Time,
	timestamp time.Time,
	userID uuid.UUID,
	metadata eventsourcing.EventMetadata,
) (uuid.UUID, error) {
	current, err := a.currentTransaction(timestamp)
	if err != nil {
		return uuid.Nil, err
	}

	quoteID := uuid.New()
	event := &CancellationQuoteCreated{
		QuoteID:       quoteID,
		FormDataID:    uuid.New(),
		FormData:      snapshotFormRaw(current),
		EffectiveDate: effectiveDate,
		PerformedBy:   userID,
		Timestamp:     timestamp,
	}
	if err := a.raise(event, EventCancellationQuoteCreated, metadata); err != nil {
		return uuid.Nil, err
	}
	return quoteID, nil
}

// seedSuccessorFormData builds the opening form document of a renewal
// quote: the prior term's agreed form data with the new term dates written
// in and the claims history injected under the well-known key.
func (a *Aggregate) seedSuccessorFormData(base *PolicyTransaction, pastClaims []PastClaim, inception, expiry time.Time) (string, error) {
	form := snapshotFormRaw(base)
	if form == "" {
		form = "{}"
	}
	form, err := sjson.Set(form, "policyStartDate", inception.Format(civilDateLayout))
	if err != nil {
		return "", fmt.Errorf("failed to seed renewal start date: %w", err)
	}
	form, err = sjson.Set(form, "policyEndDate", expiry.Format(civilDateLayout))
	if err != nil {
		return "", fmt.Errorf("failed to seed renewal end date: %w", err)
	}
	return injectPastClaims(form, pastClaims)
}

func snapshotFormRaw(tx *PolicyTransaction) string {
	if tx.Snapshot.FormData == nil || tx.Snapshot.FormData.Data == nil {
		return ""
	}
	return tx.Snapshot.FormData.Data.Raw()
}

// transactionForSuccessor returns the transaction a renewal extends:
// the latest one by effective time. Renewal requires an issued policy.
func (a *Aggregate) transactionForSuccessor() (*PolicyTransaction, error) {
	if a.deleted {
		return nil, domain.Invalid(domain.CodeAggregateDeleted, "aggregate %s has been deleted", a.ID())
	}
	if a.policy == nil {
		return nil, domain.Invalid(domain.CodePolicyNotIssued,
			"a renewal requires an issued policy")
	}
	tx := a.policy.LatestTransaction()
	if tx == nil {
		return nil, domain.Invalid(domain.CodePolicyNotIssued,
			"the policy has no transactions to renew")
	}
	return tx, nil
}

// currentTransaction returns the policy's current (non-future-dated)
// transaction as of the given time.
func (a *Aggregate) currentTransaction(asOf time.Time) (*PolicyTransaction, error) {
	if a.deleted {
		return nil, domain.Invalid(domain.CodeAggregateDeleted, "aggregate %s has been deleted", a.ID())
	}
	if a.policy == nil {
		return nil, domain.Invalid(domain.CodePolicyNotIssued,
			"this operation requires an issued policy")
	}
	tx := a.policy.CurrentTransaction(asOf)
	if tx == nil {
		// Every transaction is future-dated; fall back to new business.
		tx = a.policy.NewBusinessTransaction()
	}
	if tx == nil {
		return nil, domain.Invalid(domain.CodePolicyNotIssued,
			"the policy has no effective transaction")
	}
	return tx, nil
}
