package quote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/locator"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// Aggregate is the event-sourced root owning quotes, the issued policy and
// its transactions. Entities are owned flat and keyed by id; references
// between them are id lookups into the aggregate's maps, never live
// pointers, so the object graph serializes without cycles.
type Aggregate struct {
	eventsourcing.AggregateRoot

	productID  string
	isTestData bool

	quotes     map[uuid.UUID]*Quote
	quoteOrder []uuid.UUID

	policy   *Policy
	customer *formdata.CustomerDetails
	deleted  bool
}

// New creates an empty aggregate ready for event replay.
func New(id string) *Aggregate {
	return &Aggregate{
		AggregateRoot: eventsourcing.NewAggregateRoot(id, AggregateType),
		quotes:        make(map[uuid.UUID]*Quote),
	}
}

// CreateNewBusinessQuote is the factory for a brand new aggregate: it
// synthesizes and applies the Initialized event holding the first quote.
func CreateNewBusinessQuote(
	aggregateID string,
	quoteID uuid.UUID,
	productID string,
	isTestData bool,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) (*Aggregate, error) {
	a := New(aggregateID)
	payload := &Initialized{
		QuoteID:    quoteID,
		QuoteType:  TypeNewBusiness,
		ProductID:  productID,
		IsTestData: isTestData,
		Timestamp:  timestamp,
	}
	if err := a.raise(payload, EventInitialized, metadata); err != nil {
		return nil, err
	}
	return a, nil
}

// Quote returns a quote by id.
func (a *Aggregate) Quote(id uuid.UUID) (*Quote, bool) {
	q, ok := a.quotes[id]
	return q, ok
}

// Quotes returns the aggregate's quotes in creation order.
func (a *Aggregate) Quotes() []*Quote {
	out := make([]*Quote, 0, len(a.quoteOrder))
	for _, id := range a.quoteOrder {
		out = append(out, a.quotes[id])
	}
	return out
}

// Policy returns the issued policy, or nil before issuance.
func (a *Aggregate) Policy() *Policy {
	return a.policy
}

// CustomerDetails returns the attached customer, or nil.
func (a *Aggregate) CustomerDetails() *formdata.CustomerDetails {
	return a.customer
}

// IsDeleted reports whether the deletion marker has been applied.
func (a *Aggregate) IsDeleted() bool {
	return a.deleted
}

// ProductID returns the product this aggregate was quoted under.
func (a *Aggregate) ProductID() string {
	return a.productID
}

// raise mutates state through the applier and records the event envelope.
// Every new event goes through here so that command-time state and
// replayed state are produced by the same code path.
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

// apply dispatches an event payload to its handler. The event catalog is a
// closed set: an unhandled type is a programming error, not data.
func (a *Aggregate) apply(payload any) error {
	switch e := payload.(type) {
	case *Initialized:
		a.applyInitialized(e)
	case *FormDataUpdated:
		return a.applyFormDataUpdated(e)
	case *CustomerDetailsUpdated:
		a.applyCustomerDetailsUpdated(e)
	case *CalculationResultRecorded:
		return a.applyCalculationResultRecorded(e)
	case *QuoteNumberAssigned:
		return a.applyQuoteNumberAssigned(e)
	case *Submitted:
		return a.applySubmitted(e)
	case *Discarded:
		return a.applyDiscarded(e)
	case *PolicyIssued:
		return a.applyPolicyIssued(e)
	case *RenewalQuoteCreated:
		a.applyRenewalQuoteCreated(e)
	case *AdjustmentQuoteCreated:
		a.applyAdjustmentQuoteCreated(e)
	case *CancellationQuoteCreated:
		a.applyCancellationQuoteCreated(e)
	case *FormDataPatched:
		return a.applyFormDataPatched(e)
	case *Deleted:
		a.deleted = true
	default:
		return fmt.Errorf("%w: %T", eventsourcing.ErrUnknownEventType, payload)
	}
	return nil
}

func (a *Aggregate) addQuote(q *Quote) {
	a.quotes[q.ID] = q
	a.quoteOrder = append(a.quoteOrder, q.ID)
}

func (a *Aggregate) applyInitialized(e *Initialized) {
	a.productID = e.ProductID
	a.isTestData = e.IsTestData
	a.addQuote(&Quote{
		ID:         e.QuoteID,
		Type:       e.QuoteType,
		Status:     StatusNascent,
		IsTestData: e.IsTestData,
		CreatedAt:  e.Timestamp,
	})
}

func (a *Aggregate) applyFormDataUpdated(e *FormDataUpdated) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("form data update for unknown quote %s", e.QuoteID)
	}
	q.FormData = formdata.NewDataUpdate(e.UpdateID, e.FormData, e.Timestamp)
	if q.Status == StatusNascent {
		q.Status = StatusIncomplete
	}
	return nil
}

func (a *Aggregate) applyCustomerDetailsUpdated(e *CustomerDetailsUpdated) {
	details := e.Details
	a.customer = &details
}

func (a *Aggregate) applyCalculationResultRecorded(e *CalculationResultRecorded) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("calculation result for unknown quote %s", e.QuoteID)
	}
	q.CalculationResult = formdata.NewDataUpdate(e.UpdateID, e.CalculationResult, e.Timestamp)
	q.Status = e.ResultingStatus
	a.resyncDerivedFormFields(q)
	return nil
}

// resyncDerivedFormFields mirrors calculation outputs that the form model
// also carries, so downstream templates read a consistent document. The
// mirror is derived purely from event payloads and is therefore
// replay-deterministic.
func (a *Aggregate) resyncDerivedFormFields(q *Quote) {
	if q.FormData == nil || q.CalculationResult == nil {
		return
	}
	r := locator.NewRetriever(nil, q.CalculationResult.Data, nil)
	amount, ok := r.Decimal(locator.FieldClaimAmount)
	if !ok {
		return
	}
	updated, err := sjson.Set(q.FormData.Data.Raw(), "claimAmount", amount.String())
	if err != nil {
		return
	}
	q.FormData = q.FormData.WithData(updated)
}

func (a *Aggregate) applyQuoteNumberAssigned(e *QuoteNumberAssigned) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("quote number for unknown quote %s", e.QuoteID)
	}
	q.QuoteNumber = e.QuoteNumber
	return nil
}

func (a *Aggregate) applySubmitted(e *Submitted) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("submission for unknown quote %s", e.QuoteID)
	}
	q.Submitted = true
	q.Status = StatusComplete
	return nil
}

func (a *Aggregate) applyDiscarded(e *Discarded) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("discard for unknown quote %s", e.QuoteID)
	}
	q.Status = StatusDiscarded
	return nil
}

func (a *Aggregate) applyPolicyIssued(e *PolicyIssued) error {
	q, ok := a.quotes[e.QuoteID]
	if !ok {
		return fmt.Errorf("policy issued for unknown quote %s", e.QuoteID)
	}

	if a.policy == nil {
		a.policy = &Policy{
			ID:           e.PolicyID,
			PolicyNumber: e.PolicyNumber,
			TimeZone:     e.TimeZone,
			IssuedAt:     e.Timestamp,
			Transactions: make(map[uuid.UUID]*PolicyTransaction),
		}
	}

	a.policy.Transactions[e.TransactionID] = &PolicyTransaction{
		ID:            e.TransactionID,
		QuoteID:       e.QuoteID,
		Type:          TransactionNewBusiness,
		EffectiveTime: e.InceptionTime,
		InceptionTime: e.InceptionTime,
		ExpiryTime:    e.ExpiryTime,
		InceptionDate: e.InceptionDate,
		ExpiryDate:    e.ExpiryDate,
		TimeZone:      e.TimeZone,
		Snapshot:      e.Snapshot,
		CreatedAt:     e.Timestamp,
	}
	q.PolicyTransactionID = e.TransactionID
	return nil
}

func (a *Aggregate) applyRenewalQuoteCreated(e *RenewalQuoteCreated) {
	a.addQuote(&Quote{
		ID:            e.QuoteID,
		Type:          TypeRenewal,
		Status:        StatusIncomplete,
		QuoteNumber:   e.QuoteNumber,
		FormData:      formdata.NewDataUpdate(e.FormDataID, e.FormData, e.Timestamp),
		InceptionDate: e.InceptionDate,
		ExpiryDate:    e.ExpiryDate,
		IsTestData:    e.IsTestData,
		CreatedAt:     e.Timestamp,
	})
}

func (a *Aggregate) applyAdjustmentQuoteCreated(e *AdjustmentQuoteCreated) {
	a.addQuote(&Quote{
		ID:            e.QuoteID,
		Type:          TypeAdjustment,
		Status:        StatusIncomplete,
		QuoteNumber:   e.QuoteNumber,
		FormData:      formdata.NewDataUpdate(e.FormDataID, e.FormData, e.Timestamp),
		InceptionDate: e.EffectiveDate,
		IsTestData:    e.IsTestData,
		CreatedAt:     e.Timestamp,
	})
}

func (a *Aggregate) applyCancellationQuoteCreated(e *CancellationQuoteCreated) {
	a.addQuote(&Quote{
		ID:            e.QuoteID,
		Type:          TypeCancellation,
		Status:        StatusIncomplete,
		FormData:      formdata.NewDataUpdate(e.FormDataID, e.FormData, e.Timestamp),
		InceptionDate: e.EffectiveDate,
		CreatedAt:     e.Timestamp,
	})
}

func (a *Aggregate) applyFormDataPatched(e *FormDataPatched) error {
	applied, res := patch.ApplyToRefs(e.Command, a, e.Targets)
	if !res.Succeeded {
		return fmt.Errorf("failed to re-apply patch: %s", res.Message)
	}
	a.storePatchedTargets(applied)
	return nil
}

// storePatchedTargets writes the replacement data updates produced by the
// patch engine back into the owning entities.
func (a *Aggregate) storePatchedTargets(targets []*patch.Target) {
	for _, t := range targets {
		switch t.Kind {
		case patch.TargetQuote:
			if q, ok := a.quotes[t.OwnerID]; ok {
				q.FormData = t.FormData
				q.CalculationResult = t.CalculationResult
			}
		case patch.TargetPolicyTransaction:
			if a.policy == nil {
				continue
			}
			if tx, ok := a.policy.Transactions[t.OwnerID]; ok {
				tx.Snapshot.FormData = t.FormData
				tx.Snapshot.CalculationResult = t.CalculationResult
			}
		}
	}
}

// GlobalTargets implements patch.TargetSource.
func (a *Aggregate) GlobalTargets() []*patch.Target {
	var targets []*patch.Target
	for _, id := range a.quoteOrder {
		q := a.quotes[id]
		if q.FormData == nil && q.CalculationResult == nil {
			continue
		}
		targets = append(targets, a.quotePatchTarget(q))
	}
	if a.policy != nil {
		for _, tx := range a.policy.OrderedTransactions() {
			targets = append(targets, transactionPatchTarget(tx))
		}
	}
	return targets
}

// QuoteTarget implements patch.TargetSource.
func (a *Aggregate) QuoteTarget(quoteID uuid.UUID) (*patch.Target, bool) {
	q, ok := a.quotes[quoteID]
	if !ok {
		return nil, false
	}
	return a.quotePatchTarget(q), true
}

// PolicyTransactionTarget implements patch.TargetSource.
func (a *Aggregate) PolicyTransactionTarget(transactionID uuid.UUID) (*patch.Target, bool) {
	if a.policy == nil {
		return nil, false
	}
	tx, ok := a.policy.Transactions[transactionID]
	if !ok {
		return nil, false
	}
	return transactionPatchTarget(tx), true
}

func (a *Aggregate) quotePatchTarget(q *Quote) *patch.Target {
	return &patch.Target{
		Kind:              patch.TargetQuote,
		OwnerID:           q.ID,
		FormData:          q.FormData,
		CalculationResult: q.CalculationResult,
		Bound:             q.IsBound(),
	}
}

func transactionPatchTarget(tx *PolicyTransaction) *patch.Target {
	return &patch.Target{
		Kind:              patch.TargetPolicyTransaction,
		OwnerID:           tx.ID,
		FormData:          tx.Snapshot.FormData,
		CalculationResult: tx.Snapshot.CalculationResult,
		Bound:             true,
	}
}

// aggregateSnapshot is the serialized form of the aggregate used by the
// snapshot store to skip full replay on long-lived aggregates.
type aggregateSnapshot struct {
	ID         string                    `json:"id"`
	Version    int64                     `json:"version"`
	ProductID  string                    `json:"productId"`
	IsTestData bool                      `json:"isTestData,omitempty"`
	Quotes     []*Quote                  `json:"quotes"`
	QuoteOrder []uuid.UUID               `json:"quoteOrder"`
	Policy     *Policy                   `json:"policy,omitempty"`
	Customer   *formdata.CustomerDetails `json:"customer,omitempty"`
	Deleted    bool                      `json:"deleted,omitempty"`
}

// MarshalSnapshot implements eventsourcing.Snapshotter.
func (a *Aggregate) MarshalSnapshot() ([]byte, error) {
	snap := aggregateSnapshot{
		ID:         a.ID(),
		Version:    a.Version(),
		ProductID:  a.productID,
		IsTestData: a.isTestData,
		Quotes:     a.Quotes(),
		QuoteOrder: a.quoteOrder,
		Policy:     a.policy,
		Customer:   a.customer,
		Deleted:    a.deleted,
	}
	return json.Marshal(snap)
}

// UnmarshalSnapshot implements eventsourcing.Snapshotter.
func (a *Aggregate) UnmarshalSnapshot(data []byte) error {
	var snap aggregateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to restore quote aggregate snapshot: %w", err)
	}
	a.Restore(snap.ID, AggregateType, snap.Version)
	a.productID = snap.ProductID
	a.isTestData = snap.IsTestData
	a.quotes = make(map[uuid.UUID]*Quote, len(snap.Quotes))
	for _, q := range snap.Quotes {
		a.quotes[q.ID] = q
	}
	a.quoteOrder = snap.QuoteOrder
	a.policy = snap.Policy
	a.customer = snap.Customer
	a.deleted = snap.Deleted
	return nil
}
