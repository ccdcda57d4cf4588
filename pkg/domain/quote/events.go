package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// AggregateType is the type tag quote aggregates persist under.
const AggregateType = "QuoteAggregate"

// Event type tags. The catalog is closed: every tag has exactly one payload
// type and exactly one applier arm in the aggregate's dispatch.
const (
	EventInitialized              = "quote.Initialized"
	EventFormDataUpdated          = "quote.FormDataUpdated"
	EventCustomerDetailsUpdated   = "quote.CustomerDetailsUpdated"
	EventCalculationRecorded      = "quote.CalculationResultRecorded"
	EventQuoteNumberAssigned      = "quote.QuoteNumberAssigned"
	EventSubmitted                = "quote.Submitted"
	EventDiscarded                = "quote.Discarded"
	EventPolicyIssued             = "quote.PolicyIssued"
	EventRenewalQuoteCreated      = "quote.RenewalQuoteCreated"
	EventAdjustmentQuoteCreated   = "quote.AdjustmentQuoteCreated"
	EventCancellationQuoteCreated = "quote.CancellationQuoteCreated"
	EventFormDataPatched          = "quote.FormDataPatched"
	EventDeleted                  = "quote.Deleted"
)

// Initialized starts a new aggregate with its first quote.
type Initialized struct {
	QuoteID    uuid.UUID `json:"quoteId"`
	QuoteType  Type      `json:"quoteType"`
	ProductID  string    `json:"productId"`
	IsTestData bool      `json:"isTestData,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// FormDataUpdated captures a new form data document for a quote.
type FormDataUpdated struct {
	QuoteID     uuid.UUID `json:"quoteId"`
	UpdateID    uuid.UUID `json:"updateId"`
	FormData    string    `json:"formData"`
	PerformedBy uuid.UUID `json:"performedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CustomerDetailsUpdated attaches or replaces the aggregate's customer.
type CustomerDetailsUpdated struct {
	Details   formdata.CustomerDetails `json:"details"`
	Timestamp time.Time                `json:"timestamp"`
}

// CalculationResultRecorded captures a rating engine output for a quote,
// along with the status the workflow resolved from its trigger flags.
type CalculationResultRecorded struct {
	QuoteID           uuid.UUID           `json:"quoteId"`
	UpdateID          uuid.UUID           `json:"updateId"`
	CalculationResult string              `json:"calculationResult"`
	Triggers          CalculationTriggers `json:"triggers"`
	ResultingStatus   Status              `json:"resultingStatus"`
	Timestamp         time.Time           `json:"timestamp"`
}

// QuoteNumberAssigned records the human-readable reference number.
type QuoteNumberAssigned struct {
	QuoteID     uuid.UUID `json:"quoteId"`
	QuoteNumber string    `json:"quoteNumber"`
	Timestamp   time.Time `json:"timestamp"`
}

// Submitted completes a quote.
type Submitted struct {
	QuoteID     uuid.UUID `json:"quoteId"`
	PerformedBy uuid.UUID `json:"performedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Discarded abandons a quote.
type Discarded struct {
	QuoteID   uuid.UUID `json:"quoteId"`
	Timestamp time.Time `json:"timestamp"`
}

// PolicyIssued creates the policy and its single new-business transaction,
// freezing a snapshot of the agreed data.
type PolicyIssued struct {
	QuoteID             uuid.UUID                  `json:"quoteId"`
	PolicyID            uuid.UUID                  `json:"policyId"`
	TransactionID       uuid.UUID                  `json:"transactionId"`
	PolicyNumber        string                     `json:"policyNumber"`
	CalculationResultID uuid.UUID                  `json:"calculationResultId"`
	TimeZone            string                     `json:"timeZone"`
	InceptionDate       time.Time                  `json:"inceptionDate"`
	ExpiryDate          time.Time                  `json:"expiryDate"`
	InceptionTime       time.Time                  `json:"inceptionTime"`
	ExpiryTime          time.Time                  `json:"expiryTime"`
	Snapshot            formdata.QuoteDataSnapshot `json:"snapshot"`
	PerformedBy         uuid.UUID                  `json:"performedBy,omitempty"`
	Timestamp           time.Time                  `json:"timestamp"`
}

// RenewalQuoteCreated opens a renewal quote seeded from the expiring term.
type RenewalQuoteCreated struct {
	QuoteID       uuid.UUID `json:"quoteId"`
	QuoteNumber   string    `json:"quoteNumber,omitempty"`
	FormDataID    uuid.UUID `json:"formDataId"`
	FormData      string    `json:"formData"`
	InceptionDate time.Time `json:"inceptionDate"`
	ExpiryDate    time.Time `json:"expiryDate"`
	IsTestData    bool      `json:"isTestData,omitempty"`
	PerformedBy   uuid.UUID `json:"performedBy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// AdjustmentQuoteCreated opens a mid-term adjustment quote seeded from the
// policy's current data.
type AdjustmentQuoteCreated struct {
	QuoteID       uuid.UUID `json:"quoteId"`
	QuoteNumber   string    `json:"quoteNumber,omitempty"`
	FormDataID    uuid.UUID `json:"formDataId"`
	FormData      string    `json:"formData"`
	EffectiveDate time.Time `json:"effectiveDate"`
	IsTestData    bool      `json:"isTestData,omitempty"`
	PerformedBy   uuid.UUID `json:"performedBy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// CancellationQuoteCreated opens a cancellation quote for the policy.
type CancellationQuoteCreated struct {
	QuoteID       uuid.UUID `json:"quoteId"`
	FormDataID    uuid.UUID `json:"formDataId"`
	FormData      string    `json:"formData"`
	EffectiveDate time.Time `json:"effectiveDate"`
	PerformedBy   uuid.UUID `json:"performedBy,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// FormDataPatched records a scoped data patch. The command plus the
// resolved target references re-apply the patch deterministically on
// replay, independent of how rule policies evaluated at command time.
type FormDataPatched struct {
	Command     patch.Command     `json:"command"`
	Targets     []patch.TargetRef `json:"targets"`
	PerformedBy uuid.UUID         `json:"performedBy,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Deleted is the permanent deletion marker. The event log itself is never
// destroyed; downstream projections honor the marker.
type Deleted struct {
	PerformedBy uuid.UUID `json:"performedBy,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func init() {
	eventsourcing.Register(EventInitialized, func() any { return &Initialized{} })
	eventsourcing.Register(EventFormDataUpdated, func() any { return &FormDataUpdated{} })
	eventsourcing.Register(EventCustomerDetailsUpdated, func() any { return &CustomerDetailsUpdated{} })
	eventsourcing.Register(EventCalculationRecorded, func() any { return &CalculationResultRecorded{} })
	eventsourcing.Register(EventQuoteNumberAssigned, func() any { return &QuoteNumberAssigned{} })
	eventsourcing.Register(EventSubmitted, func() any { return &Submitted{} })
	eventsourcing.Register(EventDiscarded, func() any { return &Discarded{} })
	eventsourcing.Register(EventPolicyIssued, func() any { return &PolicyIssued{} })
	eventsourcing.Register(EventRenewalQuoteCreated, func() any { return &RenewalQuoteCreated{} })
	eventsourcing.Register(EventAdjustmentQuoteCreated, func() any { return &AdjustmentQuoteCreated{} })
	eventsourcing.Register(EventCancellationQuoteCreated, func() any { return &CancellationQuoteCreated{} })
	eventsourcing.Register(EventFormDataPatched, func() any { return &FormDataPatched{} })
	eventsourcing.Register(EventDeleted, func() any { return &Deleted{} })
}
