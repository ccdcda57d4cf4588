package quote

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/locator"
)

// TransactionType classifies a policy transaction.
type TransactionType string

const (
	TransactionNewBusiness  TransactionType = "newBusiness"
	TransactionRenewal      TransactionType = "renewal"
	TransactionAdjustment   TransactionType = "adjustment"
	TransactionCancellation TransactionType = "cancellation"
)

// PolicyTransaction is one dated change to a policy, carrying a frozen
// snapshot of exactly the data the customer agreed to.
//
// Inception/expiry are stored both as instants and as the civil dates they
// were derived from, together with the IANA zone: insurance dates are
// civil-calendar dates localized to the insured's zone, not pure UTC
// instants.
type PolicyTransaction struct {
	ID      uuid.UUID
	QuoteID uuid.UUID
	Type    TransactionType

	EffectiveTime time.Time
	InceptionTime time.Time
	ExpiryTime    time.Time

	InceptionDate time.Time // civil date, midnight UTC carrier
	ExpiryDate    time.Time
	TimeZone      string // IANA zone name

	Snapshot formdata.QuoteDataSnapshot

	CreatedAt time.Time
}

// Policy owns the ordered set of transactions issued under one policy
// number. Exactly one NewBusiness transaction exists per policy.
type Policy struct {
	ID           uuid.UUID
	PolicyNumber string
	TimeZone     string
	IssuedAt     time.Time

	// Transactions are owned flat and keyed by id; ordering is derived
	// from effective time on demand.
	Transactions map[uuid.UUID]*PolicyTransaction
}

// OrderedTransactions returns the transactions sorted by effective time.
func (p *Policy) OrderedTransactions() []*PolicyTransaction {
	out := make([]*PolicyTransaction, 0, len(p.Transactions))
	for _, tx := range p.Transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EffectiveTime.Equal(out[j].EffectiveTime) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EffectiveTime.Before(out[j].EffectiveTime)
	})
	return out
}

// CurrentTransaction returns the most recent transaction not effective in
// the future of asOf, or nil when every transaction is future-dated.
func (p *Policy) CurrentTransaction(asOf time.Time) *PolicyTransaction {
	var current *PolicyTransaction
	for _, tx := range p.OrderedTransactions() {
		if tx.EffectiveTime.After(asOf) {
			break
		}
		current = tx
	}
	return current
}

// NewBusinessTransaction returns the policy's single new-business
// transaction.
func (p *Policy) NewBusinessTransaction() *PolicyTransaction {
	for _, tx := range p.Transactions {
		if tx.Type == TransactionNewBusiness {
			return tx
		}
	}
	return nil
}

// LatestTransaction returns the transaction with the latest effective time.
func (p *Policy) LatestTransaction() *PolicyTransaction {
	ordered := p.OrderedTransactions()
	if len(ordered) == 0 {
		return nil
	}
	return ordered[len(ordered)-1]
}

// TimeOfDayScheme converts a civil calendar date into the canonical moment
// a policy incepts or expires. Insurance convention has policies take
// effect at a fixed local clock time, not midnight UTC.
type TimeOfDayScheme interface {
	MomentOf(civilDate time.Time, loc *time.Location) time.Time
}

// FixedLocalTime incepts/expires policies at a fixed local clock time.
type FixedLocalTime struct {
	Hour   int
	Minute int
}

// MomentOf implements TimeOfDayScheme.
func (s FixedLocalTime) MomentOf(civilDate time.Time, loc *time.Location) time.Time {
	return time.Date(civilDate.Year(), civilDate.Month(), civilDate.Day(), s.Hour, s.Minute, 0, 0, loc)
}

// FourPMScheme is the conventional default: policies incept and expire at
// 4:00pm local time.
var FourPMScheme = FixedLocalTime{Hour: 16}

// ProductConfig is the per-product configuration consumed by aggregate
// operations.
type ProductConfig struct {
	ProductID string

	// TermMonths is the standard policy term, used to default expiry
	// dates.
	TermMonths int

	// TimeZone is the IANA zone name the insured's civil dates live in.
	TimeZone string

	// LocatorRules is the product's data locator rule set; nil means the
	// hardcoded defaults apply.
	LocatorRules locator.RuleSet
}

// Location resolves the product's time zone.
func (c ProductConfig) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid product time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Term returns the policy term in months, defaulting to 12.
func (c ProductConfig) Term() int {
	if c.TermMonths <= 0 {
		return 12
	}
	return c.TermMonths
}
