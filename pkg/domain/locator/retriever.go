package locator

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/shopspring/decimal"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
)

// State is a jurisdiction code. The set is closed; values outside it are
// rejected at parse time.
type State string

const (
	StateNSW State = "NSW"
	StateVIC State = "VIC"
	StateQLD State = "QLD"
	StateSA  State = "SA"
	StateWA  State = "WA"
	StateTAS State = "TAS"
	StateNT  State = "NT"
	StateACT State = "ACT"
)

// ParseState parses a jurisdiction code, case-insensitively.
func ParseState(s string) (State, bool) {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case StateNSW:
		return StateNSW, true
	case StateVIC:
		return StateVIC, true
	case StateQLD:
		return StateQLD, true
	case StateSA:
		return StateSA, true
	case StateWA:
		return StateWA, true
	case StateTAS:
		return StateTAS, true
	case StateNT:
		return StateNT, true
	case StateACT:
		return StateACT, true
	}
	return "", false
}

// Address is the composite resolved for the address field group.
type Address struct {
	Line1    string
	Suburb   string
	State    State
	Postcode string
}

// dateFormats are the layouts tolerated when parsing civil dates out of
// form documents, tried in order.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Retriever resolves typed business values from one (form data,
// calculation result) document pair using a product rule set.
//
// Absence is never an error: every getter returns ok=false when no
// candidate resolves, and the caller decides whether that is fatal.
type Retriever struct {
	form     *formdata.Wrapper
	calc     *formdata.Wrapper
	rules    RuleSet
	defaults RuleSet
}

// NewRetriever creates a retriever over the given documents. rules may be
// nil, in which case only the hardcoded defaults apply. Either document may
// be nil; candidates against a nil document simply fail to resolve.
func NewRetriever(form, calc *formdata.Wrapper, rules RuleSet) *Retriever {
	return &Retriever{form: form, calc: calc, rules: rules, defaults: DefaultRules()}
}

// String resolves the first candidate yielding a non-empty string.
func (r *Retriever) String(field Field) (string, bool) {
	return resolve(r, field, func(raw string) (string, bool) {
		if field == FieldCustomerEmail && !govalidator.IsEmail(raw) {
			return "", false
		}
		return raw, true
	})
}

// Decimal resolves the first candidate that parses as a decimal.
// Candidates that fail to parse are skipped, not fatal.
func (r *Retriever) Decimal(field Field) (decimal.Decimal, bool) {
	return resolve(r, field, func(raw string) (decimal.Decimal, bool) {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	})
}

// Date resolves the first candidate that parses as a civil date. The time
// portion and zone of any timestamp candidate are discarded; insurance
// dates are calendar dates localized later by a time-of-day scheme.
func (r *Retriever) Date(field Field) (time.Time, bool) {
	return resolve(r, field, parseDate)
}

// Bool resolves the first candidate that parses as a boolean.
func (r *Retriever) Bool(field Field) (bool, bool) {
	return resolve(r, field, func(raw string) (bool, bool) {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
		return false, false
	})
}

// Address resolves the four address sub-fields independently and succeeds
// only if the minimum required subset (all four) is present. The state is
// parsed against the closed jurisdiction set.
func (r *Retriever) Address() (Address, bool) {
	line1, ok := r.String(FieldAddressLine1)
	if !ok {
		return Address{}, false
	}
	suburb, ok := r.String(FieldAddressSuburb)
	if !ok {
		return Address{}, false
	}
	stateRaw, ok := r.String(FieldAddressState)
	if !ok {
		return Address{}, false
	}
	state, ok := ParseState(stateRaw)
	if !ok {
		return Address{}, false
	}
	postcode, ok := r.String(FieldAddressPostcode)
	if !ok {
		return Address{}, false
	}
	return Address{Line1: line1, Suburb: suburb, State: state, Postcode: postcode}, true
}

// resolve walks the configured candidates for a field in priority order and
// falls back to the hardcoded defaults when the field is unconfigured or
// every configured candidate fails.
func resolve[T any](r *Retriever, field Field, convert func(string) (T, bool)) (T, bool) {
	if rules, ok := r.rules[field]; ok {
		if v, ok := tryCandidates(r, rules, convert); ok {
			return v, true
		}
	}
	return tryCandidates(r, r.defaults[field], convert)
}

func tryCandidates[T any](r *Retriever, rules []Rule, convert func(string) (T, bool)) (T, bool) {
	for _, rule := range rules {
		doc := r.source(rule.Source)
		if doc == nil {
			continue
		}
		raw, ok := doc.Value(rule.Path)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if v, ok := convert(raw); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (r *Retriever) source(s Source) *formdata.Wrapper {
	switch s {
	case SourceFormData:
		return r.form
	case SourceCalculationResult:
		return r.calc
	}
	return nil
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
