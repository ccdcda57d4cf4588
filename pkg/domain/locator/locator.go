// Package locator resolves well-known business fields from the
// loosely-structured form data and calculation result documents attached to
// a quote or claim. Products declare where each field lives as a
// prioritized list of {source, path} candidates; resolution is
// first-match-wins with a hardcoded fallback for older product
// configurations that predate configurable locators.
package locator

// Field is a well-known business field identifier.
type Field string

const (
	FieldInsuredName      Field = "insuredName"
	FieldCustomerEmail    Field = "customerEmail"
	FieldCustomerPhone    Field = "customerPhone"
	FieldAddressLine1     Field = "addressLine1"
	FieldAddressSuburb    Field = "addressSuburb"
	FieldAddressState     Field = "addressState"
	FieldAddressPostcode  Field = "addressPostcode"
	FieldTotalPremium     Field = "totalPremium"
	FieldInceptionDate    Field = "inceptionDate"
	FieldExpiryDate       Field = "expiryDate"
	FieldCurrencyCode     Field = "currencyCode"
	FieldPolicyStartTime  Field = "policyStartTime"
	FieldIsRefundApproved Field = "isRefundApproved"
	FieldClaimAmount      Field = "claimAmount"
)

// Source designates which document a candidate path reads from.
type Source string

const (
	SourceFormData          Source = "formData"
	SourceCalculationResult Source = "calculationResult"
)

// Rule is one candidate location for a field.
type Rule struct {
	Source Source
	Path   string
}

// RuleSet maps fields to their ordered candidate locations. It is immutable
// configuration supplied per tenant/product, not runtime state; a single
// RuleSet may be shared by concurrent retrievers.
type RuleSet map[Field][]Rule

// Merge returns a rule set that answers from rs where present and falls
// back to other for missing fields.
func (rs RuleSet) Merge(other RuleSet) RuleSet {
	merged := make(RuleSet, len(rs)+len(other))
	for field, rules := range other {
		merged[field] = rules
	}
	for field, rules := range rs {
		merged[field] = rules
	}
	return merged
}
