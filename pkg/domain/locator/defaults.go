package locator

// DefaultRules is the hardcoded fallback rule set. It exists purely for
// backward compatibility with product configurations that predate the
// configurable-locator feature: when a product supplies no rules for a
// field, or every configured candidate fails to resolve, these locations
// are tried.
func DefaultRules() RuleSet {
	return RuleSet{
		FieldInsuredName: {
			{SourceFormData, "insuredFullName"},
			{SourceFormData, "contactName"},
		},
		FieldCustomerEmail: {
			{SourceFormData, "contactEmail"},
			{SourceFormData, "email"},
		},
		FieldCustomerPhone: {
			{SourceFormData, "contactPhone"},
			{SourceFormData, "contactMobile"},
		},
		FieldAddressLine1: {
			{SourceFormData, "contactAddressLine1"},
			{SourceFormData, "policyAddressLine1"},
		},
		FieldAddressSuburb: {
			{SourceFormData, "contactAddressSuburb"},
			{SourceFormData, "policyAddressSuburb"},
		},
		FieldAddressState: {
			{SourceFormData, "contactAddressState"},
			{SourceFormData, "policyAddressState"},
		},
		FieldAddressPostcode: {
			{SourceFormData, "contactAddressPostcode"},
			{SourceFormData, "policyAddressPostcode"},
		},
		FieldTotalPremium: {
			{SourceCalculationResult, "payment.total.premium"},
			{SourceCalculationResult, "payment.totalPremium"},
		},
		FieldInceptionDate: {
			{SourceFormData, "policyStartDate"},
			{SourceFormData, "inceptionDate"},
		},
		FieldExpiryDate: {
			{SourceFormData, "policyEndDate"},
			{SourceFormData, "expiryDate"},
		},
		FieldCurrencyCode: {
			{SourceCalculationResult, "payment.currencyCode"},
		},
		FieldPolicyStartTime: {
			{SourceFormData, "policyStartTime"},
		},
		FieldIsRefundApproved: {
			{SourceCalculationResult, "risk1.other.something"},
			{SourceFormData, "isRefundApproved"},
		},
		FieldClaimAmount: {
			{SourceCalculationResult, "claimAmount"},
			{SourceFormData, "claimAmount"},
		},
	}
}
