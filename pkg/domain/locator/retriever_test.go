package locator_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/locator"
)

func wrap(doc string) *formdata.Wrapper {
	return formdata.NewWrapper(doc)
}

func TestStringFirstMatchWins(t *testing.T) {
	rules := locator.RuleSet{
		locator.FieldInsuredName: {
			{Source: locator.SourceFormData, Path: "primary.name"},
			{Source: locator.SourceFormData, Path: "secondary.name"},
		},
	}
	form := wrap(`{"primary": {"name": "First"}, "secondary": {"name": "Second"}}`)
	r := locator.NewRetriever(form, nil, rules)

	v, ok := r.String(locator.FieldInsuredName)
	require.True(t, ok)
	assert.Equal(t, "First", v)
}

func TestStringSkipsEmptyCandidates(t *testing.T) {
	rules := locator.RuleSet{
		locator.FieldInsuredName: {
			{Source: locator.SourceFormData, Path: "primary.name"},
			{Source: locator.SourceFormData, Path: "secondary.name"},
		},
	}
	form := wrap(`{"primary": {"name": "  "}, "secondary": {"name": "Second"}}`)
	r := locator.NewRetriever(form, nil, rules)

	v, ok := r.String(locator.FieldInsuredName)
	require.True(t, ok)
	assert.Equal(t, "Second", v)
}

func TestFallsBackToDefaultRules(t *testing.T) {
	// No configured rules at all: the hardcoded defaults resolve.
	form := wrap(`{"insuredFullName": "Avery Example"}`)
	r := locator.NewRetriever(form, nil, nil)

	v, ok := r.String(locator.FieldInsuredName)
	require.True(t, ok)
	assert.Equal(t, "Avery Example", v)
}

func TestConfiguredRulesFailThenDefaultsApply(t *testing.T) {
	rules := locator.RuleSet{
		locator.FieldInsuredName: {
			{Source: locator.SourceFormData, Path: "nowhere"},
		},
	}
	form := wrap(`{"contactName": "From Default"}`)
	r := locator.NewRetriever(form, nil, rules)

	v, ok := r.String(locator.FieldInsuredName)
	require.True(t, ok)
	assert.Equal(t, "From Default", v)
}

func TestEmailValidation(t *testing.T) {
	form := wrap(`{"contactEmail": "not-an-email", "email": "avery@example.com"}`)
	r := locator.NewRetriever(form, nil, nil)

	// The invalid first candidate is skipped, not fatal.
	v, ok := r.String(locator.FieldCustomerEmail)
	require.True(t, ok)
	assert.Equal(t, "avery@example.com", v)
}

func TestDecimalResolution(t *testing.T) {
	calc := wrap(`{"payment": {"total": {"premium": "834.50"}}}`)
	r := locator.NewRetriever(nil, calc, nil)

	d, ok := r.Decimal(locator.FieldTotalPremium)
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("834.50")))
}

func TestDecimalSkipsUnparseable(t *testing.T) {
	calc := wrap(`{"payment": {"total": {"premium": "n/a"}, "totalPremium": "120"}}`)
	r := locator.NewRetriever(nil, calc, nil)

	d, ok := r.Decimal(locator.FieldTotalPremium)
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(120)))
}

func TestDateResolution(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want time.Time
	}{
		{
			name: "civil date",
			doc:  `{"policyStartDate": "2026-09-01"}`,
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "timestamp truncated to date",
			doc:  `{"policyStartDate": "2026-09-01T15:30:00+10:00"}`,
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "australian slash format",
			doc:  `{"policyStartDate": "01/09/2026"}`,
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "template format",
			doc:  `{"policyStartDate": "1 Sep 2026"}`,
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := locator.NewRetriever(wrap(tt.doc), nil, nil)
			got, ok := r.Date(locator.FieldInceptionDate)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolResolution(t *testing.T) {
	form := wrap(`{"isRefundApproved": "yes"}`)
	r := locator.NewRetriever(form, nil, nil)

	b, ok := r.Bool(locator.FieldIsRefundApproved)
	require.True(t, ok)
	assert.True(t, b)
}

func TestAddressRequiresAllParts(t *testing.T) {
	r := locator.NewRetriever(wrap(`{
		"contactAddressLine1": "12 Harbour St",
		"contactAddressSuburb": "Sydney",
		"contactAddressState": "nsw",
		"contactAddressPostcode": "2000"
	}`), nil, nil)

	addr, ok := r.Address()
	require.True(t, ok)
	assert.Equal(t, locator.StateNSW, addr.State)
	assert.Equal(t, "12 Harbour St", addr.Line1)

	// Drop the postcode: the whole composite fails.
	r = locator.NewRetriever(wrap(`{
		"contactAddressLine1": "12 Harbour St",
		"contactAddressSuburb": "Sydney",
		"contactAddressState": "NSW"
	}`), nil, nil)
	_, ok = r.Address()
	assert.False(t, ok)
}

func TestAddressRejectsUnknownState(t *testing.T) {
	r := locator.NewRetriever(wrap(`{
		"contactAddressLine1": "1 Main St",
		"contactAddressSuburb": "Auckland",
		"contactAddressState": "AKL",
		"contactAddressPostcode": "1010"
	}`), nil, nil)

	_, ok := r.Address()
	assert.False(t, ok, "state outside the closed jurisdiction set must fail")
}

func TestParseState(t *testing.T) {
	for _, code := range []string{"NSW", "VIC", "QLD", "SA", "WA", "TAS", "NT", "ACT"} {
		s, ok := locator.ParseState(code)
		require.True(t, ok, code)
		assert.Equal(t, locator.State(code), s)
	}
	_, ok := locator.ParseState("NZ")
	assert.False(t, ok)
}

func TestNilDocumentsResolveNothing(t *testing.T) {
	r := locator.NewRetriever(nil, nil, nil)
	_, ok := r.String(locator.FieldInsuredName)
	assert.False(t, ok)
}

func TestRuleSetMerge(t *testing.T) {
	base := locator.RuleSet{
		locator.FieldInsuredName: {{Source: locator.SourceFormData, Path: "base"}},
		locator.FieldCustomerEmail: {{Source: locator.SourceFormData, Path: "baseEmail"}},
	}
	override := locator.RuleSet{
		locator.FieldInsuredName: {{Source: locator.SourceFormData, Path: "override"}},
	}

	merged := override.Merge(base)
	assert.Equal(t, "override", merged[locator.FieldInsuredName][0].Path)
	assert.Equal(t, "baseEmail", merged[locator.FieldCustomerEmail][0].Path)
}
