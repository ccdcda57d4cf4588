package quote_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/plaenen/policyadmin/pkg/domain"
	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
	"github.com/plaenen/policyadmin/pkg/domain/quote"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

var (
	testMeta = eventsourcing.EventMetadata{PrincipalID: "test"}
	testUser = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testTime = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
)

const testForm = `{
	"insuredFullName": "Avery Example",
	"policyStartDate": "2026-09-01",
	"policyEndDate": "2027-09-01"
}`

const testCalc = `{"payment": {"total": {"premium": "834.50"}}, "state": "premiumComplete"}`

func newAggregate(t *testing.T) (*quote.Aggregate, uuid.UUID) {
	t.Helper()
	quoteID := uuid.New()
	agg, err := quote.CreateNewBusinessQuote("agg-test", quoteID, "home-contents", false, testTime, testMeta)
	require.NoError(t, err)
	return agg, quoteID
}

// preparedAggregate returns an aggregate whose first quote is fully ready
// for policy issuance.
func preparedAggregate(t *testing.T) (*quote.Aggregate, uuid.UUID) {
	t.Helper()
	agg, quoteID := newAggregate(t)
	require.NoError(t, agg.UpdateFormData(quoteID, testForm, testUser, testTime, testMeta))
	require.NoError(t, agg.UpdateCustomerDetails(formdata.CustomerDetails{
		ID:       uuid.New(),
		FullName: "Avery Example",
		Email:    "avery@example.com",
	}, testTime, testMeta))
	require.NoError(t, agg.RecordCalculationResult(quoteID, testCalc,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta))
	require.NoError(t, agg.AssignQuoteNumber(quoteID, staticNumbers{"Q-000001"}, testTime, testMeta))
	return agg, quoteID
}

func issuePolicy(t *testing.T, agg *quote.Aggregate, quoteID uuid.UUID) {
	t.Helper()
	q, ok := agg.Quote(quoteID)
	require.True(t, ok)
	cfg := quote.ProductConfig{TermMonths: 12, TimeZone: "Australia/Sydney"}
	require.NoError(t, agg.IssuePolicy(quoteID, q.CalculationResult.ID, staticNumbers{"P-000001"},
		cfg, quote.FourPMScheme, testUser, testTime, testMeta))
}

type staticNumbers struct{ n string }

func (s staticNumbers) Next() (string, error) { return s.n, nil }

func TestNewBusinessLifecycle(t *testing.T) {
	agg, quoteID := preparedAggregate(t)

	q, ok := agg.Quote(quoteID)
	require.True(t, ok)
	assert.Equal(t, quote.TypeNewBusiness, q.Type)
	assert.Equal(t, quote.StatusApproved, q.Status)
	assert.Equal(t, "Q-000001", q.QuoteNumber)

	require.NoError(t, agg.Submit(quoteID, testUser, testTime, testMeta))
	q, _ = agg.Quote(quoteID)
	assert.True(t, q.Submitted)
	assert.Equal(t, quote.StatusComplete, q.Status)
}

func TestSubmitRequiresFormData(t *testing.T) {
	agg, quoteID := newAggregate(t)

	err := agg.Submit(quoteID, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeQuoteRequiresFormData))
}

func TestSubmitTwiceConflicts(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	require.NoError(t, agg.Submit(quoteID, testUser, testTime, testMeta))

	err := agg.Submit(quoteID, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeQuoteAlreadySubmitted))
}

func TestUpdateFormDataRejectedAfterSubmission(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	require.NoError(t, agg.Submit(quoteID, testUser, testTime, testMeta))

	err := agg.UpdateFormData(quoteID, `{"x": 1}`, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeOperationOnSubmittedQuote))
}

func TestCalculationOnSubmittedQuote(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	require.NoError(t, agg.Submit(quoteID, testUser, testTime, testMeta))

	err := agg.RecordCalculationResult(quoteID, testCalc,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeOperationOnSubmittedQuote))

	// Refund-style re-rating is allowed when explicitly requested.
	err = agg.RecordCalculationResult(quoteID, testCalc,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, true, testTime, testMeta)
	assert.NoError(t, err)
}

func TestBoundQuoteRejectsDataOperations(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	err := agg.UpdateFormData(quoteID, `{"x": 1}`, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeOperationOnIssuedPolicy))

	err = agg.RecordCalculationResult(quoteID, testCalc,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeOperationOnIssuedPolicy))

	// The explicit re-rating escape hatch does not bypass the bound guard.
	err = agg.RecordCalculationResult(quoteID, testCalc,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, true, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeOperationOnIssuedPolicy))
}

func TestCalculationTriggersSteerStatus(t *testing.T) {
	tests := []struct {
		name     string
		triggers quote.CalculationTriggers
		want     quote.Status
	}{
		{"clean approval", quote.CalculationTriggers{}, quote.StatusApproved},
		{"review flagged", quote.CalculationTriggers{RequiresReview: true}, quote.StatusReview},
		{"declined", quote.CalculationTriggers{Declined: true}, quote.StatusDeclined},
		{"declined beats review", quote.CalculationTriggers{RequiresReview: true, Declined: true}, quote.StatusDeclined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, quoteID := newAggregate(t)
			require.NoError(t, agg.UpdateFormData(quoteID, testForm, testUser, testTime, testMeta))
			require.NoError(t, agg.RecordCalculationResult(quoteID, testCalc,
				tt.triggers, quote.DefaultWorkflow{}, false, testTime, testMeta))
			q, _ := agg.Quote(quoteID)
			assert.Equal(t, tt.want, q.Status)
		})
	}
}

func TestQuoteNumberAssignmentIsStable(t *testing.T) {
	agg, quoteID := newAggregate(t)
	require.NoError(t, agg.AssignQuoteNumber(quoteID, staticNumbers{"Q-000001"}, testTime, testMeta))
	versionAfterFirst := agg.Version()

	// Second assignment is a no-op, not an error, and appends nothing.
	require.NoError(t, agg.AssignQuoteNumber(quoteID, staticNumbers{"Q-000099"}, testTime, testMeta))
	q, _ := agg.Quote(quoteID)
	assert.Equal(t, "Q-000001", q.QuoteNumber)
	assert.Equal(t, versionAfterFirst, agg.Version())
}

func TestIssuePolicy(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	policy := agg.Policy()
	require.NotNil(t, policy)
	assert.Equal(t, "P-000001", policy.PolicyNumber)
	assert.Equal(t, "Australia/Sydney", policy.TimeZone)

	tx := policy.NewBusinessTransaction()
	require.NotNil(t, tx)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), tx.InceptionDate)
	assert.Equal(t, time.Date(2027, 9, 1, 0, 0, 0, 0, time.UTC), tx.ExpiryDate)

	// Instants incept at 4pm local in the insured's zone.
	sydney, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 16, 0, 0, 0, sydney).Unix(), tx.InceptionTime.Unix())

	// The snapshot freezes exactly what the customer agreed to.
	require.NotNil(t, tx.Snapshot.FormData)
	require.NotNil(t, tx.Snapshot.CalculationResult)
	require.NotNil(t, tx.Snapshot.CustomerDetails)
	assert.Equal(t, "avery@example.com", tx.Snapshot.CustomerDetails.Email)

	q, _ := agg.Quote(quoteID)
	assert.True(t, q.IsBound())
}

func TestIssuePolicyGuards(t *testing.T) {
	t.Run("requires matching calculation result", func(t *testing.T) {
		agg, quoteID := preparedAggregate(t)
		cfg := quote.ProductConfig{TimeZone: "Australia/Sydney"}
		err := agg.IssuePolicy(quoteID, uuid.New(), staticNumbers{"P-1"}, cfg,
			quote.FourPMScheme, testUser, testTime, testMeta)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCode(domain.CodeCalculationResultRequired))
	})

	t.Run("requires customer details", func(t *testing.T) {
		agg, quoteID := newAggregate(t)
		require.NoError(t, agg.UpdateFormData(quoteID, testForm, testUser, testTime, testMeta))
		require.NoError(t, agg.RecordCalculationResult(quoteID, testCalc,
			quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta))
		q, _ := agg.Quote(quoteID)
		err := agg.IssuePolicy(quoteID, q.CalculationResult.ID, staticNumbers{"P-1"},
			quote.ProductConfig{}, quote.FourPMScheme, testUser, testTime, testMeta)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCode(domain.CodeCustomerDetailsRequired))
	})

	t.Run("requires quote number", func(t *testing.T) {
		agg, quoteID := newAggregate(t)
		require.NoError(t, agg.UpdateFormData(quoteID, testForm, testUser, testTime, testMeta))
		require.NoError(t, agg.UpdateCustomerDetails(formdata.CustomerDetails{
			ID: uuid.New(), FullName: "A", Email: "a@example.com",
		}, testTime, testMeta))
		require.NoError(t, agg.RecordCalculationResult(quoteID, testCalc,
			quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta))
		q, _ := agg.Quote(quoteID)
		err := agg.IssuePolicy(quoteID, q.CalculationResult.ID, staticNumbers{"P-1"},
			quote.ProductConfig{}, quote.FourPMScheme, testUser, testTime, testMeta)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCode(domain.CodeQuoteNumberRequired))
	})

	t.Run("cannot issue twice", func(t *testing.T) {
		agg, quoteID := preparedAggregate(t)
		issuePolicy(t, agg, quoteID)
		q, _ := agg.Quote(quoteID)
		err := agg.IssuePolicy(quoteID, q.CalculationResult.ID, staticNumbers{"P-2"},
			quote.ProductConfig{}, quote.FourPMScheme, testUser, testTime, testMeta)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrCode(domain.CodePolicyAlreadyIssued))
	})
}

func TestDiscardedQuoteRejectsOperations(t *testing.T) {
	agg, quoteID := newAggregate(t)
	require.NoError(t, agg.Discard(quoteID, testTime, testMeta))

	err := agg.UpdateFormData(quoteID, `{"x": 1}`, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeQuoteDiscarded))
}

func TestDeletedAggregateRejectsOperations(t *testing.T) {
	agg, quoteID := newAggregate(t)
	require.NoError(t, agg.MarkDeleted(testUser, testTime, testMeta))

	err := agg.UpdateFormData(quoteID, `{"x": 1}`, testUser, testTime, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodeAggregateDeleted))
}

func TestCalculationMirrorsClaimAmountIntoForm(t *testing.T) {
	agg, quoteID := newAggregate(t)
	require.NoError(t, agg.UpdateFormData(quoteID, `{"claimAmount": "0"}`, testUser, testTime, testMeta))
	require.NoError(t, agg.RecordCalculationResult(quoteID, `{"claimAmount": "2500.00"}`,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, testTime, testMeta))

	q, _ := agg.Quote(quoteID)
	v, ok := q.FormData.Data.Value("claimAmount")
	require.True(t, ok)
	got, err := decimal.NewFromString(v)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("2500.00")))
}

// Replaying the recorded events onto a fresh aggregate must reconstruct
// byte-identical state, including patched documents and issued policies.
func TestReplayDeterminism(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	require.NoError(t, agg.Submit(quoteID, testUser, testTime, testMeta))
	issuePolicy(t, agg, quoteID)

	renewalID, err := agg.CreateRenewalQuote(
		[]quote.PastClaim{{
			DateOfClaim:       time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
			ClaimNumber:       "C-000007",
			DetailsOfLoss:     "storm damage",
			TotalClaimInsurer: decimal.RequireFromString("2500.00"),
			Status:            "settled",
		}},
		testTime.AddDate(0, 11, 0), "Q-000002", testUser,
		quote.ProductConfig{TermMonths: 12, TimeZone: "Australia/Sydney"}, false, testMeta)
	require.NoError(t, err)

	res, err := agg.PatchFormData(patch.Command{
		FormDataPath: "insuredName",
		Value:        patch.ObjectValue(`{"first": "Avery"}`),
		Scope:        patch.QuoteScope(renewalID),
	}, patch.RefuseBoundTransactions{}, testUser, testTime, testMeta)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.Message)

	replayed := quote.New(agg.ID())
	for _, event := range agg.UncommittedEvents() {
		require.NoError(t, replayed.ApplyEvent(event))
	}

	original, err := agg.MarshalSnapshot()
	require.NoError(t, err)
	rebuilt, err := replayed.MarshalSnapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(original), string(rebuilt))
	assert.Equal(t, agg.Version(), replayed.Version())
}

func TestSnapshotRoundTrip(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	data, err := agg.MarshalSnapshot()
	require.NoError(t, err)

	restored := quote.New("ignored")
	require.NoError(t, restored.UnmarshalSnapshot(data))
	assert.Equal(t, agg.ID(), restored.ID())
	assert.Equal(t, agg.Version(), restored.Version())
	require.NotNil(t, restored.Policy())
	assert.Equal(t, "P-000001", restored.Policy().PolicyNumber)

	q, ok := restored.Quote(quoteID)
	require.True(t, ok)
	assert.True(t, q.IsBound())
	// The wrapper survives with the document intact.
	v, ok := q.FormData.Data.Value("insuredFullName")
	require.True(t, ok)
	assert.Equal(t, "Avery Example", v)
}

func TestPatchNoMatchIsResultNotError(t *testing.T) {
	agg, _ := preparedAggregate(t)
	res, err := agg.PatchFormData(patch.Command{
		FormDataPath: "x",
		Value:        patch.ObjectValue(`1`),
		Scope:        patch.QuoteScope(uuid.New()),
	}, nil, testUser, testTime, testMeta)
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Equal(t, "Could not find any matching target to patch.", res.Message)
}

// A scalar patch value does not survive the command's serialized form, so
// the accepted patch writes the empty string both now and on replay.
func TestPatchScalarQuirkEndToEnd(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	res, err := agg.PatchFormData(patch.Command{
		FormDataPath: "insuredFullName",
		Value:        patch.StringValue("Replacement Name"),
		Scope:        patch.QuoteScope(quoteID),
	}, nil, testUser, testTime, testMeta)
	require.NoError(t, err)
	require.True(t, res.Succeeded, res.Message)

	q, _ := agg.Quote(quoteID)
	v, ok := q.FormData.Data.Value("insuredFullName")
	require.True(t, ok)
	assert.Equal(t, "", v)

	// Replay produces the same emptied value.
	replayed := quote.New(agg.ID())
	for _, event := range agg.UncommittedEvents() {
		require.NoError(t, replayed.ApplyEvent(event))
	}
	rq, _ := replayed.Quote(quoteID)
	rv, ok := rq.FormData.Data.Value("insuredFullName")
	require.True(t, ok)
	assert.Equal(t, v, rv)
}

func TestRenewalDates(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	renewalID, err := agg.CreateRenewalQuote(nil, testTime.AddDate(0, 11, 0), "Q-000002", testUser,
		quote.ProductConfig{TermMonths: 12, TimeZone: "Australia/Sydney"}, false, testMeta)
	require.NoError(t, err)

	r, ok := agg.Quote(renewalID)
	require.True(t, ok)
	assert.Equal(t, quote.TypeRenewal, r.Type)

	// The renewal term abuts the expiring one: inception is the prior
	// expiry, and the new expiry extends the prior inception by twice the
	// product term.
	assert.Equal(t, time.Date(2027, 9, 1, 0, 0, 0, 0, time.UTC), r.InceptionDate)
	assert.Equal(t, time.Date(2028, 9, 1, 0, 0, 0, 0, time.UTC), r.ExpiryDate)

	// The seeded form document carries the new term dates.
	v, _ := r.FormData.Data.Value("policyStartDate")
	assert.Equal(t, "2027-09-01", v)
	v, _ = r.FormData.Data.Value("policyEndDate")
	assert.Equal(t, "2028-09-01", v)
}

func TestRenewalRequiresIssuedPolicy(t *testing.T) {
	agg, _ := preparedAggregate(t)
	_, err := agg.CreateRenewalQuote(nil, testTime, "Q-000002", testUser,
		quote.ProductConfig{}, false, testMeta)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCode(domain.CodePolicyNotIssued))
}

func TestRenewalInjectsPastClaims(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	claims := []quote.PastClaim{
		{
			DateOfClaim:       time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
			ClaimNumber:       "C-000007",
			DetailsOfLoss:     "storm damage",
			TotalClaimInsurer: decimal.RequireFromString("2500.00"),
			Status:            "settled",
		},
		{
			DateOfClaim:       time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			ClaimNumber:       "C-000012",
			DetailsOfLoss:     "burst pipe",
			TotalClaimInsurer: decimal.RequireFromString("918.20"),
			Status:            "open",
		},
	}
	renewalID, err := agg.CreateRenewalQuote(claims, testTime.AddDate(0, 11, 0), "Q-000002", testUser,
		quote.ProductConfig{TermMonths: 12, TimeZone: "Australia/Sydney"}, false, testMeta)
	require.NoError(t, err)

	r, _ := agg.Quote(renewalID)
	doc, err := r.FormData.Data.Document()
	require.NoError(t, err)

	arr := gjson.Get(doc, quote.PastClaimsKey)
	require.True(t, arr.IsArray())
	entries := arr.Array()
	require.Len(t, entries, 2)

	// Input order is preserved, dates render in template format, and
	// amounts are plain JSON numbers rather than strings.
	assert.Equal(t, "14 Feb 2026", entries[0].Get("dateOfClaim").String())
	assert.Equal(t, "C-000007", entries[0].Get("claimNumber").String())
	assert.Equal(t, "storm damage", entries[0].Get("detailsOfLoss").String())
	assert.Equal(t, gjson.Number, entries[0].Get("totalClaimInsurer").Type)
	assert.Equal(t, 2500.0, entries[0].Get("totalClaimInsurer").Num)
	assert.Equal(t, "settled", entries[0].Get("claimStatus").String())
	assert.Equal(t, "3 Jun 2026", entries[1].Get("dateOfClaim").String())
}

func TestAdjustmentQuoteSeedsFromCurrentTransaction(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	asOf := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	adjustmentID, err := agg.CreateAdjustmentQuote(nil,
		time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), asOf, "Q-000003", testUser, false, testMeta)
	require.NoError(t, err)

	adj, ok := agg.Quote(adjustmentID)
	require.True(t, ok)
	assert.Equal(t, quote.TypeAdjustment, adj.Type)
	v, ok := adj.FormData.Data.Value("insuredFullName")
	require.True(t, ok)
	assert.Equal(t, "Avery Example", v)
}

func TestCancellationQuote(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	asOf := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	cancelID, err := agg.CreateCancellationQuote(
		time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), asOf, testUser, testMeta)
	require.NoError(t, err)

	c, ok := agg.Quote(cancelID)
	require.True(t, ok)
	assert.Equal(t, quote.TypeCancellation, c.Type)
	assert.Equal(t, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), c.InceptionDate)
}

func TestBoundTransactionRefusedByPatchRules(t *testing.T) {
	agg, quoteID := preparedAggregate(t)
	issuePolicy(t, agg, quoteID)

	q, _ := agg.Quote(quoteID)
	res, err := agg.PatchFormData(patch.Command{
		FormDataPath: "insuredFullName",
		Value:        patch.ObjectValue(`"New"`),
		Scope:        patch.PolicyTransactionScope(q.PolicyTransactionID),
	}, patch.RefuseBoundTransactions{}, testUser, testTime, testMeta)
	require.NoError(t, err)
	require.False(t, res.Succeeded)
	assert.Contains(t, res.Message, "bound policy transaction")
}
