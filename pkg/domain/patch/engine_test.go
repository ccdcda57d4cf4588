package patch_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
)

// fakeSource is a minimal TargetSource over fixed targets.
type fakeSource struct {
	quotes       map[uuid.UUID]*patch.Target
	transactions map[uuid.UUID]*patch.Target
}

func (f *fakeSource) GlobalTargets() []*patch.Target {
	var out []*patch.Target
	for _, t := range f.quotes {
		out = append(out, t)
	}
	for _, t := range f.transactions {
		out = append(out, t)
	}
	return out
}

func (f *fakeSource) QuoteTarget(id uuid.UUID) (*patch.Target, bool) {
	t, ok := f.quotes[id]
	return t, ok
}

func (f *fakeSource) PolicyTransactionTarget(id uuid.UUID) (*patch.Target, bool) {
	t, ok := f.transactions[id]
	return t, ok
}

func quoteTarget(id uuid.UUID, formDoc, calcDoc string) *patch.Target {
	t := &patch.Target{Kind: patch.TargetQuote, OwnerID: id}
	if formDoc != "" {
		t.FormData = formdata.NewDataUpdate(uuid.New(), formDoc, time.Now().UTC())
	}
	if calcDoc != "" {
		t.CalculationResult = formdata.NewDataUpdate(uuid.New(), calcDoc, time.Now().UTC())
	}
	return t
}

func TestApplyQuoteScope(t *testing.T) {
	quoteID := uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			quoteID: quoteTarget(quoteID, `{"insuredName": "Old"}`, ""),
		},
	}

	cmd := patch.Command{
		FormDataPath: "insuredName",
		Value:        patch.ObjectValue(`{"first": "Avery"}`),
		Scope:        patch.QuoteScope(quoteID),
	}
	applied, res := patch.Apply(cmd, src, nil)
	require.True(t, res.Succeeded, res.Message)
	require.Len(t, applied, 1)

	v, ok := applied[0].FormData.Data.Value("insuredName.first")
	require.True(t, ok)
	assert.Equal(t, "Avery", v)
}

func TestApplyUnknownQuoteReportsExactMessage(t *testing.T) {
	src := &fakeSource{quotes: map[uuid.UUID]*patch.Target{}}

	cmd := patch.Command{
		FormDataPath: "x",
		Value:        patch.StringValue("v"),
		Scope:        patch.QuoteScope(uuid.New()),
	}
	_, res := patch.Apply(cmd, src, nil)
	require.False(t, res.Succeeded)
	assert.Equal(t, "Could not find any matching target to patch.", res.Message)
}

func TestApplyGlobalScopeWithNoTargetsFails(t *testing.T) {
	src := &fakeSource{}
	cmd := patch.Command{
		FormDataPath: "x",
		Value:        patch.StringValue("v"),
		Scope:        patch.GlobalScope(),
	}
	_, res := patch.Apply(cmd, src, nil)
	require.False(t, res.Succeeded)
	assert.Equal(t, "Could not find any matching target to patch.", res.Message)
}

func TestApplyQuoteScopeWithoutFormData(t *testing.T) {
	quoteID := uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			quoteID: quoteTarget(quoteID, "", `{"premium": "1"}`),
		},
	}
	cmd := patch.Command{
		FormDataPath: "x",
		Value:        patch.StringValue("v"),
		Scope:        patch.QuoteScope(quoteID),
	}
	_, res := patch.Apply(cmd, src, nil)
	require.False(t, res.Succeeded)
	assert.Contains(t, res.Message, "could not find form data for quote")
}

func TestApplyGlobalScopeTouchesEveryTarget(t *testing.T) {
	q1, q2, tx := uuid.New(), uuid.New(), uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			q1: quoteTarget(q1, `{"a": 1}`, ""),
			q2: quoteTarget(q2, `{"a": 2}`, ""),
		},
		transactions: map[uuid.UUID]*patch.Target{
			tx: {
				Kind:     patch.TargetPolicyTransaction,
				OwnerID:  tx,
				FormData: formdata.NewDataUpdate(uuid.New(), `{"a": 3}`, time.Now().UTC()),
				Bound:    true,
			},
		},
	}

	cmd := patch.Command{
		FormDataPath: "flag",
		Value:        patch.ObjectValue(`true`),
		Scope:        patch.GlobalScope(),
	}
	applied, res := patch.Apply(cmd, src, nil)
	require.True(t, res.Succeeded, res.Message)
	assert.Len(t, applied, 3)
	for _, target := range applied {
		v, ok := target.FormData.Data.Value("flag")
		require.True(t, ok)
		assert.Equal(t, "true", v)
	}
}

func TestRulesSkipRefusedTargetsInGlobalScope(t *testing.T) {
	q, tx := uuid.New(), uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			q: quoteTarget(q, `{"a": 1}`, ""),
		},
		transactions: map[uuid.UUID]*patch.Target{
			tx: {
				Kind:     patch.TargetPolicyTransaction,
				OwnerID:  tx,
				FormData: formdata.NewDataUpdate(uuid.New(), `{"a": 2}`, time.Now().UTC()),
				Bound:    true,
			},
		},
	}

	cmd := patch.Command{
		FormDataPath: "flag",
		Value:        patch.ObjectValue(`1`),
		Scope:        patch.GlobalScope(),
	}
	applied, res := patch.Apply(cmd, src, patch.RefuseBoundTransactions{})
	require.True(t, res.Succeeded, res.Message)
	require.Len(t, applied, 1)
	assert.Equal(t, q, applied[0].OwnerID)
}

func TestRulesFailNamedScope(t *testing.T) {
	tx := uuid.New()
	src := &fakeSource{
		transactions: map[uuid.UUID]*patch.Target{
			tx: {
				Kind:     patch.TargetPolicyTransaction,
				OwnerID:  tx,
				FormData: formdata.NewDataUpdate(uuid.New(), `{"a": 2}`, time.Now().UTC()),
				Bound:    true,
			},
		},
	}

	cmd := patch.Command{
		FormDataPath: "flag",
		Value:        patch.ObjectValue(`1`),
		Scope:        patch.PolicyTransactionScope(tx),
	}
	_, res := patch.Apply(cmd, src, patch.RefuseBoundTransactions{})
	require.False(t, res.Succeeded)
	assert.Contains(t, res.Message, "bound policy transaction")
}

func TestCommandWithoutPathsIsRejected(t *testing.T) {
	src := &fakeSource{}
	cmd := patch.Command{
		Value: patch.StringValue("v"),
		Scope: patch.GlobalScope(),
	}
	_, res := patch.Apply(cmd, src, nil)
	require.False(t, res.Succeeded)
	assert.Contains(t, res.Message, "at least one target path")
}

// Scalar string values are discarded by the command's serialized form. A
// command applied after a round trip writes the empty string. This is
// long-standing observed behavior that downstream data has formed around;
// changing it would make historical events replay differently.
func TestScalarValueDiscardedBySerialization(t *testing.T) {
	cmd := patch.Command{
		FormDataPath: "insuredName",
		Value:        patch.StringValue("Avery"),
		Scope:        patch.GlobalScope(),
	}

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var restored patch.Command
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, "", restored.Value.Scalar())
	assert.False(t, restored.Value.IsObject())

	quoteID := uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			quoteID: quoteTarget(quoteID, `{"insuredName": "Old"}`, ""),
		},
	}
	restored.Scope = patch.QuoteScope(quoteID)
	applied, res := patch.Apply(restored, src, nil)
	require.True(t, res.Succeeded, res.Message)

	v, ok := applied[0].FormData.Data.Value("insuredName")
	require.True(t, ok)
	assert.Equal(t, "", v)
}

func TestObjectValueSurvivesSerialization(t *testing.T) {
	cmd := patch.Command{
		FormDataPath: "insuredName",
		Value:        patch.ObjectValue(`{"first": "Avery", "last": "Example"}`),
		Scope:        patch.GlobalScope(),
	}

	data, err := json.Marshal(cmd)
	require.NoError(t, err)

	var restored patch.Command
	require.NoError(t, json.Unmarshal(data, &restored))
	require.True(t, restored.Value.IsObject())
	assert.JSONEq(t, `{"first": "Avery", "last": "Example"}`, string(restored.Value.Object()))
}

func TestApplyToRefsIgnoresRules(t *testing.T) {
	tx := uuid.New()
	src := &fakeSource{
		transactions: map[uuid.UUID]*patch.Target{
			tx: {
				Kind:     patch.TargetPolicyTransaction,
				OwnerID:  tx,
				FormData: formdata.NewDataUpdate(uuid.New(), `{"a": 2}`, time.Now().UTC()),
				Bound:    true,
			},
		},
	}

	cmd := patch.Command{
		FormDataPath: "flag",
		Value:        patch.ObjectValue(`1`),
		Scope:        patch.PolicyTransactionScope(tx),
	}
	refs := []patch.TargetRef{{Kind: patch.TargetPolicyTransaction, OwnerID: tx}}
	applied, res := patch.ApplyToRefs(cmd, src, refs)
	require.True(t, res.Succeeded, res.Message)
	require.Len(t, applied, 1)

	v, ok := applied[0].FormData.Data.Value("flag")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestPatchBothDocuments(t *testing.T) {
	quoteID := uuid.New()
	src := &fakeSource{
		quotes: map[uuid.UUID]*patch.Target{
			quoteID: quoteTarget(quoteID, `{"a": 1}`, `{"b": 2}`),
		},
	}
	cmd := patch.Command{
		FormDataPath:          "shared",
		CalculationResultPath: "shared",
		Value:                 patch.ObjectValue(`"x"`),
		Scope:                 patch.QuoteScope(quoteID),
	}
	applied, res := patch.Apply(cmd, src, nil)
	require.True(t, res.Succeeded, res.Message)

	v, ok := applied[0].FormData.Data.Value("shared")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	v, ok = applied[0].CalculationResult.Data.Value("shared")
	require.True(t, ok)
	assert.Equal(t, "x", v)
}
