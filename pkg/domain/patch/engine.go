package patch

import (
	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// noMatchMessage is the failure reported when a scope resolves nothing.
// The exact text is part of the caller-facing contract.
const noMatchMessage = "Could not find any matching target to patch."

// TargetSource is implemented by aggregates that can be patched. It exposes
// the concrete data structures a scope may resolve to.
type TargetSource interface {
	// GlobalTargets returns every quote's current data pair plus every
	// policy transaction's snapshot pair.
	GlobalTargets() []*Target

	// QuoteTarget returns the named quote's current data pair, or
	// found=false when no such quote exists in the aggregate.
	QuoteTarget(quoteID uuid.UUID) (target *Target, found bool)

	// PolicyTransactionTarget returns the named transaction's snapshot
	// pair, or found=false when no transaction has that id.
	PolicyTransactionTarget(transactionID uuid.UUID) (target *Target, found bool)
}

// ResolveTargets resolves a scope against aggregate state, yielding the
// concrete targets a patch will mutate. Zero matches is a failure result,
// not a silent no-op.
func ResolveTargets(src TargetSource, scope Scope) ([]*Target, Result) {
	switch scope.Type {
	case ScopeGlobal:
		targets := src.GlobalTargets()
		if len(targets) == 0 {
			return nil, Failure(noMatchMessage)
		}
		return targets, Success()

	case ScopeFullQuote:
		target, found := src.QuoteTarget(scope.QuoteID)
		if !found {
			return nil, Failure(noMatchMessage)
		}
		if target.FormData == nil {
			return nil, Failure("could not find form data for quote %s", scope.QuoteID)
		}
		return []*Target{target}, Success()

	case ScopePolicyTransaction:
		target, found := src.PolicyTransactionTarget(scope.PolicyTransactionID)
		if !found {
			return nil, Failure(noMatchMessage)
		}
		return []*Target{target}, Success()
	}

	return nil, Failure(noMatchMessage)
}

// Apply resolves the command's scope against src and writes the value into
// each resolved target. On success the targets hold replacement DataUpdates
// (same identity, new document text) and are returned for the caller to
// store.
//
// Patches are idempotent writes: re-applying the same value converges to
// the same documents. rules, when non-nil, is evaluated per target before
// mutation; for the global scope a refused target is skipped, while a
// refused named-scope target fails the whole patch.
func Apply(cmd Command, src TargetSource, rules Rules) ([]*Target, Result) {
	if err := cmd.Validate(); err != nil {
		return nil, Failure("%s", err.Error())
	}

	targets, res := ResolveTargets(src, cmd.Scope)
	if !res.Succeeded {
		return nil, res
	}

	applied := make([]*Target, 0, len(targets))
	for _, target := range targets {
		if rules != nil {
			if err := rules.Allow(cmd, target); err != nil {
				if cmd.Scope.Type == ScopeGlobal {
					continue
				}
				return nil, Failure("%s", err.Error())
			}
		}
		if res := applyToTarget(cmd, target); !res.Succeeded {
			return nil, res
		}
		applied = append(applied, target)
	}

	if len(applied) == 0 {
		return nil, Failure(noMatchMessage)
	}
	return applied, Success()
}

// TargetRef names a resolved target so a patch recorded in an event can be
// re-applied to exactly the same structures on replay, regardless of how
// rules evaluated at command time.
type TargetRef struct {
	Kind    TargetKind `json:"kind"`
	OwnerID uuid.UUID  `json:"ownerId"`
}

// Refs returns the references of the given targets.
func Refs(targets []*Target) []TargetRef {
	refs := make([]TargetRef, 0, len(targets))
	for _, t := range targets {
		refs = append(refs, TargetRef{Kind: t.Kind, OwnerID: t.OwnerID})
	}
	return refs
}

// ApplyToRefs re-applies a command to the named targets without rule
// evaluation. Used by event appliers during replay; the rule gate already
// ran when the command was accepted.
func ApplyToRefs(cmd Command, src TargetSource, refs []TargetRef) ([]*Target, Result) {
	applied := make([]*Target, 0, len(refs))
	for _, ref := range refs {
		var (
			target *Target
			found  bool
		)
		switch ref.Kind {
		case TargetQuote:
			target, found = src.QuoteTarget(ref.OwnerID)
		case TargetPolicyTransaction:
			target, found = src.PolicyTransactionTarget(ref.OwnerID)
		}
		if !found {
			return nil, Failure(noMatchMessage)
		}
		if res := applyToTarget(cmd, target); !res.Succeeded {
			return nil, res
		}
		applied = append(applied, target)
	}
	if len(applied) == 0 {
		return nil, Failure(noMatchMessage)
	}
	return applied, Success()
}

func applyToTarget(cmd Command, target *Target) Result {
	if cmd.FormDataPath != "" && target.FormData != nil {
		updated, res := writeValue(target.FormData.Data.Raw(), cmd.FormDataPath, cmd.Value)
		if !res.Succeeded {
			return res
		}
		target.FormData = target.FormData.WithData(updated)
	}
	if cmd.CalculationResultPath != "" && target.CalculationResult != nil {
		updated, res := writeValue(target.CalculationResult.Data.Raw(), cmd.CalculationResultPath, cmd.Value)
		if !res.Succeeded {
			return res
		}
		target.CalculationResult = target.CalculationResult.WithData(updated)
	}
	return Success()
}

func writeValue(doc, path string, value Value) (string, Result) {
	if doc == "" {
		doc = "{}"
	}
	var (
		updated string
		err     error
	)
	if value.IsObject() {
		updated, err = sjson.SetRaw(doc, path, string(value.Object()))
	} else {
		updated, err = sjson.Set(doc, path, value.Scalar())
	}
	if err != nil {
		return "", Failure("failed to apply patch at %q: %s", path, err.Error())
	}
	return updated, Success()
}
