package quote

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
)

// PatchFormData applies a scoped JSON-path mutation to the aggregate's
// form data and/or calculation result documents. Failing to resolve any
// target is reported as a failure result, not an error: it is an expected,
// recoverable input-validation outcome, safe to show the caller.
//
// A successful patch appends a FormDataPatched event carrying the command
// and the resolved target references, so replay re-applies exactly the
// accepted mutation.
func (a *Aggregate) PatchFormData(
	cmd patch.Command,
	rules patch.Rules,
	userID uuid.UUID,
	timestamp time.Time,
	metadata eventsourcing.EventMetadata,
) (patch.Result, error) {
	if a.deleted {
		return patch.Result{}, domain.Invalid(domain.CodeAggregateDeleted,
			"aggregate %s has been deleted", a.ID())
	}

	// Round-trip the command through its serialized form before applying,
	// so the state written now is exactly the state replay will produce
	// from the recorded event. This is where the scalar-value quirk bites:
	// primitive string values do not survive the round trip.
	cmd, err := roundTripCommand(cmd)
	if err != nil {
		return patch.Result{}, err
	}

	applied, res := patch.Apply(cmd, a, rules)
	if !res.Succeeded {
		return res, nil
	}

	// State is already mutated by the engine's target application; store
	// the replacement documents and record the event. The applier re-runs
	// the same pure application on replay.
	a.storePatchedTargets(applied)

	event := &FormDataPatched{
		Command:     cmd,
		Targets:     patch.Refs(applied),
		PerformedBy: userID,
		Timestamp:   timestamp,
	}
	if _, err := a.ApplyChange(event, EventFormDataPatched, metadata); err != nil {
		return patch.Result{}, err
	}
	return res, nil
}

func roundTripCommand(cmd patch.Command) (patch.Command, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return patch.Command{}, err
	}
	var out patch.Command
	if err := json.Unmarshal(data, &out); err != nil {
		return patch.Command{}, err
	}
	return out, nil
}
