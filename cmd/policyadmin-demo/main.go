// Command policyadmin-demo runs a quote-to-policy lifecycle end to end
// against a SQLite event store, distributing committed events over an
// embedded NATS server. It exists to exercise the wiring, not to be a
// production entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/plaenen/policyadmin/pkg/domain/formdata"
	"github.com/plaenen/policyadmin/pkg/domain/patch"
	"github.com/plaenen/policyadmin/pkg/domain/quote"
	"github.com/plaenen/policyadmin/pkg/eventsourcing"
	"github.com/plaenen/policyadmin/pkg/idgen"
	natsbus "github.com/plaenen/policyadmin/pkg/nats"
	"github.com/plaenen/policyadmin/pkg/runner"
	"github.com/plaenen/policyadmin/pkg/sqlite"
)

func main() {
	logger := runner.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := run(logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(logger runner.Logger) error {
	store, err := sqlite.NewEventStore(sqlite.WithMemoryDatabase())
	if err != nil {
		return err
	}
	defer store.Close()
	snapshots := sqlite.NewSnapshotStore(store)

	srv, err := natsbus.StartEmbeddedServer(os.TempDir())
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	busConfig := natsbus.DefaultConfig()
	busConfig.URL = srv.URL()
	bus, err := natsbus.NewEventBus(busConfig)
	if err != nil {
		return err
	}
	defer bus.Close()

	sub, err := bus.Subscribe(eventsourcing.EventFilter{}, func(env *eventsourcing.EventEnvelope) error {
		logger.Info("event distributed",
			"aggregate", env.AggregateID,
			"type", env.EventType,
			"version", env.Version)
		return nil
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	repo := eventsourcing.NewRepository(store, quote.AggregateType, quote.New,
		eventsourcing.WithSnapshots[*quote.Aggregate](snapshots, eventsourcing.NewIntervalSnapshotStrategy(10)),
		eventsourcing.WithEventBus[*quote.Aggregate](bus),
	)

	now := time.Now().UTC()
	meta := eventsourcing.EventMetadata{PrincipalID: "demo"}
	userID := uuid.New()
	quoteID := uuid.New()
	aggregateID := idgen.MustGenerateSortableID()

	agg, err := quote.CreateNewBusinessQuote(aggregateID, quoteID, "home-contents", true, now, meta)
	if err != nil {
		return err
	}

	formDoc := `{
		"insuredName": "Avery Example",
		"policyStartDate": "2026-09-01",
		"policyEndDate": "2027-09-01",
		"residentialAddress": {
			"address": "12 Harbour St",
			"suburb": "Sydney",
			"state": "NSW",
			"postcode": "2000"
		}
	}`
	if err := agg.UpdateFormData(quoteID, formDoc, userID, now, meta); err != nil {
		return err
	}
	if err := agg.UpdateCustomerDetails(formdata.CustomerDetails{
		ID:       uuid.New(),
		FullName: "Avery Example",
		Email:    "avery@example.com",
	}, now, meta); err != nil {
		return err
	}
	if err := agg.RecordCalculationResult(quoteID,
		`{"totalPremium": "834.50", "state": "premiumComplete"}`,
		quote.CalculationTriggers{}, quote.DefaultWorkflow{}, false, now, meta); err != nil {
		return err
	}

	quoteNumbers := idgen.NewSequenceGenerator(idgen.QuotePrefix, 1)
	if err := agg.AssignQuoteNumber(quoteID, quoteNumbers, now, meta); err != nil {
		return err
	}
	if err := agg.Submit(quoteID, userID, now, meta); err != nil {
		return err
	}

	cfg := quote.ProductConfig{TermMonths: 12, TimeZone: "Australia/Sydney"}
	policyNumbers := idgen.NewSequenceGenerator(idgen.PolicyPrefix, 1)
	q, _ := agg.Quote(quoteID)
	if err := agg.IssuePolicy(quoteID, q.CalculationResult.ID, policyNumbers, cfg,
		quote.FourPMScheme, userID, now, meta); err != nil {
		return err
	}

	if err := repo.Save(agg); err != nil {
		return err
	}
	logger.Info("policy issued",
		"policyNumber", agg.Policy().PolicyNumber,
		"version", agg.Version())

	// Reload from the store and continue the lifecycle on the replayed state.
	agg, err = repo.Load(aggregateID)
	if err != nil {
		return err
	}

	renewalID, err := agg.CreateRenewalQuote(nil, now.AddDate(0, 11, 0), "Q-000002", userID, cfg, true, meta)
	if err != nil {
		return err
	}

	cmd := patch.Command{
		FormDataPath: "insuredName",
		Value:        patch.ObjectValue(`{"first": "Avery", "last": "Example"}`),
		Scope:        patch.QuoteScope(renewalID),
	}
	res, err := agg.PatchFormData(cmd, patch.RefuseBoundTransactions{}, userID, now, meta)
	if err != nil {
		return err
	}
	if !res.Succeeded {
		return fmt.Errorf("patch failed: %s", res.Message)
	}

	if err := repo.Save(agg); err != nil {
		return err
	}

	logger.Info("renewal opened",
		"renewalQuote", renewalID.String(),
		"quotes", len(agg.Quotes()),
		"version", agg.Version())

	// Give the JetStream consumer a moment to drain before shutdown.
	time.Sleep(200 * time.Millisecond)
	return nil
}
