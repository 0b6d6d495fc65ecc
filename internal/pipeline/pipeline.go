package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/crypto-etl/internal/fetch"
	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/transform"
	"github.com/rickgao/crypto-etl/internal/validate"
)

// Fetcher yields the raw entries for one run.
type Fetcher interface {
	Fetch(ctx context.Context) ([]model.RawEntry, time.Time, error)
}

// Loader persists transformed records.
type Loader interface {
	Load(ctx context.Context, records []model.TransformedRecord) model.LoadSummary
}

// Pipeline runs extract, validate, transform and load strictly in order.
type Pipeline struct {
	fetcher Fetcher
	loader  Loader
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(fetcher Fetcher, loader Loader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		loader:  loader,
		logger:  logger.With("component", "pipeline"),
	}
}

// RunOnce executes one full run and reports what happened as a RunOutcome.
// It never raises: stage errors and even panics end up in the outcome, so
// a bad run can never take the scheduler down with it.
//
// A run succeeds when every stage completed and, whenever rows were
// attempted, at least one was persisted. Partial batch failure alone does
// not fail the run; losing every row does.
func (p *Pipeline) RunOnce(ctx context.Context, trigger string) (outcome model.RunOutcome) {
	start := time.Now()
	outcome = model.RunOutcome{
		RunID:     uuid.New(),
		Trigger:   trigger,
		StartedAt: start.UTC(),
	}

	logger := p.logger.With("run_id", outcome.RunID, "trigger", trigger)
	stage := "extract"

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Err = fmt.Sprintf("%s: panic: %v", stage, r)
			outcome.Duration = time.Since(start)
			logger.Error("run panicked", "stage", stage, "panic", r)
		}
	}()

	logger.Info("run started")

	raws, extractedAt, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return fail(logger, outcome, start, stage, err)
	}
	outcome.EntriesExtracted = len(raws)
	logger.Info("extract finished", "entries", len(raws), "extracted_at", extractedAt)

	stage = "validate"
	entries, err := validate.Entries(raws, logger)
	if err != nil {
		return fail(logger, outcome, start, stage, err)
	}
	if dropped := len(raws) - len(entries); dropped > 0 {
		logger.Warn("defective entries dropped", "dropped", dropped, "kept", len(entries))
	}

	stage = "transform"
	records := transform.Records(entries, extractedAt, logger)
	if len(records) == 0 {
		return fail(logger, outcome, start, stage, errors.New("no records survived transformation"))
	}
	outcome.RecordsTransformed = len(records)

	summary := transform.Summarize(records)
	outcome.Summary = &summary
	logger.Info("transform finished",
		"records", len(records),
		"gainers", summary.Gainers,
		"losers", summary.Losers,
		"top_gainer", summary.TopGainer,
		"most_volatile", summary.MostVolatile)

	stage = "load"
	loadSummary := p.loader.Load(ctx, records)
	outcome.Load = &loadSummary

	outcome.Duration = time.Since(start)
	outcome.Success = loadSummary.Total == 0 || loadSummary.Upserted > 0
	if !outcome.Success {
		outcome.Err = fmt.Sprintf("load: 0 of %d records persisted", loadSummary.Total)
		logger.Error("run failed", "stage", stage, "error", outcome.Err, "duration", outcome.Duration)
		return outcome
	}

	logger.Info("run succeeded",
		"entries", outcome.EntriesExtracted,
		"records", outcome.RecordsTransformed,
		"upserted", loadSummary.Upserted,
		"load_failed", loadSummary.Failed,
		"duration", outcome.Duration)
	return outcome
}

// RunFromSnapshot executes one run that replays a saved audit snapshot in
// place of the live API. Validation onward is identical to a live run.
func RunFromSnapshot(ctx context.Context, path string, loader Loader, logger *slog.Logger) (model.RunOutcome, error) {
	snap, err := fetch.LoadSnapshot(path)
	if err != nil {
		return model.RunOutcome{}, err
	}

	p := New(fetch.NewSnapshotFetcher(snap), loader, logger)
	return p.RunOnce(ctx, model.TriggerReplay), nil
}

func fail(logger *slog.Logger, outcome model.RunOutcome, start time.Time, stage string, err error) model.RunOutcome {
	outcome.Success = false
	outcome.Err = fmt.Sprintf("%s: %v", stage, err)
	outcome.Duration = time.Since(start)
	logger.Error("run failed", "stage", stage, "error", err, "duration", outcome.Duration)
	return outcome
}
