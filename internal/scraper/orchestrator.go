package scraper

import (
	"context"
	"sync"
	"time"

	"creach-t/sparepartsworker/logger"
	"creach-t/sparepartsworker/pkg/errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Orchestrator drives one scrape run across all registered sources. Sources
// run in a bounded worker pool; one source's failure never aborts the
// others, and the run as a whole fails only when every source failed.
type Orchestrator struct {
	normalizer  *Normalizer
	reconciler  *Reconciler
	concurrency int
	runTimeout  time.Duration
	log         *logger.Logger
}

// NewOrchestrator creates an orchestrator. concurrency bounds the number of
// sources scraped in parallel; runTimeout, when positive, caps the whole run.
func NewOrchestrator(normalizer *Normalizer, reconciler *Reconciler, concurrency int, runTimeout time.Duration) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		normalizer:  normalizer,
		reconciler:  reconciler,
		concurrency: concurrency,
		runTimeout:  runTimeout,
		log:         logger.ForWorker(),
	}
}

// Run scrapes every source and reconciles the results, returning the
// per-source summary. The returned error is non-nil only when no source
// succeeded.
func (o *Orchestrator) Run(ctx context.Context, sources []Source) (RunSummary, error) {
	summary := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		PerSource: make(map[string]SourceResult, len(sources)),
	}

	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			res := o.runSource(ctx, src)
			mu.Lock()
			summary.PerSource[src.GetSiteID()] = res
			mu.Unlock()
			// source failures are captured in the summary, never
			// propagated, so the remaining sources keep running
			return nil
		})
	}
	_ = g.Wait()

	summary.Elapsed = time.Since(summary.StartedAt)

	for siteID, res := range summary.PerSource {
		event := o.log.Info()
		if res.Err != nil {
			event = o.log.Warn().Err(res.Err)
		}
		event.
			Str("run_id", summary.RunID).
			Str("source", siteID).
			Int("fetched", res.Fetched).
			Int("normalized", res.Normalized).
			Int("rejected", res.Rejected).
			Int("reconciled", res.Reconciled).
			Int("failed", res.Failed).
			Msg("Source finished")
	}

	if len(sources) > 0 && summary.Succeeded() == 0 {
		return summary, errors.NewRun("all sources failed")
	}
	return summary, nil
}

// runSource fetches, normalizes and reconciles one source's records.
// Everything below a source failure is converted into counts.
func (o *Orchestrator) runSource(ctx context.Context, src Source) SourceResult {
	var res SourceResult
	siteID := src.GetSiteID()
	log := logger.ForSource(siteID)

	records, err := src.FetchCandidates(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fetched = len(records)

	supplier, err := o.reconciler.ResolveSupplier(ctx, siteID, src.GetWebsite())
	if err != nil {
		res.Err = err
		return res
	}

	for _, raw := range records {
		rec, err := o.normalizer.Normalize(raw, siteID)
		if err != nil {
			res.Rejected++
			log.Debug().Err(err).Str("name", raw.Name).Msg("Record rejected")
			continue
		}
		res.Normalized++

		if _, err := o.reconciler.Reconcile(ctx, rec, supplier); err != nil {
			res.Failed++
			log.Error().Err(err).Str("reference", rec.Reference).Msg("Reconciliation failed")
			continue
		}
		res.Reconciled++
	}

	return res
}
