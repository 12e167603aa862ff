package worker

import (
	"context"
	"time"

	"creach-t/sparepartsworker/internal/scraper"
	"creach-t/sparepartsworker/logger"
	"creach-t/sparepartsworker/services/publisher"
)

// Runner executes one scrape run over a set of sources
type Runner interface {
	Run(ctx context.Context, sources []scraper.Source) (scraper.RunSummary, error)
}

// Worker drives the scraping process on a fixed interval
type Worker struct {
	runner    Runner
	sources   []scraper.Source
	publisher publisher.Publisher
	interval  time.Duration
	log       *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(runner Runner, sources []scraper.Source, pub publisher.Publisher, interval time.Duration) *Worker {
	return &Worker{
		runner:    runner,
		sources:   sources,
		publisher: pub,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start runs scrape cycles until the context is cancelled. Each cycle runs
// to completion; cancellation is observed between cycles and inside the run
// through its context.
func (w *Worker) Start(ctx context.Context) {
	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping")
			return
		case <-time.After(w.interval):
		}
	}
}

// RunOnce executes a single scrape cycle and trims the event streams
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()
	summary, err := w.runner.Run(ctx, w.sources)
	if err != nil {
		w.log.Error().
			Err(err).
			Str("run_id", summary.RunID).
			Msg("Scrape run failed")
	} else {
		w.log.Info().
			Str("run_id", summary.RunID).
			Int("sources_ok", summary.Succeeded()).
			Int("sources", len(w.sources)).
			Dur("elapsed", time.Since(start)).
			Msg("Scrape run finished")
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(); err != nil {
			w.log.Error().Err(err).Msg("Failed to trim streams")
		}
	}
}
