package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stayrate/occupancy-proxy/pkg/logging"
	"github.com/stayrate/occupancy-proxy/pkg/schedule"
)

// Defaults for Config.
const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = time.Second
)

// Prometheus metrics for scheduler runs.
var (
	batchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_batch_runs_total",
		Help: "Total scheduler runs by result",
	}, []string{"result"})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occupancy_batches_total",
		Help: "Total batches dispatched",
	})

	batchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "occupancy_batch_run_duration_seconds",
		Help:    "Scheduler run duration in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	batchAbortsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "occupancy_batch_aborts_total",
		Help: "Total runs stopped before the last batch by reason",
	}, []string{"reason"})
)

// Config holds scheduler configuration.
type Config struct {
	// BatchSize is the number of fetches dispatched together.
	BatchSize int

	// BatchDelay is the pause between batches. Zero disables pacing.
	BatchDelay time.Duration
}

// DefaultConfig returns the pacing used against the production upstream.
func DefaultConfig() Config {
	return Config{
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
	}
}

// Scheduler runs batches of fetches through a shared Fetcher. A Scheduler
// holds no per-run state and may serve concurrent runs.
type Scheduler struct {
	fetcher schedule.Fetcher
	config  Config
	logger  zerolog.Logger

	sleep    func(ctx context.Context, d time.Duration) error
	newRunID func() string
}

// NewScheduler creates a new scheduler.
func NewScheduler(fetcher schedule.Fetcher, config Config, logger zerolog.Logger) *Scheduler {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}

	return &Scheduler{
		fetcher:  fetcher,
		config:   config,
		logger:   logging.Component(logger, "scheduler"),
		sleep:    sleepContext,
		newRunID: uuid.NewString,
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// Run fetches every (room, month) pair in rng and returns the collected
// report. It never returns an error: failures are recorded per item.
func (s *Scheduler) Run(ctx context.Context, rooms []schedule.Room, rng schedule.DateRange, session string) *Report {
	start := time.Now()
	items := Expand(rooms, rng)
	batches := Partition(items, s.config.BatchSize)

	report := &Report{
		RunID:          s.newRunID(),
		TotalRequested: len(items),
		Results:        make([]schedule.FetchResult, 0, len(items)),
		Errors:         []string{},
	}
	logger := s.logger.With().Str("run_id", report.RunID).Logger()

	logger.Info().
		Int("rooms", len(rooms)).
		Int("items", len(items)).
		Int("batches", len(batches)).
		Msg("Starting batch run")

	for i, group := range batches {
		if ctx.Err() != nil {
			s.abort(logger, report, AbortCancelled, i)
			break
		}

		results := s.runBatch(ctx, group, session)
		report.record(results)
		report.Batches++
		batchesTotal.Inc()

		logger.Info().
			Int("batch", i+1).
			Int("batches", len(batches)).
			Int("size", len(group)).
			Int("completed", report.Completed).
			Int("failed", report.Failed).
			Msg("Batch finished")

		if containsAuthFailure(results) {
			s.abort(logger, report, AbortAuthFailure, i+1)
			break
		}

		if i < len(batches)-1 && s.config.BatchDelay > 0 {
			if err := s.sleep(ctx, s.config.BatchDelay); err != nil {
				s.abort(logger, report, AbortCancelled, i+1)
				break
			}
		}
	}

	report.Duration = time.Since(start)
	batchRunDuration.Observe(report.Duration.Seconds())
	batchRunsTotal.WithLabelValues(runResult(report)).Inc()

	logger.Info().
		Int("total", report.TotalRequested).
		Int("completed", report.Completed).
		Int("failed", report.Failed).
		Bool("aborted", report.AbortedEarly).
		Dur("duration", report.Duration).
		Msg("Batch run complete")

	return report
}

// runBatch dispatches every item concurrently and returns the results in
// item order.
func (s *Scheduler) runBatch(ctx context.Context, items []schedule.WorkItem, session string) []schedule.FetchResult {
	results := make([]schedule.FetchResult, len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			results[i] = s.fetcher.Fetch(ctx, item, session)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Scheduler) abort(logger zerolog.Logger, report *Report, reason string, nextBatch int) {
	report.AbortedEarly = true
	report.AbortReason = reason
	batchAbortsTotal.WithLabelValues(reason).Inc()

	logger.Warn().
		Str("reason", reason).
		Int("batch", nextBatch).
		Int("skipped", report.Skipped()).
		Msg("Stopping batch run early")
}

func containsAuthFailure(results []schedule.FetchResult) bool {
	for _, r := range results {
		if r.Outcome.Kind == schedule.OutcomeAuthFailure {
			return true
		}
	}
	return false
}

func runResult(r *Report) string {
	switch {
	case r.AbortedEarly:
		return "aborted"
	case r.Failed > 0:
		return "partial"
	default:
		return "success"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
