package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pricehound/internal/feed"
	"pricehound/internal/pkg/metrics"
	"pricehound/internal/pkg/notify"
)

// ErrNoSources is returned when a run is triggered with no feed sources
// configured.
var ErrNoSources = errors.New("no feed sources configured")

// Reconciler folds one normalized record into the catalog.
type Reconciler interface {
	Reconcile(ctx context.Context, rec *feed.Record) error
}

// Sweeper demotes offers not seen since the watermark.
type Sweeper interface {
	DemoteStaleOffers(ctx context.Context, watermark time.Time) (int64, error)
}

// SourceSummary reports counters for one feed source.
type SourceSummary struct {
	Source   string `json:"source"`
	Parsed   int    `json:"parsed"`
	Kept     int    `json:"kept"`
	Rejected int    `json:"rejected"`
	Err      string `json:"error,omitempty"`
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Sources    []SourceSummary `json:"sources"`
	Parsed     int             `json:"parsed"`
	Kept       int             `json:"kept"`
	Rejected   int             `json:"rejected"`
	Demoted    int64           `json:"demoted"`
	SweepRan   bool            `json:"sweep_ran"`
	FailedSrcs int             `json:"failed_sources"`
}

// Runner drives a full ingestion run: fetch every configured feed,
// normalize and reconcile its rows, then sweep stale offers.
type Runner struct {
	fetcher     feed.Fetcher
	reconciler  Reconciler
	sweeper     Sweeper
	lock        Locker
	notifier    notify.Notifier
	logger      *slog.Logger
	sources     []string
	defaultCat  string
	notifyEmail string

	now func() time.Time
}

// RunnerOptions holds the run-level settings of a Runner.
type RunnerOptions struct {
	Sources         []string
	DefaultCategory string
	NotifyEmail     string
}

func NewRunner(fetcher feed.Fetcher, rec Reconciler, sweeper Sweeper, lock Locker, notifier notify.Notifier, logger *slog.Logger, opts RunnerOptions) *Runner {
	if lock == nil {
		lock = NewLocalLock()
	}
	return &Runner{
		fetcher:     fetcher,
		reconciler:  rec,
		sweeper:     sweeper,
		lock:        lock,
		notifier:    notifier,
		logger:      logger,
		sources:     opts.Sources,
		defaultCat:  opts.DefaultCategory,
		notifyEmail: opts.NotifyEmail,
		now:         time.Now,
	}
}

// Run executes one ingestion run. It returns ErrNoSources when nothing is
// configured and ErrRunInProgress when another run holds the lease.
// A failing source never aborts the run; its rows are simply absent and
// its error is recorded in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if len(r.sources) == 0 {
		return nil, ErrNoSources
	}

	release, err := r.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	metrics.IngestRunning.Set(1)
	defer metrics.IngestRunning.Set(0)

	// The watermark is taken before any source is read so that every offer
	// touched by this run sorts strictly after it.
	startedAt := r.now()
	summary := &Summary{StartedAt: startedAt}

	r.logger.Info("ingestion run started", slog.Int("sources", len(r.sources)))

	for _, source := range r.sources {
		src := r.runSource(ctx, source)
		summary.Sources = append(summary.Sources, src)
		summary.Parsed += src.Parsed
		summary.Kept += src.Kept
		summary.Rejected += src.Rejected
		if src.Err != "" {
			summary.FailedSrcs++
		}
	}

	// Sweeping after a run that parsed nothing would demote the whole
	// catalog, so it only runs when at least one row came through.
	if summary.Parsed > 0 {
		demoted, err := r.sweeper.DemoteStaleOffers(ctx, startedAt)
		if err != nil {
			r.logger.Error("staleness sweep failed", slog.String("error", err.Error()))
		} else {
			summary.Demoted = demoted
			summary.SweepRan = true
			metrics.OffersDemotedTotal.Add(float64(demoted))
		}
	} else {
		r.logger.Warn("no rows parsed, skipping staleness sweep")
	}

	summary.Duration = r.now().Sub(startedAt)

	result := "ok"
	if summary.FailedSrcs == len(r.sources) {
		result = "failed"
	} else if summary.FailedSrcs > 0 {
		result = "partial"
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()
	metrics.RunDurationSeconds.Observe(summary.Duration.Seconds())

	r.logger.Info("ingestion run finished",
		slog.String("result", result),
		slog.Int("parsed", summary.Parsed),
		slog.Int("kept", summary.Kept),
		slog.Int("rejected", summary.Rejected),
		slog.Int64("demoted", summary.Demoted),
		slog.Duration("duration", summary.Duration),
	)

	r.sendReport(ctx, summary)

	return summary, nil
}

func (r *Runner) runSource(ctx context.Context, source string) SourceSummary {
	src := SourceSummary{Source: source}

	body, err := r.fetcher.Fetch(ctx, source)
	if err != nil {
		r.logger.Error("fetch feed failed", slog.String("source", source), slog.String("error", err.Error()))
		metrics.SourceFailuresTotal.WithLabelValues(source).Inc()
		src.Err = err.Error()
		return src
	}

	rows, err := feed.ParseRows(body)
	if err != nil {
		r.logger.Error("parse feed failed", slog.String("source", source), slog.String("error", err.Error()))
		metrics.SourceFailuresTotal.WithLabelValues(source).Inc()
		src.Err = err.Error()
		return src
	}

	src.Parsed = len(rows)
	metrics.RowsParsedTotal.WithLabelValues(source).Add(float64(len(rows)))

	for _, row := range rows {
		rec := feed.Normalize(row, r.defaultCat)
		if rec == nil {
			src.Rejected++
			continue
		}
		if err := r.reconciler.Reconcile(ctx, rec); err != nil {
			// One bad row must not take the source down.
			r.logger.Error("reconcile row failed",
				slog.String("source", source),
				slog.String("product", rec.ProductName),
				slog.String("error", err.Error()),
			)
			src.Rejected++
			continue
		}
		src.Kept++
	}

	metrics.RowsKeptTotal.WithLabelValues(source).Add(float64(src.Kept))
	metrics.RowsRejectedTotal.WithLabelValues(source).Add(float64(src.Rejected))

	r.logger.Info("feed source processed",
		slog.String("source", source),
		slog.Int("parsed", src.Parsed),
		slog.Int("kept", src.Kept),
		slog.Int("rejected", src.Rejected),
	)
	return src
}

func (r *Runner) sendReport(ctx context.Context, summary *Summary) {
	if r.notifier == nil || r.notifyEmail == "" {
		return
	}
	report := &notify.RunReport{
		StartedAt:  summary.StartedAt,
		Duration:   summary.Duration,
		Sources:    len(summary.Sources),
		Failed:     summary.FailedSrcs,
		RowsParsed: summary.Parsed,
		RowsKept:   summary.Kept,
		Rejected:   summary.Rejected,
		Demoted:    summary.Demoted,
	}
	if err := r.notifier.SendRunReport(ctx, report, r.notifyEmail); err != nil {
		r.logger.Warn("send run report failed", slog.String("error", err.Error()))
	}
}

// RunEvery blocks, running once immediately and then on every tick until
// the context is cancelled. A run refused by the lock is skipped quietly.
func (r *Runner) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Run(ctx); err != nil {
			switch {
			case errors.Is(err, ErrRunInProgress):
				r.logger.Info("ingestion run skipped, another run in progress")
			case errors.Is(err, ErrNoSources):
				r.logger.Warn("no feed sources configured")
			default:
				r.logger.Error("ingestion run failed", slog.String("error", err.Error()))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
