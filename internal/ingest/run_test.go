package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"pricehound/internal/feed"
	"pricehound/internal/pkg/metrics"
)

const feedHeader = "product_name;brand;price;deeplink\n"

type fakeFetcher struct {
	feeds map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, source string) (string, error) {
	if err := f.errs[source]; err != nil {
		return "", err
	}
	body, ok := f.feeds[source]
	if !ok {
		return "", fmt.Errorf("unknown source %q", source)
	}
	return body, nil
}

type fakeReconciler struct {
	records []*feed.Record
	failOn  string
}

func (r *fakeReconciler) Reconcile(_ context.Context, rec *feed.Record) error {
	if r.failOn != "" && rec.ProductName == r.failOn {
		return errors.New("boom")
	}
	r.records = append(r.records, rec)
	return nil
}

type fakeSweeper struct {
	calls      int
	watermark  time.Time
	demoted    int64
	sweepError error
}

func (s *fakeSweeper) DemoteStaleOffers(_ context.Context, watermark time.Time) (int64, error) {
	s.calls++
	s.watermark = watermark
	return s.demoted, s.sweepError
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(fetcher *fakeFetcher, rec *fakeReconciler, sweeper *fakeSweeper, sources ...string) *Runner {
	metrics.InitMetrics()
	return NewRunner(fetcher, rec, sweeper, NewLocalLock(), nil, discardLogger(), RunnerOptions{
		Sources:         sources,
		DefaultCategory: "skis-all-mountain",
	})
}

func TestRun_NoSources(t *testing.T) {
	r := newTestRunner(&fakeFetcher{}, &fakeReconciler{}, &fakeSweeper{})
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("err = %v, want ErrNoSources", err)
	}
}

func TestRun_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string]string{
		"a.csv": feedHeader +
			"Atomic Bent 100;Atomic;549,00;https://x/a\n" +
			"Salomon QST 98;Salomon;479,00;https://x/b\n",
	}}
	rec := &fakeReconciler{}
	sweeper := &fakeSweeper{demoted: 3}
	r := newTestRunner(fetcher, rec, sweeper, "a.csv")

	before := time.Now()
	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.Parsed != 2 || summary.Kept != 2 || summary.Rejected != 0 {
		t.Errorf("counters = %d/%d/%d", summary.Parsed, summary.Kept, summary.Rejected)
	}
	if len(rec.records) != 2 {
		t.Fatalf("reconciled %d records", len(rec.records))
	}
	if rec.records[0].Category != "skis-all-mountain" {
		t.Errorf("default category not applied: %q", rec.records[0].Category)
	}
	if !summary.SweepRan || summary.Demoted != 3 {
		t.Errorf("sweep: ran=%v demoted=%d", summary.SweepRan, summary.Demoted)
	}
	if sweeper.calls != 1 {
		t.Fatalf("sweeper called %d times", sweeper.calls)
	}
	if sweeper.watermark.Before(before) {
		t.Errorf("watermark %v predates run start %v", sweeper.watermark, before)
	}
}

func TestRun_SourceFailureIsolated(t *testing.T) {
	fetcher := &fakeFetcher{
		feeds: map[string]string{
			"good.csv": feedHeader + "Atomic Bent 100;Atomic;549,00;https://x/a\n",
		},
		errs: map[string]error{"bad.csv": errors.New("connection refused")},
	}
	rec := &fakeReconciler{}
	sweeper := &fakeSweeper{}
	r := newTestRunner(fetcher, rec, sweeper, "bad.csv", "good.csv")

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.FailedSrcs != 1 {
		t.Errorf("failed sources = %d", summary.FailedSrcs)
	}
	if summary.Kept != 1 {
		t.Errorf("kept = %d, the healthy source must still land", summary.Kept)
	}
	if summary.Sources[0].Err == "" {
		t.Error("failed source carries no error")
	}
	if !summary.SweepRan {
		t.Error("sweep skipped although one source parsed rows")
	}
}

func TestRun_AllSourcesFailSkipsSweep(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"a.csv": errors.New("timeout"),
		"b.csv": errors.New("timeout"),
	}}
	sweeper := &fakeSweeper{}
	r := newTestRunner(fetcher, &fakeReconciler{}, sweeper, "a.csv", "b.csv")

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if sweeper.calls != 0 {
		t.Fatal("sweep must not run when nothing was parsed")
	}
	if summary.SweepRan {
		t.Error("SweepRan = true")
	}
	if summary.FailedSrcs != 2 {
		t.Errorf("failed sources = %d", summary.FailedSrcs)
	}
}

func TestRun_BadRowsCountedNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string]string{
		"a.csv": feedHeader +
			"Atomic Bent 100;Atomic;549,00;https://x/a\n" +
			";;no price;\n" +
			"Salomon QST 98;Salomon;garbage;https://x/b\n",
	}}
	rec := &fakeReconciler{}
	r := newTestRunner(fetcher, rec, &fakeSweeper{}, "a.csv")

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Parsed != 3 || summary.Kept != 1 || summary.Rejected != 2 {
		t.Errorf("counters = %d/%d/%d, want 3/1/2", summary.Parsed, summary.Kept, summary.Rejected)
	}
}

func TestRun_ReconcileErrorIsolated(t *testing.T) {
	fetcher := &fakeFetcher{feeds: map[string]string{
		"a.csv": feedHeader +
			"Atomic Bent 100;Atomic;549,00;https://x/a\n" +
			"Salomon QST 98;Salomon;479,00;https://x/b\n",
	}}
	rec := &fakeReconciler{failOn: "Atomic Bent 100"}
	r := newTestRunner(fetcher, rec, &fakeSweeper{}, "a.csv")

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Kept != 1 || summary.Rejected != 1 {
		t.Errorf("counters = kept %d rejected %d", summary.Kept, summary.Rejected)
	}
}

func TestRun_LockRefusal(t *testing.T) {
	lock := NewLocalLock()
	release, err := lock.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	metrics.InitMetrics()
	r := NewRunner(&fakeFetcher{}, &fakeReconciler{}, &fakeSweeper{}, lock, nil, discardLogger(), RunnerOptions{
		Sources: []string{"a.csv"},
	})
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}
}
