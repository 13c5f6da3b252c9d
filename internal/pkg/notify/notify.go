package notify

import (
	"context"
	"time"
)

// RunReport summarizes a finished ingestion run for notification purposes.
type RunReport struct {
	StartedAt  time.Time
	Duration   time.Duration
	Sources    int
	Failed     int
	RowsParsed int
	RowsKept   int
	Rejected   int
	Demoted    int64
	Err        error
}

// Notifier delivers run reports to operators.
type Notifier interface {
	// SendRunReport sends a summary of one ingestion run.
	SendRunReport(ctx context.Context, report *RunReport, toEmail string) error
}
