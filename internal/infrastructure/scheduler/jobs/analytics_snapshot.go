// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"log/slog"

	"github.com/learnhub/learning-hub/internal/domain/analytics"
)

// SnapshotTaker computes and stores today's analytics snapshot.
type SnapshotTaker interface {
	Handle(ctx context.Context) (*analytics.Snapshot, error)
}

// AnalyticsSnapshotJob stores the platform overview once per run under the
// run's date.
type AnalyticsSnapshotJob struct {
	taker   SnapshotTaker
	enabled func() bool
	logger  *slog.Logger
}

// NewAnalyticsSnapshotJob creates the job. enabled may be nil; when it
// returns false the run is skipped.
func NewAnalyticsSnapshotJob(taker SnapshotTaker, enabled func() bool, logger *slog.Logger) *AnalyticsSnapshotJob {
	if logger == nil {
		logger = slog.Default()
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	return &AnalyticsSnapshotJob{
		taker:   taker,
		enabled: enabled,
		logger:  logger.With("job", "analytics_snapshot"),
	}
}

// Name implements scheduler.Job.
func (j *AnalyticsSnapshotJob) Name() string { return "analytics_snapshot" }

// Description implements scheduler.Job.
func (j *AnalyticsSnapshotJob) Description() string {
	return "Store the daily analytics overview"
}

// Run implements scheduler.Job.
func (j *AnalyticsSnapshotJob) Run(ctx context.Context) error {
	if !j.enabled() {
		j.logger.Info("analytics snapshots disabled, skipping")
		return nil
	}

	snap, err := j.taker.Handle(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("analytics snapshot stored",
		"date", snap.Date,
		"total_users", snap.TotalUsers,
		"total_courses", snap.TotalCourses,
		"total_enrollments", snap.TotalEnrollments,
		"completion_rate", snap.CompletionRate,
	)
	return nil
}
