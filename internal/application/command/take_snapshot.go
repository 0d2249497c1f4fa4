package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// TakeAnalyticsSnapshotHandler computes the overview and stores it under
// today's date. A second run on the same day overwrites the first.
type TakeAnalyticsSnapshotHandler struct {
	sources   analytics.Sources
	snapshots analytics.SnapshotRepository
	publisher shared.EventPublisher
	clock     shared.Clock
}

// NewTakeAnalyticsSnapshotHandler creates a new TakeAnalyticsSnapshotHandler.
func NewTakeAnalyticsSnapshotHandler(
	sources analytics.Sources,
	snapshots analytics.SnapshotRepository,
	publisher shared.EventPublisher,
	clock shared.Clock,
) *TakeAnalyticsSnapshotHandler {
	if publisher == nil {
		publisher = shared.NoopPublisher{}
	}
	return &TakeAnalyticsSnapshotHandler{
		sources:   sources,
		snapshots: snapshots,
		publisher: publisher,
		clock:     clock.OrSystem(),
	}
}

// Handle executes the snapshot.
func (h *TakeAnalyticsSnapshotHandler) Handle(ctx context.Context) (*analytics.Snapshot, error) {
	data, err := h.sources.Load(ctx)
	if err != nil {
		return nil, err
	}

	now := h.clock()
	snap := analytics.NewSnapshot(analytics.Compute(data), now)
	if err := h.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	_ = h.publisher.Publish(shared.NewSnapshotTakenEvent(snap.Date, snap.TotalEnrollments, now))
	return snap, nil
}
