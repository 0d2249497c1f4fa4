package query

import (
	"context"

	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS QUERIES
// Platform-wide figures for admins and organization managers.
// ══════════════════════════════════════════════════════════════════════════════

// AnalyticsHandler serves the live overview and stored snapshots.
type AnalyticsHandler struct {
	sources   analytics.Sources
	snapshots analytics.SnapshotRepository
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(sources analytics.Sources, snapshots analytics.SnapshotRepository) *AnalyticsHandler {
	return &AnalyticsHandler{sources: sources, snapshots: snapshots}
}

// Overview scans the whole store. Cost is linear in the number of records.
func (h *AnalyticsHandler) Overview(ctx context.Context, role shared.Role) (*analytics.Overview, error) {
	if !role.CanViewAnalytics() {
		return nil, shared.ErrRoleNotPermitted
	}
	data, err := h.sources.Load(ctx)
	if err != nil {
		return nil, err
	}
	o := analytics.Compute(data)
	return &o, nil
}

// Snapshots returns stored daily snapshots, newest first, at most limit
// (all when limit <= 0).
func (h *AnalyticsHandler) Snapshots(ctx context.Context, role shared.Role, limit int) ([]*analytics.Snapshot, error) {
	if !role.CanViewAnalytics() {
		return nil, shared.ErrRoleNotPermitted
	}
	list, err := h.snapshots.List(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
