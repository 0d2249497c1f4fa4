// Package progress models per-module video watch samples.
//
// Watch time is an approximation: clients report wall-clock time elapsed
// since the video opened, not the player position, because the embedded
// player exposes no progress callback.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// CompletionThreshold is the watched percentage at which a module counts as
// completed.
const CompletionThreshold = 90.0

// SampleInterval is how often clients submit a sample while a video is open.
const SampleInterval = 10 * time.Second

// VideoProgress is the latest watch sample for one (user, course, module).
// Each sample overwrites the previous one; values may go down.
type VideoProgress struct {
	UserID         string    `json:"userId"`
	CourseID       string    `json:"courseId"`
	ModuleID       string    `json:"moduleId"`
	WatchedSeconds float64   `json:"watchedSeconds"`
	TotalSeconds   float64   `json:"totalSeconds"`
	Percentage     float64   `json:"percentage"`
	LastWatchedAt  time.Time `json:"lastWatchedAt"`
	Completed      bool      `json:"completed"`
}

// Sample is one client report.
type Sample struct {
	WatchedSeconds float64
	TotalSeconds   float64
	Percentage     float64
}

// Key builds the storage key of a sample triple.
func Key(userID, courseID, moduleID string) string {
	return fmt.Sprintf("video_progress:%s:%s:%s", userID, courseID, moduleID)
}

// New records a sample. Completed is derived from the percentage alone.
// Percentages a little over 100 from player rounding are stored as 100.
func New(userID, courseID, moduleID string, s Sample, now time.Time) (*VideoProgress, error) {
	if userID == "" || courseID == "" || moduleID == "" {
		return nil, shared.Validation("progress", "New", "user, course and module ids are required")
	}
	if s.WatchedSeconds < 0 || s.TotalSeconds < 0 || isBad(s.WatchedSeconds) || isBad(s.TotalSeconds) {
		return nil, shared.Validation("progress", "New", "seconds must be non-negative numbers")
	}
	if isBad(s.Percentage) || s.Percentage < 0 {
		return nil, shared.ErrInvalidPercentage
	}
	s.Percentage = math.Min(s.Percentage, 100)

	return &VideoProgress{
		UserID:         userID,
		CourseID:       courseID,
		ModuleID:       moduleID,
		WatchedSeconds: s.WatchedSeconds,
		TotalSeconds:   s.TotalSeconds,
		Percentage:     s.Percentage,
		LastWatchedAt:  now,
		Completed:      IsComplete(s.Percentage),
	}, nil
}

// IsComplete applies the completion threshold.
func IsComplete(percentage float64) bool {
	return percentage >= CompletionThreshold
}

// EstimateFromElapsed turns wall-clock time since the video opened into a
// sample. resumeFrom is the previously stored watched position. Watched time
// is capped at the total; a zero total yields a zero percentage.
func EstimateFromElapsed(elapsed time.Duration, resumeFrom, totalSeconds float64) Sample {
	watched := elapsed.Seconds() + math.Max(resumeFrom, 0)
	if totalSeconds > 0 && watched > totalSeconds {
		watched = totalSeconds
	}

	pct := 0.0
	if totalSeconds > 0 {
		pct = math.Min(watched/totalSeconds*100, 100)
	}
	return Sample{
		WatchedSeconds: math.Floor(watched),
		TotalSeconds:   totalSeconds,
		Percentage:     pct,
	}
}

func isBad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
