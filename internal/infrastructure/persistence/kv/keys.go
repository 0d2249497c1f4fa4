package kv

import (
	"strings"

	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/progress"
)

// Key prefixes. Every entity kind owns one.
const (
	PrefixUser          = "user:"
	PrefixCourse        = "course:"
	PrefixEnrollment    = "enrollment:"
	PrefixVideoProgress = "video_progress:"
	PrefixPath          = "path:"
	PrefixCredential    = "credential:"
	PrefixSnapshot      = "analytics_snapshot:"
)

func UserKey(id string) string   { return PrefixUser + id }
func CourseKey(id string) string { return PrefixCourse + id }
func PathKey(id string) string   { return PrefixPath + id }

// EnrollmentKey is enrollment:{userId}:{courseId}.
func EnrollmentKey(userID, courseID string) string {
	return enrollment.ID(userID, courseID)
}

// UserEnrollmentsPrefix matches every enrollment of one user.
func UserEnrollmentsPrefix(userID string) string {
	return PrefixEnrollment + userID + ":"
}

// VideoProgressKey is video_progress:{userId}:{courseId}:{moduleId}.
func VideoProgressKey(userID, courseID, moduleID string) string {
	return progress.Key(userID, courseID, moduleID)
}

// CourseVideoProgressPrefix matches one user's samples within one course.
func CourseVideoProgressPrefix(userID, courseID string) string {
	return PrefixVideoProgress + userID + ":" + courseID + ":"
}

// CredentialKey normalizes the e-mail so lookups are case-insensitive.
func CredentialKey(email string) string {
	return PrefixCredential + strings.ToLower(strings.TrimSpace(email))
}

// SnapshotKey is analytics_snapshot:{yyyy-mm-dd}.
func SnapshotKey(date string) string {
	return PrefixSnapshot + date
}

// PrefixUpperBound returns the smallest string greater than every string
// starting with prefix, for range scans over ordered backends. ok is false
// when no such bound exists.
func PrefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}
