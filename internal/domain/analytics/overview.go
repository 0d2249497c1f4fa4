// Package analytics contains the platform-wide aggregates computed from a full
// store scan.
package analytics

import (
	"sort"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

const (
	// TopCoursesLimit caps Overview.TopCourses.
	TopCoursesLimit = 10
	// RecentEnrollmentsLimit caps Overview.RecentEnrollments.
	RecentEnrollmentsLimit = 20
)

// Overview is the aggregate shown to administrators.
type Overview struct {
	TotalUsers         int                      `json:"totalUsers"`
	TotalCourses       int                      `json:"totalCourses"`
	TotalEnrollments   int                      `json:"totalEnrollments"`
	TotalLearningPaths int                      `json:"totalLearningPaths"`
	ActiveUsers        int                      `json:"activeUsers"`
	CompletionRate     float64                  `json:"completionRate"`
	AverageProgress    float64                  `json:"averageProgress"`
	TopCourses         []*course.Course         `json:"topCourses"`
	RecentEnrollments  []*enrollment.Enrollment `json:"recentEnrollments"`
}

// Dataset is everything the overview reads.
type Dataset struct {
	Users       []*user.User
	Courses     []*course.Course
	Enrollments []*enrollment.Enrollment
	Paths       []*learningpath.LearningPath
}

// Compute reduces the dataset. With no enrollments the rate and average are 0.
// Input slices are not reordered.
func Compute(d Dataset) Overview {
	o := Overview{
		TotalUsers:         len(d.Users),
		TotalCourses:       len(d.Courses),
		TotalEnrollments:   len(d.Enrollments),
		TotalLearningPaths: len(d.Paths),
	}

	for _, u := range d.Users {
		if u.IsActive() {
			o.ActiveUsers++
		}
	}

	completed := 0
	sum := 0.0
	for _, e := range d.Enrollments {
		if e.IsCompleted() {
			completed++
		}
		sum += e.Progress
	}
	if n := len(d.Enrollments); n > 0 {
		o.CompletionRate = float64(completed) / float64(n) * 100
		o.AverageProgress = sum / float64(n)
	}

	courses := append([]*course.Course(nil), d.Courses...)
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].EnrollmentCount > courses[j].EnrollmentCount
	})
	o.TopCourses = head(courses, TopCoursesLimit)

	enrollments := append([]*enrollment.Enrollment(nil), d.Enrollments...)
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].EnrolledAt.After(enrollments[j].EnrolledAt)
	})
	o.RecentEnrollments = head(enrollments, RecentEnrollmentsLimit)

	return o
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-user progress
// ─────────────────────────────────────────────────────────────────────────────

// CourseProgress pairs an enrollment with its course. Course is nil when the
// course has been deleted.
type CourseProgress struct {
	*enrollment.Enrollment
	Course *course.Course `json:"course"`
}

// UserProgress summarizes one user's enrollments.
type UserProgress struct {
	TotalEnrolled   int              `json:"totalEnrolled"`
	InProgress      int              `json:"inProgress"`
	Completed       int              `json:"completed"`
	AverageProgress float64          `json:"averageProgress"`
	Courses         []CourseProgress `json:"courses"`
}

// SummarizeUser reduces one user's enrollments.
func SummarizeUser(courses []CourseProgress) UserProgress {
	up := UserProgress{TotalEnrolled: len(courses), Courses: courses}
	if up.Courses == nil {
		up.Courses = []CourseProgress{}
	}
	sum := 0.0
	for _, c := range courses {
		if c.IsCompleted() {
			up.Completed++
		} else {
			up.InProgress++
		}
		sum += c.Progress
	}
	if len(courses) > 0 {
		up.AverageProgress = sum / float64(len(courses))
	}
	return up
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots
// ─────────────────────────────────────────────────────────────────────────────

// SnapshotDateLayout names snapshots by UTC day.
const SnapshotDateLayout = "2006-01-02"

// Snapshot is an overview persisted by the worker.
type Snapshot struct {
	Date    string    `json:"date"`
	TakenAt time.Time `json:"takenAt"`
	Overview
}

// NewSnapshot stamps an overview with the UTC day of at.
func NewSnapshot(o Overview, at time.Time) *Snapshot {
	return &Snapshot{
		Date:     at.UTC().Format(SnapshotDateLayout),
		TakenAt:  at,
		Overview: o,
	}
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	if s == nil {
		return []T{}
	}
	return s
}
