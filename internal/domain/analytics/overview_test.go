package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Empty(t *testing.T) {
	o := Compute(Dataset{})

	assert.Zero(t, o.TotalEnrollments)
	assert.Zero(t, o.CompletionRate)
	assert.Zero(t, o.AverageProgress)
	assert.NotNil(t, o.TopCourses)
	assert.NotNil(t, o.RecentEnrollments)
}

func TestCompute(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var courses []*course.Course
	for i := 0; i < 12; i++ {
		courses = append(courses, &course.Course{ID: fmt.Sprintf("c%d", i), EnrollmentCount: i})
	}

	var enrollments []*enrollment.Enrollment
	for i := 0; i < 25; i++ {
		e, _ := enrollment.New("u1", fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Hour))
		if i%5 == 0 {
			e.Complete(base)
		}
		enrollments = append(enrollments, e)
	}

	users := []*user.User{
		{ID: "u1", EnrolledCourses: []string{"c1"}},
		{ID: "u2"},
	}

	o := Compute(Dataset{
		Users:       users,
		Courses:     courses,
		Enrollments: enrollments,
		Paths:       []*learningpath.LearningPath{{ID: "p1"}},
	})

	assert.Equal(t, 2, o.TotalUsers)
	assert.Equal(t, 12, o.TotalCourses)
	assert.Equal(t, 25, o.TotalEnrollments)
	assert.Equal(t, 1, o.TotalLearningPaths)
	assert.Equal(t, 1, o.ActiveUsers)
	assert.InDelta(t, 20.0, o.CompletionRate, 1e-9)
	assert.InDelta(t, 20.0, o.AverageProgress, 1e-9)

	require.Len(t, o.TopCourses, TopCoursesLimit)
	assert.Equal(t, "c11", o.TopCourses[0].ID)
	assert.Equal(t, "c2", o.TopCourses[9].ID)

	require.Len(t, o.RecentEnrollments, RecentEnrollmentsLimit)
	assert.Equal(t, "enrollment:u1:c24", o.RecentEnrollments[0].ID)

	// inputs keep their order
	assert.Equal(t, "c0", courses[0].ID)
}

func TestSummarizeUser(t *testing.T) {
	now := time.Now()
	a, _ := enrollment.New("u1", "c1", now)
	a.SetProgress(50)
	b, _ := enrollment.New("u1", "c2", now)
	b.Complete(now)

	up := SummarizeUser([]CourseProgress{{Enrollment: a}, {Enrollment: b}})
	assert.Equal(t, 2, up.TotalEnrolled)
	assert.Equal(t, 1, up.InProgress)
	assert.Equal(t, 1, up.Completed)
	assert.InDelta(t, 75.0, up.AverageProgress, 1e-9)

	empty := SummarizeUser(nil)
	assert.Zero(t, empty.AverageProgress)
	assert.NotNil(t, empty.Courses)
}

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2025, 6, 7, 23, 30, 0, 0, time.UTC)
	s := NewSnapshot(Overview{TotalUsers: 3}, at)
	assert.Equal(t, "2025-06-07", s.Date)
	assert.Equal(t, 3, s.TotalUsers)
}
