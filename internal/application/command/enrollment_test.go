package command_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

func TestEnroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1", "m2")
	h := command.NewEnrollHandler(f.engineDeps())

	res, err := h.Handle(ctx, command.EnrollCommand{UserID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.False(t, res.AlreadyEnrolled)
	assert.Equal(t, "enrollment:u1:c1", res.Enrollment.ID)
	assert.Equal(t, enrollment.StatusInProgress, res.Enrollment.Status)
	assert.Zero(t, res.Enrollment.Progress)
	assert.Equal(t, testNow, res.Enrollment.EnrolledAt)
	assert.Equal(t, 1, f.events.count(shared.EventEnrollmentCreated))

	u, err := f.repos.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, u.EnrolledCourses)

	c, err := f.repos.Courses.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.EnrollmentCount)

	t.Run("second enroll returns the existing enrollment", func(t *testing.T) {
		again, err := h.Handle(ctx, command.EnrollCommand{UserID: "u1", CourseID: "c1"})
		require.NoError(t, err)
		assert.True(t, again.AlreadyEnrolled)

		c, err := f.repos.Courses.Get(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, 1, c.EnrollmentCount)

		u, err := f.repos.Users.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, u.EnrolledCourses, 1)
		assert.Equal(t, 1, f.events.count(shared.EventEnrollmentCreated))
	})
}

func TestEnroll_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1")
	h := command.NewEnrollHandler(f.engineDeps())

	_, err := h.Handle(ctx, command.EnrollCommand{UserID: "u1", CourseID: "missing"})
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)

	_, err = h.Handle(ctx, command.EnrollCommand{UserID: "ghost", CourseID: "c1"})
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	_, err = h.Handle(ctx, command.EnrollCommand{CourseID: "c1"})
	assert.True(t, shared.IsUnauthorized(err))

	_, err = h.Handle(ctx, command.EnrollCommand{UserID: "u1"})
	assert.True(t, shared.IsValidation(err))

	assert.Equal(t, 2, f.store.Len(), "only the user and course are stored")
}

func TestEnroll_ConcurrentDoubleEnroll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1")
	h := command.NewEnrollHandler(f.engineDeps())

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(ctx, command.EnrollCommand{UserID: "u1", CourseID: "c1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := f.repos.Enrollments.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	c, err := f.repos.Courses.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.EnrollmentCount)

	u, err := f.repos.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, u.EnrolledCourses)
	assert.Zero(t, f.locker.Held())
}

func TestEnroll_ConcurrentDifferentUsersKeepEveryIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCourse(t, "c1", "m1")
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, id := range ids {
		f.addUser(t, id, shared.RoleLearner)
	}
	h := command.NewEnrollHandler(f.engineDeps())

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.Handle(ctx, command.EnrollCommand{UserID: id, CourseID: "c1"})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	c, err := f.repos.Courses.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, len(ids), c.EnrollmentCount)
}

func TestCompleteModule_TwoModuleCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1", "m2")
	f.enroll(t, "u1", "c1")
	h := command.NewCompleteModuleHandler(f.engineDeps())

	res, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m1"})
	require.NoError(t, err)
	assert.True(t, res.ModuleAdded)
	assert.False(t, res.CourseCompleted)
	assert.Equal(t, 50.0, res.Enrollment.Progress)
	assert.Equal(t, enrollment.StatusInProgress, res.Enrollment.Status)

	// repeating a module changes nothing
	res, err = h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m1"})
	require.NoError(t, err)
	assert.False(t, res.ModuleAdded)
	assert.Equal(t, []string{"m1"}, res.Enrollment.CompletedModules)
	assert.Equal(t, 50.0, res.Enrollment.Progress)

	res, err = h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m2"})
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	assert.Equal(t, 100.0, res.Enrollment.Progress)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)
	require.NotNil(t, res.Enrollment.CompletedAt)
	firstCompletedAt := *res.Enrollment.CompletedAt

	u, err := f.repos.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, u.CompletedCourses)

	// completedAt is set once and status never regresses
	res, err = h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m2", MarkCompleted: true})
	require.NoError(t, err)
	assert.False(t, res.CourseCompleted)
	assert.Equal(t, firstCompletedAt, *res.Enrollment.CompletedAt)

	u, err = f.repos.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u.CompletedCourses, 1)

	assert.Equal(t, 2, f.events.count(shared.EventModuleCompleted))
	assert.Equal(t, 1, f.events.count(shared.EventCourseCompleted))
}

func TestCompleteModule_ExplicitProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1", "m2", "m3", "m4")
	f.enroll(t, "u1", "c1")
	h := command.NewCompleteModuleHandler(f.engineDeps())

	p := 30.0
	res, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", Progress: &p})
	require.NoError(t, err)
	assert.Equal(t, 30.0, res.Enrollment.Progress)
	assert.Empty(t, res.Enrollment.CompletedModules)

	over := 250.0
	res, err = h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", Progress: &over})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Enrollment.Progress)
	assert.True(t, res.CourseCompleted)
}

func TestCompleteModule_MarkCompletedForcesFullProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1", "m2", "m3")
	f.enroll(t, "u1", "c1")

	res, err := command.NewCompleteModuleHandler(f.engineDeps()).Handle(ctx, command.CompleteModuleCommand{
		UserID: "u1", CourseID: "c1", ModuleID: "m1", MarkCompleted: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Enrollment.Progress)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)
	assert.True(t, res.CourseCompleted)
}

func TestCompleteModule_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1")
	h := command.NewCompleteModuleHandler(f.engineDeps())

	_, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m1"})
	assert.ErrorIs(t, err, shared.ErrEnrollmentNotFound)

	f.enroll(t, "u1", "c1")
	_, err = h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "nope"})
	assert.True(t, shared.IsValidation(err))

	enr, err := f.repos.Enrollments.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Empty(t, enr.CompletedModules)
}

func TestCompleteModule_DeletedCourseKeepsProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	f.addCourse(t, "c1", "m1", "m2")
	f.enroll(t, "u1", "c1")
	h := command.NewCompleteModuleHandler(f.engineDeps())

	_, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m1"})
	require.NoError(t, err)
	require.NoError(t, f.repos.Courses.Delete(ctx, "c1"))

	res, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: "m2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, res.Enrollment.CompletedModules)
	assert.Equal(t, 50.0, res.Enrollment.Progress)
}

func TestCompleteModule_ConcurrentModulesAllRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "u1", shared.RoleLearner)
	modules := []string{"m1", "m2", "m3", "m4", "m5"}
	f.addCourse(t, "c1", modules...)
	f.enroll(t, "u1", "c1")
	h := command.NewCompleteModuleHandler(f.engineDeps())

	var wg sync.WaitGroup
	for _, m := range modules {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, err := h.Handle(ctx, command.CompleteModuleCommand{UserID: "u1", CourseID: "c1", ModuleID: m})
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()

	enr, err := f.repos.Enrollments.Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, modules, enr.CompletedModules)
	assert.Equal(t, 100.0, enr.Progress)
	assert.Equal(t, enrollment.StatusCompleted, enr.Status)
	assert.Equal(t, 1, f.events.count(shared.EventCourseCompleted))
}
