package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

func (f *fixture) courseDeps() command.CourseDeps {
	n := 0
	return command.CourseDeps{
		Courses:   f.repos.Courses,
		Locker:    f.locker,
		Publisher: f.events,
		Clock:     fixedClock,
		NewID: func() string {
			n++
			return "course-" + string(rune('0'+n))
		},
	}
}

func TestCreateCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := command.NewCreateCourseHandler(f.courseDeps())
	draft := course.Draft{
		Title:   "  Revit Fundamentals ",
		Level:   course.LevelBeginner,
		Modules: []course.Module{{ID: "m1", Title: "Intro"}},
	}

	c, err := h.Handle(ctx, command.CreateCourseCommand{
		Actor: command.Actor{UserID: "inst", Role: shared.RoleInstructor},
		Draft: draft,
	})
	require.NoError(t, err)
	assert.Equal(t, "course-1", c.ID)
	assert.Equal(t, "Revit Fundamentals", c.Title)
	assert.Equal(t, "inst", c.CreatedBy)
	assert.Zero(t, c.EnrollmentCount)
	assert.Equal(t, 1, f.events.count(shared.EventCourseCreated))

	stored, err := f.repos.Courses.Get(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, c.Title, stored.Title)

	t.Run("learners cannot author", func(t *testing.T) {
		_, err := h.Handle(ctx, command.CreateCourseCommand{
			Actor: command.Actor{UserID: "l", Role: shared.RoleLearner},
			Draft: draft,
		})
		assert.ErrorIs(t, err, shared.ErrRoleNotPermitted)
	})

	t.Run("draft is validated", func(t *testing.T) {
		_, err := h.Handle(ctx, command.CreateCourseCommand{
			Actor: command.Actor{UserID: "inst", Role: shared.RoleInstructor},
			Draft: course.Draft{Title: "x", Level: "Expert"},
		})
		assert.True(t, shared.IsValidation(err))
	})
}

func TestUpdateCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCourse(t, "c1", "m1")
	h := command.NewUpdateCourseHandler(f.courseDeps())
	admin := command.Actor{UserID: "root", Role: shared.RoleAdmin}

	title := "Advanced Revit"
	level := course.LevelAdvanced
	c, err := h.Handle(ctx, command.UpdateCourseCommand{
		Actor: admin, CourseID: "c1",
		Patch: course.Patch{Title: &title, Level: &level},
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Revit", c.Title)
	assert.Equal(t, course.LevelAdvanced, c.Level)
	require.NotNil(t, c.UpdatedAt)

	bad := course.Level("Expert")
	_, err = h.Handle(ctx, command.UpdateCourseCommand{Actor: admin, CourseID: "c1", Patch: course.Patch{Level: &bad}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, command.UpdateCourseCommand{Actor: admin, CourseID: "missing", Patch: course.Patch{Title: &title}})
	assert.ErrorIs(t, err, shared.ErrCourseNotFound)

	stored, err := f.repos.Courses.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, course.LevelAdvanced, stored.Level)
}

func TestDeleteCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addCourse(t, "c1", "m1") // created by "author"
	h := command.NewDeleteCourseHandler(f.courseDeps())

	err := h.Handle(ctx, command.DeleteCourseCommand{
		Actor: command.Actor{UserID: "someone-else", Role: shared.RoleInstructor}, CourseID: "c1",
	})
	assert.ErrorIs(t, err, shared.ErrNotCourseOwner)
	assert.True(t, shared.IsForbidden(err))

	err = h.Handle(ctx, command.DeleteCourseCommand{
		Actor: command.Actor{UserID: "author", Role: shared.RoleInstructor}, CourseID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.count(shared.EventCourseDeleted))

	_, err = f.repos.Courses.Get(ctx, "c1")
	assert.True(t, shared.IsNotFound(err))

	f.addCourse(t, "c2", "m1")
	err = h.Handle(ctx, command.DeleteCourseCommand{
		Actor: command.Actor{UserID: "root", Role: shared.RoleAdmin}, CourseID: "c2",
	})
	assert.NoError(t, err)
}

func TestCreateLearningPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := command.NewCreateLearningPathHandler(f.repos.Paths, fixedClock)
	draft := learningpath.Draft{
		Title:           "BIM Mastery",
		RequiredCourses: []string{"c1", "does-not-exist"},
	}

	_, err := h.Handle(ctx, command.CreateLearningPathCommand{
		Actor: command.Actor{UserID: "inst", Role: shared.RoleInstructor}, Draft: draft,
	})
	assert.ErrorIs(t, err, shared.ErrRoleNotPermitted)

	p, err := h.Handle(ctx, command.CreateLearningPathCommand{
		Actor: command.Actor{UserID: "root", Role: shared.RoleAdmin}, Draft: draft,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []string{"c1", "does-not-exist"}, p.RequiredCourses)
	assert.Equal(t, []string{}, p.OptionalCourses)

	stored, err := f.repos.Paths.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "BIM Mastery", stored.Title)
}
