package course

import (
	"testing"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDraft() Draft {
	return Draft{
		Title:       "Revit Fundamentals",
		Description: "Learn the basics of BIM modeling",
		Category:    "BIM",
		Level:       LevelBeginner,
		Instructor:  "Sarah Johnson",
		Tags:        []string{"Revit", "BIM"},
		Modules: []Module{
			{ID: "m1", Title: "Intro", Duration: "45 min"},
			{ID: "m2", Title: "Walls", Duration: "1h 30m"},
		},
	}
}

func TestNew(t *testing.T) {
	now := time.Now().UTC()
	c, err := New("c1", "u1", sampleDraft(), now)
	require.NoError(t, err)

	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "u1", c.CreatedBy)
	assert.Zero(t, c.EnrollmentCount)
	assert.Zero(t, c.Rating)
	assert.Len(t, c.Modules, 2)
	assert.True(t, c.HasModule("m2"))
	assert.False(t, c.HasModule("m9"))
}

func TestNew_Rejects(t *testing.T) {
	d := sampleDraft()
	d.Title = "  "
	_, err := New("c1", "u1", d, time.Now())
	assert.True(t, shared.IsValidation(err))

	d = sampleDraft()
	d.Level = "Expert"
	_, err = New("c1", "u1", d, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidLevel)

	d = sampleDraft()
	d.Modules = append(d.Modules, Module{ID: "m1", Title: "Again"})
	_, err = New("c1", "u1", d, time.Now())
	assert.ErrorIs(t, err, shared.ErrDuplicateModule)
}

func TestCanBeDeletedBy(t *testing.T) {
	c := &Course{CreatedBy: "owner"}

	assert.True(t, c.CanBeDeletedBy("owner", shared.RoleInstructor))
	assert.True(t, c.CanBeDeletedBy("someone", shared.RoleAdmin))
	assert.False(t, c.CanBeDeletedBy("someone", shared.RoleInstructor))
	assert.False(t, (&Course{}).CanBeDeletedBy("", shared.RoleInstructor))
}

func TestParseDurationSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"45 min", 2700},
		{"1h 30m", 5400},
		{"90m", 5400},
		{"1.5h", 5400},
		{"2 hours", 7200},
		{"30", 1800},
		{"90 seconds", 90},
		{"30 sec", 30},
		{"45s", 45},
		{"1h30", 5400},
		{"2m15", 135},
		{"1 hour 15 minutes", 4500},
		{"8 hours, 12 lessons", 28800},
		{"12 lessons", DefaultModuleSeconds},
		{"", DefaultModuleSeconds},
		{"soon", DefaultModuleSeconds},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseDurationSeconds(tt.in), 1e-9)
		})
	}
}

func TestLengthSeconds_PrefersVideoDuration(t *testing.T) {
	secs := 321.0
	m := Module{Duration: "45 min", VideoDurationSeconds: &secs}
	assert.Equal(t, 321.0, m.LengthSeconds())

	m.VideoDurationSeconds = nil
	assert.Equal(t, 2700.0, m.LengthSeconds())
}

func TestPatch_Apply(t *testing.T) {
	c, _ := New("c1", "u1", sampleDraft(), time.Now())
	c.EnrollmentCount = 7

	title := "Revit Advanced"
	level := LevelAdvanced
	now := time.Now().UTC()
	err := Patch{Title: &title, Level: &level}.Apply(c, now)
	require.NoError(t, err)

	assert.Equal(t, "Revit Advanced", c.Title)
	assert.Equal(t, LevelAdvanced, c.Level)
	assert.Equal(t, "BIM", c.Category)
	assert.Equal(t, 7, c.EnrollmentCount)
	require.NotNil(t, c.UpdatedAt)
	assert.Equal(t, now, *c.UpdatedAt)
}

func TestPatch_InvalidLeavesCourseUntouched(t *testing.T) {
	c, _ := New("c1", "u1", sampleDraft(), time.Now())

	title := "New title"
	dup := []Module{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}
	err := Patch{Title: &title, Modules: &dup}.Apply(c, time.Now())

	assert.ErrorIs(t, err, shared.ErrDuplicateModule)
	assert.Equal(t, "Revit Fundamentals", c.Title)
	assert.Len(t, c.Modules, 2)
	assert.Nil(t, c.UpdatedAt)
}

func TestFilter(t *testing.T) {
	courses := []*Course{
		{ID: "1", Title: "Revit Fundamentals", Category: "BIM", Level: LevelBeginner, Instructor: "Sarah", Tags: []string{"Revit", "BIM"}},
		{ID: "2", Title: "MEP Coordination", Description: "Navisworks clash detection", Category: "MEPF", Level: LevelIntermediate, Instructor: "Michael", Tags: []string{"Navisworks"}},
		{ID: "3", Title: "Python Automation", Category: "Software Development", Level: LevelAdvanced, Instructor: "David", Tags: []string{"Python", "Dynamo"}},
	}

	ids := func(cs []*Course) []string {
		out := []string{}
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Filter{}.Apply(courses)))
	assert.Equal(t, []string{"2"}, ids(Filter{Category: "MEPF"}.Apply(courses)))
	assert.Equal(t, []string{"3"}, ids(Filter{Level: "Advanced"}.Apply(courses)))
	assert.Equal(t, []string{"1"}, ids(Filter{Instructor: "Sarah"}.Apply(courses)))
	assert.Equal(t, []string{"1", "3"}, ids(Filter{Tags: []string{"BIM", "Dynamo"}}.Apply(courses)))
	assert.Equal(t, []string{"2"}, ids(Filter{Search: "CLASH"}.Apply(courses)))
	assert.Empty(t, Filter{Category: "BIM", Level: "Advanced"}.Apply(courses))
}

func TestParseTags(t *testing.T) {
	assert.Nil(t, ParseTags(""))
	assert.Equal(t, []string{"a", "b"}, ParseTags(" a, ,b "))
}
