package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED CATALOG COMMAND
// Loads the sample courses and learning path. Records that already exist are
// left untouched so live counters survive a second run.
// ══════════════════════════════════════════════════════════════════════════════

// SeedCatalogResult reports what the run wrote.
type SeedCatalogResult struct {
	CoursesCreated int `json:"coursesCreated"`
	CoursesSkipped int `json:"coursesSkipped"`
	PathsCreated   int `json:"pathsCreated"`
	PathsSkipped   int `json:"pathsSkipped"`
}

// SeedCatalogHandler handles catalog seeding.
type SeedCatalogHandler struct {
	courses course.Repository
	paths   learningpath.Repository
	locker  shared.Locker
}

// NewSeedCatalogHandler creates a new SeedCatalogHandler.
func NewSeedCatalogHandler(courses course.Repository, paths learningpath.Repository, locker shared.Locker) *SeedCatalogHandler {
	return &SeedCatalogHandler{courses: courses, paths: paths, locker: locker}
}

// Handle seeds the catalog. Only admins may run it.
func (h *SeedCatalogHandler) Handle(ctx context.Context, actor Actor) (*SeedCatalogResult, error) {
	if actor.UserID == "" {
		return nil, shared.ErrMissingCredential
	}
	if err := requireRole(actor.Role.IsAdmin()); err != nil {
		return nil, err
	}
	return h.Seed(ctx)
}

// Seed writes the sample data without an authorization check. Used by cmd/seed.
func (h *SeedCatalogHandler) Seed(ctx context.Context) (*SeedCatalogResult, error) {
	res := &SeedCatalogResult{}

	for _, c := range SampleCourses() {
		created, err := h.seedCourse(ctx, c)
		if err != nil {
			return nil, err
		}
		if created {
			res.CoursesCreated++
		} else {
			res.CoursesSkipped++
		}
	}

	for _, p := range SamplePaths() {
		_, err := h.paths.Get(ctx, p.ID)
		if err == nil {
			res.PathsSkipped++
			continue
		}
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("load learning path %s: %w", p.ID, err)
		}
		if err := h.paths.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("save learning path %s: %w", p.ID, err)
		}
		res.PathsCreated++
	}

	return res, nil
}

func (h *SeedCatalogHandler) seedCourse(ctx context.Context, c *course.Course) (bool, error) {
	created := false
	err := withLock(ctx, h.locker, courseLock(c.ID), func() error {
		_, err := h.courses.Get(ctx, c.ID)
		if err == nil {
			return nil
		}
		if !shared.IsNotFound(err) {
			return fmt.Errorf("load course %s: %w", c.ID, err)
		}
		if err := h.courses.Save(ctx, c); err != nil {
			return fmt.Errorf("save course %s: %w", c.ID, err)
		}
		created = true
		return nil
	})
	return created, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Demo account
// ─────────────────────────────────────────────────────────────────────────────

// Demo account credentials.
const (
	DemoEmail    = "demo@amd.com"
	DemoPassword = "password123"
)

// EnsureDemoUser creates the demo instructor unless its e-mail is registered.
// It reports whether an account was created.
func EnsureDemoUser(ctx context.Context, deps AuthDeps) (bool, error) {
	h := NewSignupHandler(deps)
	_, err := h.Handle(ctx, SignupCommand{
		Email:        DemoEmail,
		Password:     DemoPassword,
		Name:         "Demo User",
		Role:         string(shared.RoleInstructor),
		Organization: "AMD Demo",
		Skills:       []string{"BIM", "Revit", "AutoCAD"},
	})
	if shared.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAMPLE DATA
// ══════════════════════════════════════════════════════════════════════════════

func seedTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// SampleCourses returns fresh copies of the sample catalog.
func SampleCourses() []*course.Course {
	return []*course.Course{
		{
			ID:              "course_revit_basics",
			Title:           "Revit Fundamentals for Architects",
			Description:     "Master the basics of Autodesk Revit for architectural design and BIM workflows.",
			Category:        "BIM",
			Level:           course.LevelBeginner,
			Duration:        "8 hours",
			Instructor:      "Sarah Johnson",
			InstructorTitle: "Senior BIM Manager",
			Tags:            []string{"Revit", "BIM", "Architecture"},
			Skills:          []string{"3D Modeling", "BIM Coordination", "Documentation"},
			Thumbnail:       "https://images.unsplash.com/photo-1503387762-592deb58ef4e?w=800",
			Modules: []course.Module{
				{ID: "m1", Title: "Introduction to Revit Interface", Duration: "45 min"},
				{ID: "m2", Title: "Creating Walls and Floors", Duration: "60 min"},
				{ID: "m3", Title: "Working with Doors and Windows", Duration: "50 min"},
				{ID: "m4", Title: "Stairs and Railings", Duration: "55 min"},
				{ID: "m5", Title: "Creating Schedules", Duration: "40 min"},
			},
			EnrollmentCount: 145,
			Rating:          4.8,
			ReviewCount:     52,
			CreatedAt:       seedTime("2024-01-15T10:00:00Z"),
		},
		{
			ID:              "course_mep_coordination",
			Title:           "MEP Coordination in Navisworks",
			Description:     "Learn clash detection and coordination workflows for MEP systems.",
			Category:        "MEPF",
			Level:           course.LevelIntermediate,
			Duration:        "6 hours",
			Instructor:      "Michael Chen",
			InstructorTitle: "MEP BIM Specialist",
			Tags:            []string{"Navisworks", "MEP", "Clash Detection"},
			Skills:          []string{"Clash Detection", "Coordination", "Model Review"},
			Thumbnail:       "https://images.unsplash.com/photo-1581094794329-c8112a89af12?w=800",
			Modules: []course.Module{
				{ID: "m1", Title: "Navisworks Interface Overview", Duration: "30 min"},
				{ID: "m2", Title: "Importing and Federating Models", Duration: "45 min"},
				{ID: "m3", Title: "Clash Detection Setup", Duration: "60 min"},
				{ID: "m4", Title: "Managing Clash Reports", Duration: "50 min"},
			},
			EnrollmentCount: 98,
			Rating:          4.6,
			ReviewCount:     34,
			CreatedAt:       seedTime("2024-02-10T10:00:00Z"),
		},
		{
			ID:              "course_python_automation",
			Title:           "Python Automation for AEC",
			Description:     "Automate repetitive tasks in your AEC workflows using Python scripting.",
			Category:        "Software Development",
			Level:           course.LevelAdvanced,
			Duration:        "10 hours",
			Instructor:      "David Park",
			InstructorTitle: "Computational Designer",
			Tags:            []string{"Python", "Automation", "Scripting"},
			Skills:          []string{"Python Programming", "API Integration", "Workflow Automation"},
			Thumbnail:       "https://images.unsplash.com/photo-1526374965328-7f61d4dc18c5?w=800",
			Modules: []course.Module{
				{ID: "m1", Title: "Python Basics", Duration: "90 min"},
				{ID: "m2", Title: "Working with Revit API", Duration: "120 min"},
				{ID: "m3", Title: "Data Processing with Pandas", Duration: "75 min"},
				{ID: "m4", Title: "Building Custom Tools", Duration: "90 min"},
			},
			EnrollmentCount: 67,
			Rating:          4.9,
			ReviewCount:     28,
			CreatedAt:       seedTime("2024-03-05T10:00:00Z"),
		},
	}
}

// SamplePaths returns fresh copies of the sample learning paths.
func SamplePaths() []*learningpath.LearningPath {
	return []*learningpath.LearningPath{
		{
			ID:                "path_bim_mastery",
			Title:             "BIM Professional Certification Path",
			Description:       "Complete certification path for BIM professionals covering Revit, Navisworks, and coordination.",
			RequiredCourses:   []string{"course_revit_basics", "course_mep_coordination"},
			OptionalCourses:   []string{"course_python_automation"},
			EstimatedDuration: "14 hours",
			Skills:            []string{"BIM", "3D Modeling", "Coordination", "Clash Detection"},
			Level:             "Beginner to Intermediate",
			EnrollmentCount:   45,
			CreatedAt:         seedTime("2024-01-20T10:00:00Z"),
		},
	}
}
