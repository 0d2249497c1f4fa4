// Package course contains the course catalog model. Modules are embedded in
// their course and have no independent lifecycle.
package course

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Level is the difficulty of a course.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// IsValid checks if the level is known.
func (l Level) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// ResourceType is the kind of a module attachment.
type ResourceType string

const (
	ResourcePDF  ResourceType = "pdf"
	ResourceLink ResourceType = "link"
	ResourceFile ResourceType = "file"
)

// Resource is a downloadable or linked attachment of a module.
type Resource struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Type  ResourceType `json:"type"`
	URL   string       `json:"url"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MODULE
// ══════════════════════════════════════════════════════════════════════════════

// Module is one chapter of a course, optionally backed by a video.
type Module struct {
	ID                   string     `json:"id" validate:"required"`
	Title                string     `json:"title" validate:"required"`
	Duration             string     `json:"duration"`
	Description          string     `json:"description,omitempty"`
	VideoURL             string     `json:"videoUrl,omitempty"`
	VideoDurationSeconds *float64   `json:"videoDurationSeconds,omitempty"`
	Resources            []Resource `json:"resources,omitempty"`
}

// DefaultModuleSeconds is assumed when neither the video length nor the
// free-text duration can be read.
const DefaultModuleSeconds = 600

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-z]*)`)

var durationUnits = map[string]float64{
	"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
	"m": 60, "min": 60, "mins": 60, "minute": 60, "minutes": 60,
	"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1,
}

// LengthSeconds returns the module's video length. VideoDurationSeconds wins;
// otherwise the free-text duration is parsed.
func (m Module) LengthSeconds() float64 {
	if m.VideoDurationSeconds != nil && *m.VideoDurationSeconds > 0 {
		return *m.VideoDurationSeconds
	}
	return ParseDurationSeconds(m.Duration)
}

// ParseDurationSeconds reads a free-text duration such as "45 min",
// "1h 30m", "1.5h", "90 seconds" or "1h30" into seconds. A bare number is
// minutes, or the next smaller unit when it follows one ("1h30", "2m15").
// Numbers with other units ("12 lessons") are ignored.
func ParseDurationSeconds(duration string) float64 {
	total, prev := 0.0, 0.0
	for _, part := range durationPart.FindAllStringSubmatch(strings.ToLower(duration), -1) {
		v, err := strconv.ParseFloat(part[1], 64)
		if err != nil {
			continue
		}
		unit, ok := durationUnits[part[2]]
		switch {
		case ok:
		case part[2] != "":
			continue
		case prev == 3600:
			unit = 60
		case prev == 60:
			unit = 1
		default:
			unit = 60
		}
		total += v * unit
		prev = unit
	}

	if total <= 0 {
		return DefaultModuleSeconds
	}
	return total
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Course is a catalog entry. EnrollmentCount is derived state owned by the
// enrollment engine.
type Course struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Level           Level      `json:"level"`
	Duration        string     `json:"duration"`
	Instructor      string     `json:"instructor"`
	InstructorTitle string     `json:"instructorTitle"`
	Tags            []string   `json:"tags"`
	Skills          []string   `json:"skills"`
	Thumbnail       string     `json:"thumbnail"`
	Modules         []Module   `json:"modules"`
	EnrollmentCount int        `json:"enrollmentCount"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"reviewCount"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Draft holds the author-supplied fields of a new course.
type Draft struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=5000"`
	Category        string   `json:"category" validate:"max=100"`
	Level           Level    `json:"level" validate:"required,oneof=Beginner Intermediate Advanced"`
	Duration        string   `json:"duration" validate:"max=50"`
	Instructor      string   `json:"instructor" validate:"max=120"`
	InstructorTitle string   `json:"instructorTitle" validate:"max=120"`
	Tags            []string `json:"tags" validate:"max=30,dive,min=1,max=50"`
	Skills          []string `json:"skills" validate:"max=30,dive,min=1,max=60"`
	Thumbnail       string   `json:"thumbnail" validate:"omitempty,max=2048"`
	Modules         []Module `json:"modules" validate:"dive"`
}

// New creates a course from a draft with zeroed counters.
func New(id, createdBy string, d Draft, now time.Time) (*Course, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, shared.Validation("course", "Create", "title is required")
	}
	if !d.Level.IsValid() {
		return nil, shared.ErrInvalidLevel
	}
	if err := validateModules(d.Modules); err != nil {
		return nil, err
	}

	return &Course{
		ID:              id,
		Title:           strings.TrimSpace(d.Title),
		Description:     d.Description,
		Category:        d.Category,
		Level:           d.Level,
		Duration:        d.Duration,
		Instructor:      d.Instructor,
		InstructorTitle: d.InstructorTitle,
		Tags:            nonNil(d.Tags),
		Skills:          nonNil(d.Skills),
		Thumbnail:       d.Thumbnail,
		Modules:         nonNilModules(d.Modules),
		CreatedBy:       createdBy,
		CreatedAt:       now,
	}, nil
}

// HasModule reports whether moduleID belongs to the course.
func (c *Course) HasModule(moduleID string) bool {
	for _, m := range c.Modules {
		if m.ID == moduleID {
			return true
		}
	}
	return false
}

// Module returns the module with the given id.
func (c *Course) Module(moduleID string) (Module, bool) {
	for _, m := range c.Modules {
		if m.ID == moduleID {
			return m, true
		}
	}
	return Module{}, false
}

// IncrementEnrollments records one new enrollment.
func (c *Course) IncrementEnrollments() {
	c.EnrollmentCount++
}

// CanBeDeletedBy reports whether the actor owns the course or is an admin.
func (c *Course) CanBeDeletedBy(actorID string, role shared.Role) bool {
	return role.IsAdmin() || (c.CreatedBy != "" && c.CreatedBy == actorID)
}

func validateModules(modules []Module) error {
	seen := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		if strings.TrimSpace(m.ID) == "" {
			return shared.Validation("course", "Validate", "module id is required")
		}
		if _, dup := seen[m.ID]; dup {
			return shared.ErrDuplicateModule
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilModules(m []Module) []Module {
	if m == nil {
		return []Module{}
	}
	return m
}
