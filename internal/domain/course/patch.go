package course

import (
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// Patch is a partial course update. Nil fields are left untouched.
// Identity, authorship and derived counters (id, createdBy, createdAt,
// enrollmentCount, rating, reviewCount) cannot be patched.
type Patch struct {
	Title           *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category        *string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Level           *Level    `json:"level,omitempty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Duration        *string   `json:"duration,omitempty" validate:"omitempty,max=50"`
	Instructor      *string   `json:"instructor,omitempty" validate:"omitempty,max=120"`
	InstructorTitle *string   `json:"instructorTitle,omitempty" validate:"omitempty,max=120"`
	Tags            *[]string `json:"tags,omitempty" validate:"omitempty,max=30,dive,min=1,max=50"`
	Skills          *[]string `json:"skills,omitempty" validate:"omitempty,max=30,dive,min=1,max=60"`
	Thumbnail       *string   `json:"thumbnail,omitempty" validate:"omitempty,max=2048"`
	Modules         *[]Module `json:"modules,omitempty" validate:"omitempty,dive"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Level == nil && p.Duration == nil && p.Instructor == nil &&
		p.InstructorTitle == nil && p.Tags == nil && p.Skills == nil &&
		p.Thumbnail == nil && p.Modules == nil
}

// Apply validates every set field, then merges them into c.
// On error c is left unchanged.
func (p Patch) Apply(c *Course, now time.Time) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return shared.Validation("course", "Update", "title cannot be empty")
	}
	if p.Level != nil && !p.Level.IsValid() {
		return shared.ErrInvalidLevel
	}
	if p.Modules != nil {
		if err := validateModules(*p.Modules); err != nil {
			return err
		}
	}

	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Level != nil {
		c.Level = *p.Level
	}
	if p.Duration != nil {
		c.Duration = *p.Duration
	}
	if p.Instructor != nil {
		c.Instructor = *p.Instructor
	}
	if p.InstructorTitle != nil {
		c.InstructorTitle = *p.InstructorTitle
	}
	if p.Tags != nil {
		c.Tags = nonNil(*p.Tags)
	}
	if p.Skills != nil {
		c.Skills = nonNil(*p.Skills)
	}
	if p.Thumbnail != nil {
		c.Thumbnail = *p.Thumbnail
	}
	if p.Modules != nil {
		c.Modules = nonNilModules(*p.Modules)
	}
	c.UpdatedAt = &now
	return nil
}
