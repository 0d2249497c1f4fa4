package user

import (
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ProfilePatch lists the profile fields a user may change about themselves.
// Nil fields are left untouched. Role, e-mail and the course sets are not
// patchable; they are owned by signup and the enrollment engine.
type ProfilePatch struct {
	Name         *string   `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Organization *string   `json:"organization,omitempty" validate:"omitempty,max=120"`
	Skills       *[]string `json:"skills,omitempty" validate:"omitempty,max=50,dive,min=1,max=60"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Organization == nil && p.Skills == nil
}

// Apply merges the patch into u and stamps UpdatedAt.
func (p ProfilePatch) Apply(u *User, now time.Time) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return shared.Validation("user", "Update", "name cannot be empty")
		}
		u.Name = name
	}
	if p.Organization != nil {
		u.Organization = strings.TrimSpace(*p.Organization)
	}
	if p.Skills != nil {
		skills := make([]string, 0, len(*p.Skills))
		for _, s := range *p.Skills {
			if s = strings.TrimSpace(s); s != "" && !containsFold(skills, s) {
				skills = append(skills, s)
			}
		}
		u.Skills = skills
	}
	u.UpdatedAt = &now
	return nil
}
