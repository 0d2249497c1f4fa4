package course

import (
	"strings"
)

// Filter narrows a catalog listing. Empty fields match everything.
type Filter struct {
	Category   string
	Level      string
	Instructor string
	Search     string
	Tags       []string
}

// Matches reports whether c passes every set criterion. Tags match when the
// course carries at least one of them; Search is a case-insensitive substring
// of the title or description.
func (f Filter) Matches(c *Course) bool {
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Level != "" && string(c.Level) != f.Level {
		return false
	}
	if f.Instructor != "" && c.Instructor != f.Instructor {
		return false
	}
	if len(f.Tags) > 0 && !anyTag(c.Tags, f.Tags) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Title), q) &&
			!strings.Contains(strings.ToLower(c.Description), q) {
			return false
		}
	}
	return true
}

// Apply returns the courses that match, preserving order.
func (f Filter) Apply(courses []*Course) []*Course {
	out := make([]*Course, 0, len(courses))
	for _, c := range courses {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// ParseTags splits a comma-separated tag list, dropping blanks.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func anyTag(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
