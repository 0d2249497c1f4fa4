package config

import (
	"errors"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Flag names. Each maps to FEATURE_<NAME> with dots turned into underscores.
const (
	FeatureSelfSignup         = "auth.self_signup"           // POST /auth/signup
	FeatureMediaUpload        = "media.upload"               // POST /upload/*
	FeatureSeedEndpoint       = "admin.seed_endpoint"        // POST /seed-data
	FeatureAnalyticsSnapshots = "analytics.snapshots"        // daily snapshot job + listing
	FeatureSkillMerge         = "engine.skill_merge_on_done" // completed-course skills join the profile
)

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// Feature is a read-only view of one flag.
type Feature struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Enabled        bool   `json:"enabled"`
	RolloutPercent int    `json:"rollout_percent"`
}

// FeatureContext identifies who a flag is evaluated for. Admins bypass
// partial rollouts but not a disabled flag.
type FeatureContext struct {
	UserID  string
	IsAdmin bool
}

// FeatureFlags holds rollout percentages and per-user overrides. A nil
// *FeatureFlags enables everything.
type FeatureFlags struct {
	mu      sync.RWMutex
	descr   map[string]string
	percent map[string]int
	perUser map[string]map[string]bool
}

var defaultFeatures = []Feature{
	{Name: FeatureSelfSignup, Description: "Allow public account registration"},
	{Name: FeatureMediaUpload, Description: "Accept video and thumbnail uploads"},
	{Name: FeatureSeedEndpoint, Description: "Expose the admin seed endpoint"},
	{Name: FeatureAnalyticsSnapshots, Description: "Store and list daily analytics snapshots"},
	{Name: FeatureSkillMerge, Description: "Add course skills to a learner's profile on completion"},
}

// LoadFeatureFlags turns every flag fully on, then applies
// FEATURE_<NAME>=true|false|<percent> from the environment, e.g.
// FEATURE_MEDIA_UPLOAD=false or FEATURE_ENGINE_SKILL_MERGE_ON_DONE=25.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		descr:   make(map[string]string, len(defaultFeatures)),
		percent: make(map[string]int, len(defaultFeatures)),
		perUser: make(map[string]map[string]bool),
	}
	for _, f := range defaultFeatures {
		ff.descr[f.Name] = f.Description
		ff.percent[f.Name] = 100
		if p, ok := parseFeatureValue(os.Getenv(featureEnvKey(f.Name))); ok {
			ff.percent[f.Name] = p
		}
	}
	return ff
}

func parseFeatureValue(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	if p, err := strconv.Atoi(v); err == nil && p >= 0 && p <= 100 {
		return p, true
	}
	return 0, false
}

// featureEnvKey maps "media.upload" to "FEATURE_MEDIA_UPLOAD".
func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled evaluates a flag. A user override wins over everything; a nil
// ctx asks whether the flag is on at all. Unknown flags are off.
func (ff *FeatureFlags) IsEnabled(name string, ctx *FeatureContext) bool {
	if ff == nil {
		return true
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.UserID != "" {
		if on, ok := ff.perUser[ctx.UserID][name]; ok {
			return on
		}
	}

	p, ok := ff.percent[name]
	switch {
	case !ok || p == 0:
		return false
	case p >= 100, ctx == nil, ctx.IsAdmin, ctx.UserID == "":
		return true
	}
	return rolloutBucket(name, ctx.UserID) < p
}

// rolloutBucket places a user in a stable 0-99 bucket per flag.
func rolloutBucket(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// SetUserOverride forces a flag on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.perUser[userID] == nil {
		ff.perUser[userID] = make(map[string]bool)
	}
	ff.perUser[userID][name] = enabled
}

// ClearUserOverrides drops every override for userID.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.perUser, userID)
}

// SetRolloutPercent sets the share of users that see the flag.
func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if _, ok := ff.percent[name]; !ok {
		return ErrFeatureNotFound
	}
	ff.percent[name] = percent
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.SetRolloutPercent(name, 100) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }

// All lists the flags by name.
func (ff *FeatureFlags) All() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.percent))
	for name, p := range ff.percent {
		out = append(out, Feature{
			Name:           name,
			Description:    ff.descr[name],
			Enabled:        p > 0,
			RolloutPercent: p,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
