package kv

import (
	"context"
	"sort"

	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/progress"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// Thin typed wrappers over Store. They encode key names and JSON shape only.
// ══════════════════════════════════════════════════════════════════════════════

// Repositories bundles every repository over one store.
type Repositories struct {
	Users       *UserRepository
	Credentials *CredentialRepository
	Courses     *CourseRepository
	Enrollments *EnrollmentRepository
	Progress    *VideoProgressRepository
	Paths       *LearningPathRepository
	Snapshots   *SnapshotRepository
}

// NewRepositories wires all repositories to s.
func NewRepositories(s Store) *Repositories {
	return &Repositories{
		Users:       &UserRepository{store: s},
		Credentials: &CredentialRepository{store: s},
		Courses:     &CourseRepository{store: s},
		Enrollments: &EnrollmentRepository{store: s},
		Progress:    &VideoProgressRepository{store: s},
		Paths:       &LearningPathRepository{store: s},
		Snapshots:   &SnapshotRepository{store: s},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

type UserRepository struct{ store Store }

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := getJSON[user.User](ctx, r.store, UserKey(id), shared.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	u.Normalize()
	return u, nil
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	return setJSON(ctx, r.store, UserKey(u.ID), u)
}

func (r *UserRepository) List(ctx context.Context) ([]*user.User, error) {
	users, err := listJSON[user.User](ctx, r.store, PrefixUser)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		u.Normalize()
	}
	return users, nil
}

type CredentialRepository struct{ store Store }

var _ user.CredentialRepository = (*CredentialRepository)(nil)

func (r *CredentialRepository) Get(ctx context.Context, email string) (*user.Credential, error) {
	return getJSON[user.Credential](ctx, r.store, CredentialKey(email),
		shared.NewDomainError("credential", "Find", shared.ErrNotFound, "credential not found"))
}

func (r *CredentialRepository) Save(ctx context.Context, c *user.Credential) error {
	return setJSON(ctx, r.store, CredentialKey(c.Email), c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Courses
// ─────────────────────────────────────────────────────────────────────────────

type CourseRepository struct{ store Store }

var _ course.Repository = (*CourseRepository)(nil)

func (r *CourseRepository) Get(ctx context.Context, id string) (*course.Course, error) {
	return getJSON[course.Course](ctx, r.store, CourseKey(id), shared.ErrCourseNotFound)
}

func (r *CourseRepository) GetMany(ctx context.Context, ids []string) ([]*course.Course, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = CourseKey(id)
	}
	return multiGetJSON[course.Course](ctx, r.store, keys)
}

func (r *CourseRepository) Save(ctx context.Context, c *course.Course) error {
	return setJSON(ctx, r.store, CourseKey(c.ID), c)
}

func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, CourseKey(id))
}

func (r *CourseRepository) List(ctx context.Context) ([]*course.Course, error) {
	return listJSON[course.Course](ctx, r.store, PrefixCourse)
}

// ─────────────────────────────────────────────────────────────────────────────
// Enrollments
// ─────────────────────────────────────────────────────────────────────────────

type EnrollmentRepository struct{ store Store }

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

func (r *EnrollmentRepository) Get(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	e, err := getJSON[enrollment.Enrollment](ctx, r.store, EnrollmentKey(userID, courseID), shared.ErrEnrollmentNotFound)
	if err != nil {
		return nil, err
	}
	e.Normalize()
	return e, nil
}

func (r *EnrollmentRepository) Save(ctx context.Context, e *enrollment.Enrollment) error {
	return setJSON(ctx, r.store, EnrollmentKey(e.UserID, e.CourseID), e)
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]*enrollment.Enrollment, error) {
	return r.list(ctx, UserEnrollmentsPrefix(userID))
}

func (r *EnrollmentRepository) List(ctx context.Context) ([]*enrollment.Enrollment, error) {
	return r.list(ctx, PrefixEnrollment)
}

func (r *EnrollmentRepository) list(ctx context.Context, prefix string) ([]*enrollment.Enrollment, error) {
	es, err := listJSON[enrollment.Enrollment](ctx, r.store, prefix)
	if err != nil {
		return nil, err
	}
	for _, e := range es {
		e.Normalize()
	}
	return es, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Video progress
// ─────────────────────────────────────────────────────────────────────────────

type VideoProgressRepository struct{ store Store }

var _ progress.Repository = (*VideoProgressRepository)(nil)

func (r *VideoProgressRepository) Get(ctx context.Context, userID, courseID, moduleID string) (*progress.VideoProgress, error) {
	return getJSON[progress.VideoProgress](ctx, r.store, VideoProgressKey(userID, courseID, moduleID),
		shared.NewDomainError("video_progress", "Find", shared.ErrNotFound, "no progress recorded"))
}

func (r *VideoProgressRepository) Save(ctx context.Context, p *progress.VideoProgress) error {
	return setJSON(ctx, r.store, VideoProgressKey(p.UserID, p.CourseID, p.ModuleID), p)
}

func (r *VideoProgressRepository) ListByCourse(ctx context.Context, userID, courseID string) ([]*progress.VideoProgress, error) {
	return listJSON[progress.VideoProgress](ctx, r.store, CourseVideoProgressPrefix(userID, courseID))
}

// ─────────────────────────────────────────────────────────────────────────────
// Learning paths
// ─────────────────────────────────────────────────────────────────────────────

type LearningPathRepository struct{ store Store }

var _ learningpath.Repository = (*LearningPathRepository)(nil)

func (r *LearningPathRepository) Get(ctx context.Context, id string) (*learningpath.LearningPath, error) {
	return getJSON[learningpath.LearningPath](ctx, r.store, PathKey(id), shared.ErrPathNotFound)
}

func (r *LearningPathRepository) Save(ctx context.Context, p *learningpath.LearningPath) error {
	return setJSON(ctx, r.store, PathKey(p.ID), p)
}

func (r *LearningPathRepository) List(ctx context.Context) ([]*learningpath.LearningPath, error) {
	return listJSON[learningpath.LearningPath](ctx, r.store, PrefixPath)
}

// ─────────────────────────────────────────────────────────────────────────────
// Analytics snapshots
// ─────────────────────────────────────────────────────────────────────────────

type SnapshotRepository struct{ store Store }

var _ analytics.SnapshotRepository = (*SnapshotRepository)(nil)

func (r *SnapshotRepository) Save(ctx context.Context, s *analytics.Snapshot) error {
	return setJSON(ctx, r.store, SnapshotKey(s.Date), s)
}

func (r *SnapshotRepository) List(ctx context.Context) ([]*analytics.Snapshot, error) {
	snaps, err := listJSON[analytics.Snapshot](ctx, r.store, PrefixSnapshot)
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Date > snaps[j].Date })
	return snaps, nil
}
