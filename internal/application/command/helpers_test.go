package command_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *kv.MemoryStore
	repos  *kv.Repositories
	locker *kv.KeyedMutex
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	return &fixture{
		store:  store,
		repos:  kv.NewRepositories(store),
		locker: kv.NewKeyedMutex(),
		events: &recordingPublisher{},
	}
}

func (f *fixture) engineDeps() command.EngineDeps {
	return command.EngineDeps{
		Users:       f.repos.Users,
		Courses:     f.repos.Courses,
		Enrollments: f.repos.Enrollments,
		Locker:      f.locker,
		Publisher:   f.events,
		Clock:       fixedClock,
	}
}

func (f *fixture) addUser(t *testing.T, id string, role shared.Role) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID: id, Email: id + "@example.com", Name: "User " + id, Role: role, CreatedAt: testNow,
	})
	require.NoError(t, err)
	require.NoError(t, f.repos.Users.Save(context.Background(), u))
	return u
}

func (f *fixture) addCourse(t *testing.T, id string, moduleIDs ...string) *course.Course {
	t.Helper()
	modules := make([]course.Module, len(moduleIDs))
	for i, m := range moduleIDs {
		modules[i] = course.Module{ID: m, Title: "Module " + m, Duration: "10 min"}
	}
	c, err := course.New(id, "author", course.Draft{
		Title:   "Course " + id,
		Level:   course.LevelBeginner,
		Skills:  []string{"BIM"},
		Modules: modules,
	}, testNow)
	require.NoError(t, err)
	require.NoError(t, f.repos.Courses.Save(context.Background(), c))
	return c
}

func (f *fixture) enroll(t *testing.T, userID, courseID string) {
	t.Helper()
	_, err := command.NewEnrollHandler(f.engineDeps()).Handle(context.Background(), command.EnrollCommand{UserID: userID, CourseID: courseID})
	require.NoError(t, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(hash, p string) error {
	if hash != "hashed:"+p {
		return errors.New("mismatch")
	}
	return nil
}

type staticTokens struct{}

func (staticTokens) Issue(userID string, role shared.Role) (string, time.Time, error) {
	return "token-" + userID + "-" + string(role), testNow.Add(time.Hour), nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Upload(_ context.Context, path, contentType string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = b
	m.types[path] = contentType
	return nil
}

func (m *memoryObjects) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	return "https://objects.test/" + path + "?ttl=" + ttl.String(), nil
}
