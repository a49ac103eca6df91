package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/hls"
	"github.com/leo-rullani/backend-video-flix/internal/jobs"
	"github.com/leo-rullani/backend-video-flix/internal/models"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
	"github.com/leo-rullani/backend-video-flix/internal/storage"
)

type inMemoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[int64]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return models.User{}, repositories.ErrConflict
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = user
	return user, nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("%w: %w", repositories.ErrNotFound, auth.ErrUserNotFound)
	}
	return user, nil
}

func (s *inMemoryUserStore) SetActive(_ context.Context, id int64) error {
	return s.mutate(id, func(u *models.User) { u.IsActive = true })
}

func (s *inMemoryUserStore) SetPassword(_ context.Context, id int64, hash string) error {
	return s.mutate(id, func(u *models.User) { u.Password = hash })
}

func (s *inMemoryUserStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return s.mutate(id, func(u *models.User) { u.LastLogin = &at })
}

func (s *inMemoryUserStore) mutate(id int64, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&user)
	s.users[id] = user
	return nil
}

func (s *inMemoryUserStore) add(t *testing.T, email, password string, active, staff bool) models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := s.Create(context.Background(), models.User{Email: email, Password: hash, IsActive: active, IsStaff: staff})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

type inMemoryVideoStore struct {
	mu     sync.Mutex
	nextID int64
	videos map[int64]models.Video
}

func newInMemoryVideoStore() *inMemoryVideoStore {
	return &inMemoryVideoStore{videos: make(map[int64]models.Video)}
}

func (s *inMemoryVideoStore) Create(_ context.Context, video models.Video) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	video.ID = s.nextID
	if video.CreatedAt.IsZero() {
		video.CreatedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(video.ID) * time.Hour)
	}
	video.UpdatedAt = video.CreatedAt
	s.videos[video.ID] = video
	return video, nil
}

func (s *inMemoryVideoStore) List(context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Video, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *inMemoryVideoStore) UpdateMetadata(_ context.Context, id int64, meta models.VideoMetadata) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	if meta.Title != nil {
		video.Title = *meta.Title
	}
	if meta.Description != nil {
		video.Description = *meta.Description
	}
	if meta.Category != nil {
		video.Category = *meta.Category
	}
	s.videos[id] = video
	return video, nil
}

func (s *inMemoryVideoStore) Delete(_ context.Context, id int64) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	delete(s.videos, id)
	return video, nil
}

func (s *inMemoryVideoStore) Exists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.videos[id]
	return ok, nil
}

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (s *recordingSubmitter) Submit(_ context.Context, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *recordingSubmitter) last() jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return nil
	}
	return s.jobs[len(s.jobs)-1]
}

type recordingLifecycle struct {
	created []models.Video
	deleted []models.Video
}

func (l *recordingLifecycle) VideoCreated(_ context.Context, video models.Video) error {
	l.created = append(l.created, video)
	return nil
}

func (l *recordingLifecycle) VideoDeleted(_ context.Context, video models.Video) error {
	l.deleted = append(l.deleted, video)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type testEnv struct {
	router        *mux.Router
	users         *inMemoryUserStore
	videos        *inMemoryVideoStore
	jobs          *recordingSubmitter
	lifecycle     *recordingLifecycle
	tokens        *auth.TokenIssuer
	revocations   *auth.MemoryRevocationStore
	confirmations *auth.ConfirmationTokens
	media         *storage.MediaStore
	layout        hls.Layout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:         newInMemoryUserStore(),
		videos:        newInMemoryVideoStore(),
		jobs:          &recordingSubmitter{},
		lifecycle:     &recordingLifecycle{},
		revocations:   auth.NewMemoryRevocationStore(),
		confirmations: auth.NewConfirmationTokens("test-secret", time.Hour),
		media:         storage.NewMediaStore(t.TempDir(), 1<<20),
		layout:        hls.Layout{Root: t.TempDir()},
	}
	env.tokens = auth.NewTokenIssuer("test-secret", 45*time.Minute, 24*time.Hour, env.revocations)

	env.router = NewRouter(Dependencies{
		Users:          env.users,
		Tokens:         env.tokens,
		Confirmations:  env.confirmations,
		Gate:           auth.NewGate(env.tokens, env.users),
		Jobs:           env.jobs,
		Videos:         env.videos,
		VideoLookup:    env.videos,
		Lifecycle:      env.lifecycle,
		Media:          env.media,
		Layout:         env.layout,
		MediaURL:       "/media/",
		MaxUploadBytes: 1 << 20,
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) loginCookies(t *testing.T, user models.User) []*http.Cookie {
	t.Helper()
	pair, err := e.tokens.IssuePair(user.ID)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	return []*http.Cookie{
		{Name: auth.AccessCookieName, Value: pair.AccessToken},
		{Name: auth.RefreshCookieName, Value: pair.RefreshToken},
	}
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withCookies(req *http.Request, cookies ...*http.Cookie) *http.Request {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
