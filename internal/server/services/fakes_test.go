package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/dbx"
	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/audit"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
	"github.com/dmitrijs2005/campusgate/internal/server/config"
	"github.com/dmitrijs2005/campusgate/internal/server/models"
	blacklistrepo "github.com/dmitrijs2005/campusgate/internal/server/repositories/blacklist"
	refreshtokensrepo "github.com/dmitrijs2005/campusgate/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/campusgate/internal/server/repositories/users"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeUsersRepo struct {
	byID   map[int64]*models.User
	getErr error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.UserName == login {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeRefreshRepo struct {
	mu      sync.Mutex
	byUser  map[int64]*models.RefreshToken
	findErr error
	delErr  error
	// rotateMiss makes Rotate report a lost race.
	rotateMiss bool
}

func (f *fakeRefreshRepo) Upsert(_ context.Context, t *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.byUser[t.UserID] = &cp
	return nil
}

func (f *fakeRefreshRepo) FindByUser(_ context.Context, userID int64) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	t, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRefreshRepo) Rotate(_ context.Context, userID int64, oldToken string, next *models.RefreshToken) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byUser[userID]
	if f.rotateMiss || !ok || cur.Token != oldToken {
		return false, nil
	}
	cp := *next
	cp.UserID = userID
	f.byUser[userID] = &cp
	return true, nil
}

func (f *fakeRefreshRepo) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return 0, f.delErr
	}
	if _, ok := f.byUser[userID]; !ok {
		return 0, nil
	}
	delete(f.byUser, userID)
	return 1, nil
}

func (f *fakeRefreshRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return 0, f.delErr
	}
	var n int64
	for id, t := range f.byUser {
		if t.Expires.Before(now) {
			delete(f.byUser, id)
			n++
		}
	}
	return n, nil
}

type fakeBlacklistRepo struct {
	mu        sync.Mutex
	entries   map[string]*models.BlacklistEntry
	existsErr error
	addErr    error
	sweepErr  error
}

func (f *fakeBlacklistRepo) Add(_ context.Context, e *models.BlacklistEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return false, f.addErr
	}
	if _, ok := f.entries[e.TokenID]; ok {
		return false, nil
	}
	cp := *e
	f.entries[e.TokenID] = &cp
	return true, nil
}

func (f *fakeBlacklistRepo) Exists(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.entries[tokenID]
	return ok, nil
}

func (f *fakeBlacklistRepo) Find(_ context.Context, tokenID string) (*models.BlacklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[tokenID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return e, nil
}

func (f *fakeBlacklistRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	var n int64
	for id, e := range f.entries {
		if e.ExpiresAt.Before(now) {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	b *fakeBlacklistRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{byID: map[int64]*models.User{}},
		r: &fakeRefreshRepo{byUser: map[int64]*models.RefreshToken{}},
		b: &fakeBlacklistRepo{entries: map[string]*models.BlacklistEntry{}},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Blacklist(dbx.DBTX) blacklistrepo.Repository         { return m.b }

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []audit.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	svc   *TokenService
	rm    *fakeRepoManager
	mock  sqlmock.Sqlmock
	clock *fakeClock
	codec *auth.Codec
	sink  *recordingSink
}

var errStore = errors.New("connection reset")

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	codec := auth.NewCodec([]byte("k"), auth.WithClock(clk.Now))
	cfg := &config.Config{
		AccessTokenValidityDuration:  10 * time.Minute,
		RefreshTokenValidityDuration: 24 * time.Hour,
	}
	rm := newFakeRepoManager()
	sink := &recordingSink{}
	return &testEnv{
		svc:   NewTokenService(db, rm, codec, cfg, sink, logging.NewNopLogger()),
		rm:    rm,
		mock:  mock,
		clock: clk,
		codec: codec,
		sink:  sink,
	}
}
