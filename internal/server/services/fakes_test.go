package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/metrics"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	refreshtokensrepo "github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/storefront/internal/server/repositories/users"
	"golang.org/x/crypto/bcrypt"
)

// --- in-memory repositories ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.User
	nextID int

	getErr    error
	createErr error
	listErr   error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	f.nextID++
	cp := *u
	cp.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", f.nextID)
	cp.CreatedAt = time.Now()
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsersRepo) UpdateRole(ctx context.Context, id string, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsersRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeRefreshRepo struct {
	mu   sync.Mutex
	recs map[string]models.RefreshToken

	upsertErr error
	getErr    error
	deleteErr error
	casErr    error

	// beforeCAS runs without the lock held, right before the swap.
	beforeCAS func()
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{recs: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Upsert(ctx context.Context, rec *models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.recs[rec.UserID] = *rec
	return nil
}

func (f *fakeRefreshRepo) Get(ctx context.Context, userID string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.recs[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.recs, userID)
	return nil
}

func (f *fakeRefreshRepo) CompareAndSwap(ctx context.Context, oldHash string, rec *models.RefreshToken) error {
	if f.beforeCAS != nil {
		f.beforeCAS()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr != nil {
		return f.casErr
	}
	cur, ok := f.recs[rec.UserID]
	if !ok || cur.TokenHash != oldHash {
		return common.ErrVersionConflict
	}
	f.recs[rec.UserID] = *rec
	return nil
}

func (f *fakeRefreshRepo) has(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.recs[userID]
	return ok
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// --- recording logger ---

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordingLogger) Debug(_ context.Context, msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(_ context.Context, msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(_ context.Context, msg string, _ ...any) { l.add("error", msg) }
func (l *recordingLogger) With(...any) logging.Logger                    { return l }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

// --- wiring ---

type testEnv struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	users   *fakeUsersRepo
	refresh *fakeRefreshRepo
	codec   *auth.Codec
	tokens  *RefreshTokenStore
	logger  *recordingLogger
	metrics *metrics.Registry
	session *SessionService
	admin   *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithTTL(t, 15*time.Minute, 7*24*time.Hour)
}

func newTestEnvWithTTL(t *testing.T, accessTTL, refreshTTL time.Duration) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	codec, err := auth.NewCodec("access-secret", "refresh-secret", accessTTL, refreshTTL)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}

	rm := &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo()}
	tokens, err := NewRefreshTokenStore(rm, codec, "hash-key")
	if err != nil {
		t.Fatalf("NewRefreshTokenStore: %v", err)
	}

	logger := &recordingLogger{}
	reg := metrics.NewRegistry()
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })
	mx, err := metrics.NewSessionMetrics(reg.Meter())
	if err != nil {
		t.Fatalf("NewSessionMetrics: %v", err)
	}
	return &testEnv{
		db:      db,
		mock:    mock,
		users:   rm.u,
		refresh: rm.r,
		codec:   codec,
		tokens:  tokens,
		logger:  logger,
		metrics: reg,
		session: NewSessionService(db, rm, codec, hasher, tokens, mx, logger),
		admin:   NewAdminService(db, rm, tokens, logger),
	}
}

// counters returns the current session counter totals.
func (e *testEnv) counters(t *testing.T) map[string]int64 {
	t.Helper()
	snap, err := e.metrics.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

// signup runs Signup expecting the surrounding transaction to commit.
func (e *testEnv) signup(t *testing.T, email, password string) *Session {
	t.Helper()
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
	s, err := e.session.Signup(context.Background(), SignupInput{Email: email, Password: password})
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	return s
}
