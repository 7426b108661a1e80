package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/common"
)

type fakeQuerier struct {
	users  map[string]StoredUser
	nextID int
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{users: map[string]StoredUser{}}
}

func (f *fakeQuerier) CreateUser(_ context.Context, username, passwordHash, role string) (StoredUser, error) {
	if _, exists := f.users[username]; exists {
		return StoredUser{}, ErrDuplicateUsername
	}
	f.nextID++
	u := StoredUser{
		ID:           usernameID(f.nextID),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	f.users[username] = u
	return u, nil
}

func (f *fakeQuerier) GetUserByUsername(_ context.Context, username string) (StoredUser, error) {
	u, ok := f.users[username]
	if !ok {
		return StoredUser{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeQuerier) GetUserByID(_ context.Context, id string) (StoredUser, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return StoredUser{}, ErrUserNotFound
}

func usernameID(n int) string {
	return string(rune('a'+n-1)) + "-id"
}

func newTestService(t *testing.T) (*Service, *fakeQuerier) {
	t.Helper()
	q := newFakeQuerier()
	svc, err := NewService(Config{Queries: q, Secret: "test-secret-0123456789"})
	require.NoError(t, err)
	return svc, q
}

func TestRegisterAndLogin(t *testing.T) {
	svc, q := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Asha", "supersecret1", RoleCashier)
	require.NoError(t, err)
	require.Equal(t, "asha", user.Username)
	require.Equal(t, RoleCashier, user.Role)

	stored := q.users["asha"]
	match, err := argon2id.ComparePasswordAndHash("supersecret1", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, match)

	result, err := svc.Login(ctx, "asha", "supersecret1")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)

	subject, role, err := svc.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, stored.ID, subject)
	require.Equal(t, RoleCashier, role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "asha", "supersecret1", RoleCashier)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "asha", "wrong-password")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "asha", "supersecret1", RoleCashier)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "asha", "othersecret1", RoleCashier)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "USERNAME_TAKEN", appErr.Code)
}

func TestParseAccessTokenExpired(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "asha", "supersecret1", RoleCashier)
	require.NoError(t, err)
	result, err := svc.Login(ctx, "asha", "supersecret1")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(13 * time.Hour) })
	_, _, err = svc.ParseAccessToken(result.AccessToken)
	require.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "admin", "supersecret1", RoleAdmin)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "cashier", "supersecret1", RoleCashier)
	require.NoError(t, err)

	adminLogin, err := svc.Login(ctx, "admin", "supersecret1")
	require.NoError(t, err)
	cashierLogin, err := svc.Login(ctx, "cashier", "supersecret1")
	require.NoError(t, err)

	mw := Middleware{Service: svc}
	protected := mw.RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+cashierLogin.AccessToken)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
