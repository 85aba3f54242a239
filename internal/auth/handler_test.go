package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-commerce/meridian/internal/auth"
	"github.com/meridian-commerce/meridian/internal/shared"
	_ "github.com/meridian-commerce/meridian/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func seededUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.User{
		ID:           1,
		Email:        "admin@example.com",
		Name:         "Admin",
		PasswordHash: string(hash),
		Role:         auth.RoleAdmin,
		IsActive:     true,
	}
}

func newAuthHandler(t *testing.T, repo auth.RepositoryPort) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager)
	return handler, sessionManager
}

func doLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	router := chi.NewRouter()
	router.Route("/api/auth", handler.MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr, sess
}

func TestLoginSuccess(t *testing.T) {
	user := seededUser(t, "correct-horse")
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	rr, sess := doLogin(t, handler, sessionManager, `{"email":"admin@example.com","password":"correct-horse"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.Equal(t, "ADMIN", resp.Role)
	assert.Equal(t, "1", sess.User())
	assert.Equal(t, "ADMIN", sess.Get("role"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	user := seededUser(t, "correct-horse")
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	rr, sess := doLogin(t, handler, sessionManager, `{"email":"admin@example.com","password":"wrong-password"}`)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, sess.User())
}

func TestLoginInactiveUser(t *testing.T) {
	user := seededUser(t, "correct-horse")
	user.IsActive = false
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user})

	rr, _ := doLogin(t, handler, sessionManager, `{"email":"admin@example.com","password":"correct-horse"}`)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	rr, _ := doLogin(t, handler, sessionManager, `{"email":"not-an-email","password":"short"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Details, "Email")
	assert.Contains(t, resp.Details, "Password")
}
