package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/middleware"
	"app/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック（middleware専用）
// =====================

type MockUserRepoForMiddleware struct {
	mock.Mock
}

func (m *MockUserRepoForMiddleware) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForMiddleware) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForMiddleware) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForMiddleware) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForMiddleware) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepoForMiddleware)(nil)

// =====================
// helper
// =====================

func mustMakeJWT(t *testing.T, secret string, sub string, role string, tv int) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

// contextに入った値をそのまま返すハンドラ
func echoContextHandler(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)

	return c.JSON(http.StatusOK, mwOKResponse{
		UserID:       userID,
		Role:         role,
		TokenVersion: tv,
	})
}

func runRequest(e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func newAuthTestServer() *echo.Echo {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", echoContextHandler, middleware.AuthJWT(cfg))
	return e
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_NoAuthorizationHeader(t *testing.T) {
	e := newAuthTestServer()

	rec := runRequest(e, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeMWError(t, rec).Error)
}

func TestAuthJWT_NotBearerScheme(t *testing.T) {
	e := newAuthTestServer()

	rec := runRequest(e, "Basic dXNlcjpwYXNz")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_WrongSecret(t *testing.T) {
	e := newAuthTestServer()

	token := mustMakeJWT(t, "other-secret", "1", "USER", 0)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_MalformedToken(t *testing.T) {
	e := newAuthTestServer()

	rec := runRequest(e, "Bearer not.a.jwt")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_InvalidSub(t *testing.T) {
	e := newAuthTestServer()

	token := mustMakeJWT(t, testSecret, "abc", "USER", 0)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_ValidTokenSetsContext(t *testing.T) {
	e := newAuthTestServer()

	token := mustMakeJWT(t, testSecret, "42", "USER", 3)
	rec := runRequest(e, "Bearer "+token)

	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "USER", body.Role)
	assert.Equal(t, 3, body.TokenVersion)
}

// =====================
// AdminRoleGuard
// =====================

func newAdminTestServer() *echo.Echo {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", echoContextHandler, middleware.AuthJWT(cfg), middleware.AdminRoleGuard())
	return e
}

func TestAdminRoleGuard_RejectsUserRole(t *testing.T) {
	e := newAdminTestServer()

	token := mustMakeJWT(t, testSecret, "42", "USER", 0)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)
}

func TestAdminRoleGuard_AllowsAdminRole(t *testing.T) {
	e := newAdminTestServer()

	token := mustMakeJWT(t, testSecret, "42", "ADMIN", 0)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =====================
// TokenVersionGuard
// =====================

func newTokenVersionTestServer(userRepo repository.UserRepository) *echo.Echo {
	e := echo.New()
	cfg := config.Config{JWTSecret: testSecret}
	e.GET("/protected", echoContextHandler, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))
	return e
}

func TestTokenVersionGuard_RejectsStaleToken(t *testing.T) {
	userRepo := new(MockUserRepoForMiddleware)
	// 強制ログアウト後はDB側のtoken_versionが進んでいる
	userRepo.On("FindByID", mock.Anything, int64(42)).
		Return(&model.User{ID: 42, TokenVersion: 5, IsActive: true}, nil)

	e := newTokenVersionTestServer(userRepo)
	token := mustMakeJWT(t, testSecret, "42", "USER", 4)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenVersionGuard_AllowsMatchingVersion(t *testing.T) {
	userRepo := new(MockUserRepoForMiddleware)
	userRepo.On("FindByID", mock.Anything, int64(42)).
		Return(&model.User{ID: 42, TokenVersion: 4, IsActive: true}, nil)

	e := newTokenVersionTestServer(userRepo)
	token := mustMakeJWT(t, testSecret, "42", "USER", 4)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenVersionGuard_RejectsUnknownUser(t *testing.T) {
	userRepo := new(MockUserRepoForMiddleware)
	userRepo.On("FindByID", mock.Anything, int64(42)).
		Return(nil, repository.ErrUserNotFound)

	e := newTokenVersionTestServer(userRepo)
	token := mustMakeJWT(t, testSecret, "42", "USER", 4)
	rec := runRequest(e, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
