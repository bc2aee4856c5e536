package handler

import (
	"errors"
	"net/http"
	"time"

	auth "app/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh_token"

// /auth配下のHTTP
type AuthHandler struct {
	registerUC   *auth.RegisterUserUsecase
	loginUC      *auth.LoginUsecase
	sessionUC    *auth.SessionUsecase
	refreshTTL   time.Duration
	cookieSecure bool
}

// DI
func NewAuthHandler(
	registerUC *auth.RegisterUserUsecase,
	loginUC *auth.LoginUsecase,
	sessionUC *auth.SessionUsecase,
	refreshTTL time.Duration,
	cookieSecure bool,
) *AuthHandler {
	return &AuthHandler{
		registerUC:   registerUC,
		loginUC:      loginUC,
		sessionUC:    sessionUC,
		refreshTTL:   refreshTTL,
		cookieSecure: cookieSecure,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// /auth を登録
func (h *AuthHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/refresh", h.refresh)
	g.POST("/logout", h.logout)
}

func (h *AuthHandler) register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.registerUC.Execute(c.Request().Context(), auth.RegisterUserInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmailFormat),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, auth.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		case errors.Is(err, auth.ErrEmailAlreadyExists):
			return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *AuthHandler) login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, side, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, auth.ErrUserInactive):
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "user is inactive"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
	}

	h.setRefreshCookie(c, side.PlainRefreshToken)
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, side, err := h.sessionUC.Refresh(c.Request().Context(), cookie.Value, c.Request().UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidRefreshToken):
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		case errors.Is(err, auth.ErrUserInactive):
			return c.JSON(http.StatusForbidden, ErrorResponse{Error: "user is inactive"})
		default:
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
	}

	h.setRefreshCookie(c, side.PlainRefreshToken)
	return c.JSON(http.StatusOK, out)
}

func (h *AuthHandler) logout(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.sessionUC.Logout(c.Request().Context(), cookie.Value); err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		}
	}

	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, SuccessResponse{Message: "logged out"})
}

// refresh tokenはHttpOnly Cookieでだけ持ち回る
func (h *AuthHandler) setRefreshCookie(c echo.Context, plain string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    plain,
		Path:     "/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
