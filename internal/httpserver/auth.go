package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cookies"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func sessionMeta(c echo.Context) service.SessionMeta {
	return service.SessionMeta{IPAddress: c.RealIP(), UserAgent: c.Request().UserAgent()}
}

func setAuthCookies(c echo.Context, res *service.LoginResult) {
	c.SetCookie(cookies.Create(cookies.AccessToken, res.AccessToken, "/", res.AccessExp))
	c.SetCookie(cookies.Create(cookies.RefreshToken, res.RefreshToken, "/", res.RefreshExp))
}

func loginResponse(res *service.LoginResult) transport.LoginResponse {
	return transport.LoginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		AccessExp:    res.AccessExp.Unix(),
		RefreshExp:   res.RefreshExp.Unix(),
		IsAdmin:      res.IsAdmin,
	}
}

// refreshTokenFrom prefers the body and falls back to the cookie.
func refreshTokenFrom(c echo.Context) string {
	var req transport.RefreshRequest
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if ck, err := c.Cookie(cookies.RefreshToken); err == nil {
		return ck.Value
	}
	return ""
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.Credentials
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "register_error", "invalid body", err)
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		return fail(l, "register_error", err)
	}

	l.Info("register_successful", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.Credentials
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "login_error", "invalid body", err)
	}

	res, err := h.Svc.Login(ctx, req.Username, req.Password, sessionMeta(c))
	if err != nil {
		return fail(l, "login_failed", err)
	}

	setAuthCookies(c, res)
	l.Info("login_successful")
	return c.JSON(http.StatusOK, loginResponse(res))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	token := refreshTokenFrom(c)
	if token == "" {
		return fail(l, "refresh_failed", service.ErrInvalidRefreshToken)
	}

	res, err := h.Svc.Refresh(ctx, token, sessionMeta(c))
	if err != nil {
		c.SetCookie(cookies.Delete(cookies.AccessToken, "/"))
		c.SetCookie(cookies.Delete(cookies.RefreshToken, "/"))
		return fail(l, "refresh_failed", err)
	}

	setAuthCookies(c, res)
	return c.JSON(http.StatusOK, loginResponse(res))
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if err := h.Svc.LogOut(ctx, refreshTokenFrom(c)); err != nil {
		return fail(l, "logout_error", err)
	}

	c.SetCookie(cookies.Delete(cookies.AccessToken, "/"))
	c.SetCookie(cookies.Delete(cookies.RefreshToken, "/"))
	l.Info("logout_successful")
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) SetRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin_set_role")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(l, "set_role_error", "invalid user id", err)
	}
	var req transport.SetRoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "set_role_error", "invalid body", err)
	}

	user, err := h.Svc.SetRole(ctx, id, req.Role)
	if err != nil {
		return fail(l, "set_role_error", err)
	}
	return c.JSON(http.StatusOK, user)
}
