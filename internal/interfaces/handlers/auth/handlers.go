package auth

import (
	"context"
	"errors"
	"time"

	authsvc "lumen-backend/internal/application/auth"
	"lumen-backend/internal/middleware"
	"lumen-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type Handlers struct {
	Service *authsvc.Service
	Rdb     *redis.Client
	Config  middleware.SessionConfig
}

// Register POST /api/v1/auth/register. Creates the identity and its ledger
// account, then logs the session in.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body authsvc.RegisterInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.Register(c.Context(), body, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrEmailTaken):
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		case errors.Is(err, authsvc.ErrEmailPasswordRequired),
			errors.Is(err, authsvc.ErrInvalidEmail),
			errors.Is(err, authsvc.ErrWeakPassword),
			errors.Is(err, authsvc.ErrInvalidFullname):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	h.startSession(c, authsvc.SessionUserShape{
		AccountID: user.UserID.String(),
		Fullname:  user.Fullname,
		Email:     user.Email,
	})
	return response.SuccessCreated(c, "Account created", fiber.Map{
		"account_id": user.UserID,
		"fullname":   user.Fullname,
		"email":      user.Email,
	}, nil)
}

// Login POST /api/v1/auth/login
func (h *Handlers) Login(c *fiber.Ctx) error {
	var body authsvc.LoginInput
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	user, err := h.Service.Login(c.Context(), body)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrEmailPasswordRequired):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrIncorrectPassword):
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	h.startSession(c, authsvc.SessionUserShape{
		AccountID: user.UserID.String(),
		Fullname:  user.Fullname,
		Email:     user.Email,
	})
	return response.Success(c, "Logged in", fiber.Map{
		"account_id": user.UserID,
		"fullname":   user.Fullname,
		"email":      user.Email,
	}, nil)
}

// Me GET /api/v1/auth/me
func (h *Handlers) Me(c *fiber.Ctx) error {
	shape, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, "Authenticated", shape, nil)
}

// Logout DELETE /api/v1/auth/logout
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sid := middleware.GetSessionID(c)
	if sid != "" && h.Rdb != nil {
		_ = h.Rdb.Del(context.Background(), middleware.SessionRedisPrefix+sid).Err()
	}
	middleware.DestroySession(c)
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.MaxAge = -1
	c.Cookie(&cookie)
	return response.Success(c, "Logged out", fiber.Map{"success": true}, nil)
}

func (h *Handlers) startSession(c *fiber.Ctx, shape authsvc.SessionUserShape) {
	sid := middleware.RegenerateSessionID(c)
	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = sid
	c.Cookie(&cookie)
	middleware.SetSessionUser(c, middleware.SessionUser{
		AccountID: shape.AccountID,
		Fullname:  shape.Fullname,
		Email:     shape.Email,
	})
}
