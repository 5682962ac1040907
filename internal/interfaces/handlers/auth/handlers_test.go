package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	authsvc "lumen-backend/internal/application/auth"
	ledgersvc "lumen-backend/internal/application/ledger"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"
	"lumen-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{}, &domain.Account{}, &domain.Wish{}, &domain.LedgerEntry{}, &domain.Setting{},
	))

	mr := miniredis.RunT(t)
	cfg := middleware.SessionConfig{RedisURL: "redis://" + mr.Addr()}
	session, rdb, err := middleware.Session(cfg)
	require.NoError(t, err)

	h := &Handlers{
		Service: &authsvc.Service{
			DB: db,
			Ledger: &ledgersvc.Service{
				DB:                    db,
				RatePerHourMicros:     lumen.UnitsToMicros(lumen.DefaultRatePerHour),
				RebirthFallbackMicros: lumen.UnitsToMicros(2400),
				CycleLengthDays:       10,
			},
		},
		Rdb:    rdb,
		Config: cfg,
	}

	app := fiber.New()
	app.Use(session)
	app.Post("/api/v1/auth/register", h.Register)
	app.Post("/api/v1/auth/login", h.Login)
	app.Get("/api/v1/auth/me", h.Me)
	app.Delete("/api/v1/auth/logout", h.Logout)
	return app, db
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func register(t *testing.T, app *fiber.App) *http.Response {
	req := httptest.NewRequest("POST", "/api/v1/auth/register",
		bytes.NewBufferString(`{"fullname": "Ada Lovelace", "email": "ada@example.com", "password": "Sup3r-secret"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRegisterEndpoint_StartsSession(t *testing.T) {
	app, db := setupAuthApp(t)

	resp := register(t, app)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)

	// The ledger account came into existence alongside the identity.
	var count int64
	require.NoError(t, db.Model(&domain.Account{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The fresh cookie authenticates /me.
	me := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	me.AddCookie(cookie)
	meResp, err := app.Test(me)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, meResp.StatusCode)

	raw, err := io.ReadAll(meResp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "ada@example.com", data["email"])
	assert.NotEmpty(t, data["account_id"])
}

func TestLoginEndpoint(t *testing.T) {
	app, _ := setupAuthApp(t)
	register(t, app)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		bytes.NewBufferString(`{"email": "ada@example.com", "password": "Sup3r-secret"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotNil(t, sessionCookie(resp))

	wrong := httptest.NewRequest("POST", "/api/v1/auth/login",
		bytes.NewBufferString(`{"email": "ada@example.com", "password": "wrong-pass1"}`))
	wrong.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(wrong)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMeEndpoint_NoSession(t *testing.T) {
	app, _ := setupAuthApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/auth/me", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutEndpoint_EndsSession(t *testing.T) {
	app, _ := setupAuthApp(t)
	cookie := sessionCookie(register(t, app))
	require.NotNil(t, cookie)

	out := httptest.NewRequest("DELETE", "/api/v1/auth/logout", nil)
	out.AddCookie(cookie)
	resp, err := app.Test(out)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	me := httptest.NewRequest("GET", "/api/v1/auth/me", nil)
	me.AddCookie(cookie)
	resp, err = app.Test(me)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
