package admin

import (
	"time"

	reconcilesvc "lumen-backend/internal/application/reconcile"
	settingssvc "lumen-backend/internal/application/settings"
	"lumen-backend/internal/lumen"
	"lumen-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the operator surface: economy knobs and a manual
// reconciliation trigger. Guarded by a shared admin key, not sessions;
// operators are not economy participants.
type Handlers struct {
	Settings  *settingssvc.Service
	Reconcile *reconcilesvc.Service
	AdminKey  string
}

func (h *Handlers) authorized(c *fiber.Ctx) bool {
	return h.AdminKey != "" && c.Get("x-admin-key") == h.AdminKey
}

// UpdateSetting handles PATCH /api/v1/admin/settings: adjust vessel capacity
// or rebirth amount at runtime. Every transaction started after the commit
// observes the new value.
func (h *Handlers) UpdateSetting(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	var body struct {
		Key   string  `json:"key"`
		Value float64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil || body.Key == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if err := h.Settings.Set(c.Context(), body.Key, lumen.FloatToMicros(body.Value)); err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Setting updated", fiber.Map{"key": body.Key, "value": body.Value}, nil)
}

// GetSettings GET /api/v1/admin/settings
func (h *Handlers) GetSettings(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	all, err := h.Settings.All(c.Context())
	if err != nil {
		return response.DomainError(c, err)
	}
	out := make(map[string]float64, len(all))
	for k, v := range all {
		out[k] = lumen.MicrosToUnits(v)
	}
	return response.Success(c, "Settings", out, nil)
}

// RunReconcile handles POST /api/v1/admin/reconcile: one synchronous pass.
func (h *Handlers) RunReconcile(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	report, err := h.Reconcile.Run(c.Context(), time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Reconciliation complete", report, nil)
}
