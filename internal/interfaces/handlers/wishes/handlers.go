package wishes

import (
	"time"

	wishsvc "lumen-backend/internal/application/wishes"
	"lumen-backend/internal/lumen"
	"lumen-backend/internal/middleware"
	"lumen-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *wishsvc.Service
}

// CreateWish POST /api/v1/wishes/create-wish
func (h *Handlers) CreateWish(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
		FaceValue   float64 `json:"face_value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	if body.Title == "" || body.FaceValue <= 0 {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	view, err := h.Service.Create(c.Context(), accountID, wishsvc.CreateInput{
		Title:       body.Title,
		Description: body.Description,
		FaceMicros:  lumen.FloatToMicros(body.FaceValue),
	}, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.SuccessCreated(c, "Wish created", view, nil)
}

// GetWishes GET /api/v1/wishes/get-wishes?scope=mine|open
func (h *Handlers) GetWishes(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	now := time.Now()
	var (
		views []wishsvc.View
		err   error
	)
	if c.Query("scope") == "mine" {
		views, err = h.Service.Mine(c.Context(), accountID, now)
	} else {
		views, err = h.Service.Browse(c.Context(), now)
	}
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Wishes", views, fiber.Map{"count": len(views)})
}

// GetWish GET /api/v1/wishes/get-wish/:wish_id
func (h *Handlers) GetWish(c *fiber.Ctx) error {
	wishID, err := uuid.Parse(c.Params("wish_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for wish_id", fiber.StatusBadRequest, nil)
	}
	view, err := h.Service.Get(c.Context(), wishID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Wish", view, nil)
}

// Assign POST /api/v1/wishes/assign. The caller volunteers, or the owner
// names a helper via helper_id.
func (h *Handlers) Assign(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		WishID   string `json:"wish_id"`
		HelperID string `json:"helper_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.WishID == "" {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	wishID, err := uuid.Parse(body.WishID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for wish_id", fiber.StatusBadRequest, nil)
	}
	helperID := accountID
	if body.HelperID != "" {
		helperID, err = uuid.Parse(body.HelperID)
		if err != nil {
			return response.Error(c, "Invalid UUID format for helper_id", fiber.StatusBadRequest, nil)
		}
	}
	view, err := h.Service.Assign(c.Context(), wishID, accountID, helperID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Wish assigned", view, nil)
}

// ReportCompletion POST /api/v1/wishes/report-completion
func (h *Handlers) ReportCompletion(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	wishID, ok := parseWishID(c)
	if !ok {
		return response.Error(c, "Invalid UUID format for wish_id", fiber.StatusBadRequest, nil)
	}
	view, err := h.Service.ReportCompletion(c.Context(), wishID, accountID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Completion reported", view, nil)
}

// Fulfill POST /api/v1/wishes/fulfill. The owner confirms; the counterparty
// is paid the decayed current value, capped at vessel capacity.
func (h *Handlers) Fulfill(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	wishID, ok := parseWishID(c)
	if !ok {
		return response.Error(c, "Invalid UUID format for wish_id", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.Fulfill(c.Context(), wishID, accountID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Wish fulfilled", result, nil)
}

// Cancel POST /api/v1/wishes/cancel. The owner withdraws an open wish.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	wishID, ok := parseWishID(c)
	if !ok {
		return response.Error(c, "Invalid UUID format for wish_id", fiber.StatusBadRequest, nil)
	}
	view, err := h.Service.Cancel(c.Context(), wishID, accountID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Wish cancelled", view, nil)
}

func parseWishID(c *fiber.Ctx) (uuid.UUID, bool) {
	var body struct {
		WishID string `json:"wish_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.WishID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(body.WishID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
