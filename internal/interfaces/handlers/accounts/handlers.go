package accounts

import (
	"errors"
	"time"

	ledgersvc "lumen-backend/internal/application/ledger"
	renewalsvc "lumen-backend/internal/application/renewal"
	"lumen-backend/internal/domain"
	"lumen-backend/internal/lumen"
	"lumen-backend/internal/middleware"
	"lumen-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Ledger  *ledgersvc.Service
	Renewal *renewalsvc.Service
}

// Balance handles GET /api/v1/accounts/balance. The O(1) read path; display
// decay happens client-side between polls, settlement always recomputes.
func (h *Handlers) Balance(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	view, err := h.Ledger.Balance(c.Context(), accountID, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Balance", view, nil)
}

// Pay handles POST /api/v1/accounts/pay, an unconditional spend.
func (h *Handlers) Pay(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil || body.Amount <= 0 {
		return response.Error(c, "Missing required fields", fiber.StatusBadRequest, nil)
	}
	amountMicros := lumen.FloatToMicros(body.Amount)
	view, err := h.Ledger.Pay(c.Context(), accountID, amountMicros, time.Now())
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Payment applied", view, nil)
}

// Renew handles POST /api/v1/accounts/renew, the cycle refill. Not-ready and
// already-applied are control flow, not failures: callers that retry
// blindly must be able to treat both as settled.
func (h *Handlers) Renew(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	result, err := h.Renewal.Renew(c.Context(), accountID, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrRenewalNotReady) {
			return response.Success(c, "Renewal not ready", fiber.Map{"renewed": false, "reason": "cycle_running"}, nil)
		}
		if errors.Is(err, domain.ErrAlreadyApplied) {
			return response.Success(c, "Renewal already applied", fiber.Map{"renewed": false, "reason": "already_applied"}, nil)
		}
		return response.DomainError(c, err)
	}
	return response.Success(c, "Cycle renewed", fiber.Map{"renewed": true, "result": result}, nil)
}
