package ledger

import (
	"strconv"

	ledgersvc "lumen-backend/internal/application/ledger"
	"lumen-backend/internal/middleware"
	"lumen-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *ledgersvc.Service
}

// GetEntries GET /api/v1/ledger/get-entries?limit=N. The account's audit
// log, newest first. Verification surface only; balances never derive
// from it.
func (h *Handlers) GetEntries(c *fiber.Ctx) error {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	entries, err := h.Service.Entries(c.Context(), accountID, limit)
	if err != nil {
		return response.DomainError(c, err)
	}
	return response.Success(c, "Ledger entries", entries, fiber.Map{"count": len(entries)})
}
