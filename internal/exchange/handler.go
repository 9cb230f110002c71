package exchange

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/doithe/doithe/internal/ledger"
)

// Handler exposes the settlement endpoint consumed by the provider callback
// processor.
type Handler struct {
	service *Service
}

// NewHandler constructs an exchange handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type settleRequest struct {
	UserID        string  `json:"user_id"`
	ReferenceID   string  `json:"reference_id"`
	Provider      string  `json:"provider"`
	Serial        string  `json:"serial"`
	DeclaredValue int64   `json:"declared_value"`
	RealValue     int64   `json:"real_value"`
	Rate          float64 `json:"rate"`
}

// Settle records the terminal outcome of one card submission.
func (h *Handler) Settle(c *fiber.Ctx) error {
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.Settle(c.UserContext(), SettleInput{
		UserID:        req.UserID,
		ReferenceID:   req.ReferenceID,
		Provider:      req.Provider,
		Serial:        req.Serial,
		DeclaredValue: req.DeclaredValue,
		RealValue:     req.RealValue,
		Rate:          req.Rate,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateReference):
			return c.Status(http.StatusOK).JSON(settleResponse(tx))
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrWalletBusy):
			return fiber.NewError(http.StatusServiceUnavailable, "wallet busy, retry later")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(settleResponse(tx))
}

func settleResponse(tx ledger.Transaction) fiber.Map {
	return fiber.Map{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
		"amount":         tx.Amount,
		"balance_after":  tx.BalanceAfter,
	}
}
