package purchase

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/doithe/doithe/internal/inventory"
	"github.com/doithe/doithe/internal/ledger"
)

// Handler exposes the buy-card endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a purchase handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type purchaseRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	OrderID   string `json:"order_id"`
	Price     int64  `json:"price"`
}

// Buy dispenses a card code and charges the buyer.
func (h *Handler) Buy(c *fiber.Ctx) error {
	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Purchase(c.UserContext(), Input{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Price:     req.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrOutOfStock):
			return fiber.NewError(http.StatusConflict, "out of stock")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrWalletBusy):
			return fiber.NewError(http.StatusServiceUnavailable, "wallet busy, retry later")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.Transaction.ID,
		"balance_after":  res.Transaction.BalanceAfter,
		"card": fiber.Map{
			"id":            res.Code.ID,
			"provider_code": res.Code.ProviderCode,
			"value":         res.Code.Value,
			"code":          res.Code.Code,
			"serial":        res.Code.Serial,
			"expiry_date":   res.Code.ExpiryDate,
		},
		"completed_at": res.CompletedAt,
	})
}
