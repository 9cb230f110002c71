package inventory

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes inventory admin endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an inventory HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type importItemRequest struct {
	ProviderCode string `json:"provider_code"`
	Value        int64  `json:"value"`
	Code         string `json:"code"`
	Serial       string `json:"serial"`
	ExpiryDate   string `json:"expiry_date"`
}

type importRequest struct {
	Items []importItemRequest `json:"items"`
}

type releaseRequest struct {
	Status string `json:"status"`
}

// Import loads a batch of card codes into the pool.
func (h *Handler) Import(c *fiber.Ctx) error {
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	items := make([]ImportItem, 0, len(req.Items))
	for _, item := range req.Items {
		parsed := ImportItem{
			ProviderCode: item.ProviderCode,
			Value:        item.Value,
			Code:         item.Code,
			Serial:       item.Serial,
		}
		if item.ExpiryDate != "" {
			expiry, err := time.Parse("2006-01-02", item.ExpiryDate)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "item "+item.Serial+": invalid expiry date")
			}
			parsed.ExpiryDate = expiry
		}
		items = append(items, parsed)
	}
	res, err := h.service.ImportBatch(c.UserContext(), c.Params("productId"), items)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"batch_id": res.BatchID,
		"count":    res.Count,
	})
}

// Stats reports the pool state for a product.
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), c.Params("productId"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"product_id": stats.ProductID,
		"available":  stats.Available,
		"sold_value": stats.SoldValue,
	})
}

// Release moves a claimed code back to AVAILABLE or parks it as ERROR/HELD.
func (h *Handler) Release(c *fiber.Ctx) error {
	var req releaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	code, err := h.service.Release(c.UserContext(), c.Params("codeId"), Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeNotFound):
			return fiber.NewError(http.StatusNotFound, "card code not found")
		case errors.Is(err, ErrCodeNotReleasable):
			return fiber.NewError(http.StatusConflict, "card code not releasable")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"code_id": code.ID,
		"status":  string(code.Status),
	})
}
