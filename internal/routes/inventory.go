package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/doithe/doithe/internal/inventory"
	"github.com/doithe/doithe/internal/purchase"
)

// RegisterInventoryRoutes wires the card pool admin endpoints and the
// buy-card endpoint.
func RegisterInventoryRoutes(r fiber.Router, h *inventory.Handler, p *purchase.Handler) {
	r.Post("/inventory/:productId/import", h.Import)
	r.Get("/inventory/:productId/stats", h.Stats)
	r.Post("/inventory/codes/:codeId/release", h.Release)
	r.Post("/purchases", p.Buy)
}
