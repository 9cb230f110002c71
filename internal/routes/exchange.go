package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/doithe/doithe/internal/exchange"
)

// RegisterExchangeRoutes wires the settlement endpoint.
func RegisterExchangeRoutes(r fiber.Router, h *exchange.Handler) {
	r.Post("/exchanges/settle", h.Settle)
}
