package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/doithe/doithe/internal/ledger"
)

// RegisterLedgerRoutes wires wallet and transaction endpoints.
func RegisterLedgerRoutes(r fiber.Router, h *ledger.Handler) {
	r.Post("/wallets", h.EnsureWallet)
	r.Get("/wallets/:userId", h.GetWallet)
	r.Post("/transactions", h.Record)
	r.Get("/transactions/:transactionId", h.Get)
	r.Post("/transactions/:transactionId/refund", h.Refund)
	r.Get("/users/:userId/transactions", h.List)
}
