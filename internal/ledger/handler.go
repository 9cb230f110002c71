package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes ledger HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ensureWalletRequest struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
}

type walletResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	IsActive bool   `json:"is_active"`
}

type recordRequest struct {
	UserID      string         `json:"user_id"`
	Amount      int64          `json:"amount"`
	Type        string         `json:"type"`
	Flow        string         `json:"flow"`
	ReferenceID string         `json:"reference_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type transactionResponse struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Amount        int64          `json:"amount"`
	Type          string         `json:"type"`
	Flow          string         `json:"flow"`
	Status        string         `json:"status"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	ReferenceID   string         `json:"reference_id"`
	Description   string         `json:"description"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toTransactionResponse(tx Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Type:          string(tx.Type),
		Flow:          string(tx.Flow),
		Status:        string(tx.Status),
		BalanceBefore: tx.BalanceBefore,
		BalanceAfter:  tx.BalanceAfter,
		ReferenceID:   tx.ReferenceID,
		Description:   tx.Description,
		Metadata:      tx.Metadata,
		CreatedAt:     tx.CreatedAt,
	}
}

// EnsureWallet provisions the wallet for a user at onboarding.
func (h *Handler) EnsureWallet(c *fiber.Ctx) error {
	var req ensureWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.EnsureWallet(c.UserContext(), req.UserID, req.Currency)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(walletResponse{
		ID: w.ID, UserID: w.UserID, Balance: w.Balance, Currency: w.Currency, IsActive: w.IsActive,
	})
}

// GetWallet returns a user's wallet and balance.
func (h *Handler) GetWallet(c *fiber.Ctx) error {
	w, err := h.service.GetWallet(c.UserContext(), c.Params("userId"))
	if err != nil {
		if errors.Is(err, ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		ID: w.ID, UserID: w.UserID, Balance: w.Balance, Currency: w.Currency, IsActive: w.IsActive,
	})
}

// Record posts one balance-affecting transaction.
func (h *Handler) Record(c *fiber.Ctx) error {
	var req recordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.RecordTransaction(c.UserContext(), RecordInput{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        Type(req.Type),
		Flow:        Flow(req.Flow),
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateReference):
			// Already processed; return the original outcome.
			return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
		case errors.Is(err, ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ErrWalletBusy):
			return fiber.NewError(http.StatusServiceUnavailable, "wallet busy, retry later")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Refund reverses a settled transaction.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req refundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := h.service.RefundTransaction(c.UserContext(), c.Params("transactionId"), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateReference):
			return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
		case errors.Is(err, ErrInvalidRefundTarget):
			return fiber.NewError(http.StatusUnprocessableEntity, "invalid refund target")
		case errors.Is(err, ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ErrWalletBusy):
			return fiber.NewError(http.StatusServiceUnavailable, "wallet busy, retry later")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Get returns one transaction by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	tx, err := h.service.GetTransaction(c.UserContext(), c.Params("transactionId"))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return fiber.NewError(http.StatusNotFound, "transaction not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toTransactionResponse(tx))
}

// List returns a user's transaction history, newest first.
func (h *Handler) List(c *fiber.Ctx) error {
	filter := Filter{
		Type:   Type(c.Query("type")),
		Status: Status(c.Query("status")),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return fiber.NewError(http.StatusBadRequest, "invalid limit")
		}
		filter.Limit = limit
	}
	txs, err := h.service.ListTransactions(c.UserContext(), c.Params("userId"), filter)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}
