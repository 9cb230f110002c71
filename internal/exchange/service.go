package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/doithe/doithe/internal/ledger"
	"github.com/doithe/doithe/internal/notification"
)

// Service settles card-exchange submissions once the upstream provider has
// reported the real card value. The provider integration itself is an
// external collaborator; this service only turns its verdict into a ledger
// entry.
//
// Settlement policy for a wrong declared value: pay out at
// min(declared, real) x rate, reduced by the configured penalty rate, and
// record the entry as WRONG_VALUE. Admins reconcile disputed cases through
// the refund path.
type Service struct {
	ledger      *ledger.Service
	penaltyRate float64
	notifier    notification.Notifier
	logger      *slog.Logger
}

// NewService builds an exchange settlement service. penaltyRate is the
// fraction withheld on a wrong-value card, in [0, 1).
func NewService(ledgerSvc *ledger.Service, penaltyRate float64, notifier notification.Notifier, logger *slog.Logger) (*Service, error) {
	if penaltyRate < 0 || penaltyRate >= 1 {
		return nil, fmt.Errorf("penalty rate must be in [0, 1), got %v", penaltyRate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledgerSvc, penaltyRate: penaltyRate, notifier: notifier, logger: logger}, nil
}

// SettleInput captures a provider verdict for one submitted card.
type SettleInput struct {
	UserID        string
	ReferenceID   string
	Provider      string
	Serial        string
	DeclaredValue int64
	// RealValue is the face value the provider actually credited. Zero means
	// the card was dead, used or blocked.
	RealValue int64
	// Rate is the user's exchange rate in (0, 1]: the fraction of face value
	// paid out.
	Rate float64
}

// Settle records the terminal ledger entry for one card submission and
// returns it. Payout entries credit the wallet; FAILED and INVALID_FORMAT
// entries are record-only.
func (s *Service) Settle(ctx context.Context, input SettleInput) (ledger.Transaction, error) {
	if input.DeclaredValue <= 0 {
		return ledger.Transaction{}, fmt.Errorf("declared value must be positive")
	}
	if input.Rate <= 0 || input.Rate > 1 {
		return ledger.Transaction{}, fmt.Errorf("rate must be in (0, 1]")
	}

	metadata := map[string]any{
		"provider":      input.Provider,
		"serial":        input.Serial,
		"declaredValue": input.DeclaredValue,
		"realValue":     input.RealValue,
	}

	var (
		status ledger.Status
		amount int64
	)
	switch {
	case !validSerial(input.Serial):
		status = ledger.StatusInvalidFormat
		amount = input.DeclaredValue
	case input.RealValue == 0:
		status = ledger.StatusFailed
		amount = input.DeclaredValue
	case input.RealValue == input.DeclaredValue:
		status = ledger.StatusSuccess
		amount = payout(input.RealValue, input.Rate, 0)
	default:
		status = ledger.StatusWrongValue
		base := min(input.DeclaredValue, input.RealValue)
		amount = payout(base, input.Rate, s.penaltyRate)
		metadata["penaltyRate"] = s.penaltyRate
	}

	if amount <= 0 {
		// A penalty that eats the whole payout settles as FAILED, record-only.
		status = ledger.StatusFailed
		amount = input.DeclaredValue
	}

	tx, err := s.ledger.RecordTransaction(ctx, ledger.RecordInput{
		UserID:      input.UserID,
		Amount:      amount,
		Type:        ledger.TypeCardExchange,
		Flow:        ledger.FlowIn,
		Status:      status,
		ReferenceID: input.ReferenceID,
		Description: fmt.Sprintf("card exchange %s %d", input.Provider, input.DeclaredValue),
		Metadata:    metadata,
	})
	if err != nil {
		return tx, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindExchangeSettled,
			Destination: input.UserID,
			Body:        fmt.Sprintf("Card %s %d settled as %s", input.Provider, input.DeclaredValue, status),
		})
	}
	return tx, nil
}

func payout(base int64, rate, penalty float64) int64 {
	return int64(math.Floor(float64(base) * rate * (1 - penalty)))
}

func validSerial(serial string) bool {
	if len(serial) < 8 || len(serial) > 20 {
		return false
	}
	for _, r := range serial {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
