package notification

import (
	"context"
	"log/slog"
)

const (
	// KindCardPurchase indicates a completed card purchase.
	KindCardPurchase = "card_purchase"
	// KindExchangeSettled indicates a card exchange reached a terminal status.
	KindExchangeSettled = "exchange_settled"
	// KindRefund indicates a refund was posted to the user's wallet.
	KindRefund = "refund"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a notifier backed by the application logger.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send logs the notification instead of delivering it.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body))
	return nil
}
