package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doithe/doithe/internal/ledger"
	"github.com/doithe/doithe/internal/logging"
)

func newTestService(t *testing.T, penalty float64) (*Service, *ledger.Service, ledger.Store) {
	t.Helper()
	store := ledger.NewMemory(time.Second)
	ledgerSvc := ledger.NewService(store, logging.Discard())
	svc, err := NewService(ledgerSvc, penalty, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, ledgerSvc, store
}

func seedUser(t *testing.T, ledgerSvc *ledger.Service, store ledger.Store, balance int64) string {
	t.Helper()
	userID := uuid.NewString()
	if _, err := ledgerSvc.EnsureWallet(context.Background(), userID, "VND"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedWallet(store, userID, balance)
	return userID
}

func TestSettleMatchingValue(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 0)

	tx, err := svc.Settle(ctx, SettleInput{
		UserID:        userID,
		ReferenceID:   "card-1",
		Provider:      "VIETTEL",
		Serial:        "1000111000",
		DeclaredValue: 50_000,
		RealValue:     50_000,
		Rate:          0.85,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != ledger.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", tx.Status)
	}
	if tx.Amount != 42_500 {
		t.Fatalf("expected payout 42500, got %d", tx.Amount)
	}

	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != 42_500 {
		t.Fatalf("expected balance 42500, got %d", w.Balance)
	}
}

func TestSettleWrongValuePenalized(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 0)

	// Declared 100k, real card was 50k: settle on the real value with the
	// penalty applied.
	tx, err := svc.Settle(ctx, SettleInput{
		UserID:        userID,
		ReferenceID:   "card-2",
		Provider:      "VIETTEL",
		Serial:        "1000111001",
		DeclaredValue: 100_000,
		RealValue:     50_000,
		Rate:          0.8,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != ledger.StatusWrongValue {
		t.Fatalf("expected WRONG_VALUE, got %s", tx.Status)
	}
	if tx.Amount != 20_000 {
		t.Fatalf("expected payout 20000, got %d", tx.Amount)
	}
	if tx.Metadata["realValue"] != int64(50_000) {
		t.Fatalf("metadata must carry the real value: %+v", tx.Metadata)
	}

	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != 20_000 {
		t.Fatalf("expected balance 20000, got %d", w.Balance)
	}
}

func TestSettleDeadCardRecordOnly(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 7_000)

	tx, err := svc.Settle(ctx, SettleInput{
		UserID:        userID,
		ReferenceID:   "card-3",
		Provider:      "VINA",
		Serial:        "2000222000",
		DeclaredValue: 20_000,
		RealValue:     0,
		Rate:          0.8,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("expected FAILED, got %s", tx.Status)
	}
	if tx.BalanceBefore != tx.BalanceAfter {
		t.Fatalf("dead card must not move balance: %+v", tx)
	}
	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != 7_000 {
		t.Fatalf("expected balance unchanged, got %d", w.Balance)
	}
}

func TestSettleInvalidSerial(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 0)

	tx, err := svc.Settle(ctx, SettleInput{
		UserID:        userID,
		ReferenceID:   "card-4",
		Provider:      "VIETTEL",
		Serial:        "bad-serial",
		DeclaredValue: 10_000,
		RealValue:     10_000,
		Rate:          0.8,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != ledger.StatusInvalidFormat {
		t.Fatalf("expected INVALID_FORMAT, got %s", tx.Status)
	}
	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != 0 {
		t.Fatalf("invalid card must not pay out, got %d", w.Balance)
	}
}

func TestSettleDuplicateReference(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 0)

	input := SettleInput{
		UserID:        userID,
		ReferenceID:   "card-5",
		Provider:      "VIETTEL",
		Serial:        "3000333000",
		DeclaredValue: 10_000,
		RealValue:     10_000,
		Rate:          0.8,
	}
	first, err := svc.Settle(ctx, input)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	second, err := svc.Settle(ctx, input)
	if !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate settle must return the original entry")
	}
	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != first.Amount {
		t.Fatalf("payout must be applied once, got %d", w.Balance)
	}
}

func TestWrongValueSettlementRefundable(t *testing.T) {
	svc, ledgerSvc, store := newTestService(t, 0.5)
	ctx := context.Background()
	userID := seedUser(t, ledgerSvc, store, 0)

	tx, err := svc.Settle(ctx, SettleInput{
		UserID:        userID,
		ReferenceID:   "card-6",
		Provider:      "VIETTEL",
		Serial:        "4000444000",
		DeclaredValue: 100_000,
		RealValue:     50_000,
		Rate:          0.8,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	// Admin reverses the penalized settlement after a successful dispute.
	refund, err := ledgerSvc.RefundTransaction(ctx, tx.ID, "dispute accepted")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Flow != ledger.FlowOut {
		t.Fatalf("refund of a payout must debit, got %s", refund.Flow)
	}
	w, _ := ledgerSvc.GetWallet(ctx, userID)
	if w.Balance != 0 {
		t.Fatalf("refund must restore prior balance, got %d", w.Balance)
	}
}

func TestNewServiceRejectsBadPenalty(t *testing.T) {
	ledgerSvc := ledger.NewService(ledger.NewMemory(time.Second), logging.Discard())
	if _, err := NewService(ledgerSvc, 1.0, nil, logging.Discard()); err == nil {
		t.Fatal("expected error for penalty rate 1.0")
	}
	if _, err := NewService(ledgerSvc, -0.1, nil, logging.Discard()); err == nil {
		t.Fatal("expected error for negative penalty rate")
	}
}
