package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/doithe/doithe/internal/logging"
)

func newTestService(t *testing.T) (*Service, Store) {
	t.Helper()
	store := NewMemory(time.Second)
	return NewService(store, logging.Discard()), store
}

func TestRecordTransactionDebit(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	if _, err := svc.EnsureWallet(ctx, userID, "VND"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	SeedWallet(store, userID, 100_000)

	tx, err := svc.RecordTransaction(ctx, RecordInput{
		UserID:      userID,
		Amount:      50_000,
		Type:        TypeWalletWithdraw,
		Flow:        FlowOut,
		ReferenceID: "r2",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tx.BalanceBefore != 100_000 || tx.BalanceAfter != 50_000 {
		t.Fatalf("unexpected snapshots: before=%d after=%d", tx.BalanceBefore, tx.BalanceAfter)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", tx.Status)
	}

	w, err := svc.GetWallet(ctx, userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 50_000 {
		t.Fatalf("expected balance 50000, got %d", w.Balance)
	}
}

func TestRecordTransactionInsufficientBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	if _, err := svc.EnsureWallet(ctx, userID, "VND"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	SeedWallet(store, userID, 100_000)

	_, err := svc.RecordTransaction(ctx, RecordInput{
		UserID:      userID,
		Amount:      150_000,
		Type:        TypeWalletWithdraw,
		Flow:        FlowOut,
		ReferenceID: "r1",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	w, _ := svc.GetWallet(ctx, userID)
	if w.Balance != 100_000 {
		t.Fatalf("balance must be unchanged, got %d", w.Balance)
	}
	if txs, _ := svc.ListTransactions(ctx, userID, Filter{}); len(txs) != 0 {
		t.Fatalf("no transaction must be recorded, got %d", len(txs))
	}
}

func TestRecordTransactionIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 10_000)

	input := RecordInput{
		UserID:      userID,
		Amount:      2_000,
		Type:        TypeWalletTopup,
		Flow:        FlowIn,
		ReferenceID: "topup-1",
	}
	first, err := svc.RecordTransaction(ctx, input)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}

	second, err := svc.RecordTransaction(ctx, input)
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate must return the original transaction")
	}

	w, _ := svc.GetWallet(ctx, userID)
	if w.Balance != 12_000 {
		t.Fatalf("balance must be applied exactly once, got %d", w.Balance)
	}
	if txs, _ := svc.ListTransactions(ctx, userID, Filter{}); len(txs) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(txs))
	}
}

func TestRecordTransactionWalletNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RecordTransaction(context.Background(), RecordInput{
		UserID:      uuid.NewString(),
		Amount:      1_000,
		Type:        TypeWalletTopup,
		Flow:        FlowIn,
		ReferenceID: "x",
	})
	if !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestRecordOnlyStatusKeepsBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 5_000)

	tx, err := svc.RecordTransaction(ctx, RecordInput{
		UserID:      userID,
		Amount:      50_000,
		Type:        TypeCardExchange,
		Flow:        FlowIn,
		Status:      StatusFailed,
		ReferenceID: "dead-card-1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tx.BalanceBefore != tx.BalanceAfter {
		t.Fatalf("record-only entry must not move balance: %+v", tx)
	}
	w, _ := svc.GetWallet(ctx, userID)
	if w.Balance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", w.Balance)
	}
}

func TestRefundRestoresBalance(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 100_000)

	original, err := svc.RecordTransaction(ctx, RecordInput{
		UserID:      userID,
		Amount:      30_000,
		Type:        TypeCardPurchase,
		Flow:        FlowOut,
		ReferenceID: "order-9",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	refund, err := svc.RefundTransaction(ctx, original.ID, "defective card")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Type != TypeRefund || refund.Flow != FlowIn {
		t.Fatalf("unexpected refund row: %+v", refund)
	}
	if refund.ReferenceID != original.ID {
		t.Fatalf("refund must reference the original id")
	}

	w, _ := svc.GetWallet(ctx, userID)
	if w.Balance != 100_000 {
		t.Fatalf("refund must restore balance, got %d", w.Balance)
	}

	// Original row untouched.
	kept, _ := svc.GetTransaction(ctx, original.ID)
	if kept.Status != StatusSuccess || kept.BalanceAfter != original.BalanceAfter {
		t.Fatalf("original row mutated: %+v", kept)
	}

	// A second refund of the same transaction collapses onto the first.
	again, err := svc.RefundTransaction(ctx, original.ID, "retry")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if again.ID != refund.ID {
		t.Fatalf("second refund must return the first refund row")
	}
	w, _ = svc.GetWallet(ctx, userID)
	if w.Balance != 100_000 {
		t.Fatalf("balance must not change twice, got %d", w.Balance)
	}
}

func TestRefundInvalidTargets(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 50_000)

	if _, err := svc.RefundTransaction(ctx, uuid.NewString(), "missing"); !errors.Is(err, ErrInvalidRefundTarget) {
		t.Fatalf("expected invalid target for missing tx, got %v", err)
	}

	failed, err := svc.RecordTransaction(ctx, RecordInput{
		UserID: userID, Amount: 10_000, Type: TypeCardExchange, Flow: FlowIn,
		Status: StatusFailed, ReferenceID: "f1",
	})
	if err != nil {
		t.Fatalf("record failed entry: %v", err)
	}
	if _, err := svc.RefundTransaction(ctx, failed.ID, "not refundable"); !errors.Is(err, ErrInvalidRefundTarget) {
		t.Fatalf("expected invalid target for FAILED tx, got %v", err)
	}

	original, err := svc.RecordTransaction(ctx, RecordInput{
		UserID: userID, Amount: 5_000, Type: TypeFee, Flow: FlowOut, ReferenceID: "fee1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	refund, err := svc.RefundTransaction(ctx, original.ID, "waived")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := svc.RefundTransaction(ctx, refund.ID, "refund of refund"); !errors.Is(err, ErrInvalidRefundTarget) {
		t.Fatalf("expected invalid target for refund row, got %v", err)
	}
}

func TestBalanceMatchesLedgerSum(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 200_000)

	ops := []RecordInput{
		{Amount: 40_000, Type: TypeWalletTopup, Flow: FlowIn, ReferenceID: "a"},
		{Amount: 70_000, Type: TypeCardPurchase, Flow: FlowOut, ReferenceID: "b"},
		{Amount: 25_000, Type: TypeCardExchange, Flow: FlowIn, Status: StatusWrongValue, ReferenceID: "c"},
		{Amount: 90_000, Type: TypeCardExchange, Flow: FlowIn, Status: StatusFailed, ReferenceID: "d"},
		{Amount: 10_000, Type: TypeFee, Flow: FlowOut, ReferenceID: "e"},
	}
	for _, op := range ops {
		op.UserID = userID
		if _, err := svc.RecordTransaction(ctx, op); err != nil {
			t.Fatalf("record %s: %v", op.ReferenceID, err)
		}
	}

	txs, err := svc.ListTransactions(ctx, userID, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sum := int64(200_000)
	for _, tx := range txs {
		if !tx.Status.AffectsBalance() {
			continue
		}
		if tx.Flow == FlowIn {
			sum += tx.Amount
		} else {
			sum -= tx.Amount
		}
	}
	w, _ := svc.GetWallet(ctx, userID)
	if w.Balance != sum {
		t.Fatalf("balance %d diverges from ledger sum %d", w.Balance, sum)
	}
	if w.Balance < 0 {
		t.Fatalf("balance must never be negative")
	}
}

func TestListTransactionsFilters(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := uuid.NewString()
	svc.EnsureWallet(ctx, userID, "VND") // nolint:errcheck
	SeedWallet(store, userID, 100_000)

	svc.RecordTransaction(ctx, RecordInput{UserID: userID, Amount: 1_000, Type: TypeFee, Flow: FlowOut, ReferenceID: "f1"})         // nolint:errcheck
	svc.RecordTransaction(ctx, RecordInput{UserID: userID, Amount: 2_000, Type: TypeWalletTopup, Flow: FlowIn, ReferenceID: "t1"})  // nolint:errcheck
	svc.RecordTransaction(ctx, RecordInput{UserID: userID, Amount: 3_000, Type: TypeWalletTopup, Flow: FlowIn, ReferenceID: "t2"})  // nolint:errcheck

	topups, err := svc.ListTransactions(ctx, userID, Filter{Type: TypeWalletTopup})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topups) != 2 {
		t.Fatalf("expected 2 topups, got %d", len(topups))
	}
	// Newest first.
	if topups[0].ReferenceID != "t2" {
		t.Fatalf("expected newest first, got %s", topups[0].ReferenceID)
	}

	limited, _ := svc.ListTransactions(ctx, userID, Filter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}
