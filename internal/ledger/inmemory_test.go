package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestConcurrentSameUserSerialized(t *testing.T) {
	store := NewMemory(5 * time.Second)
	ctx := context.Background()

	userID := uuid.NewString()
	if _, err := store.EnsureWallet(ctx, userID, "VND"); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Apply(ctx, Entry{
				UserID:      userID,
				Amount:      1_000,
				Type:        TypeWalletTopup,
				Flow:        FlowIn,
				Status:      StatusSuccess,
				ReferenceID: uuid.NewString(),
			})
			if err != nil {
				t.Errorf("apply %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	w, err := store.Wallet(ctx, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != workers*1_000 {
		t.Fatalf("expected balance %d, got %d", workers*1_000, w.Balance)
	}

	// Snapshots must form a strict chain: every balanceBefore appears once.
	txs, err := store.Transactions(ctx, userID, Filter{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	seen := make(map[int64]bool, len(txs))
	for _, tx := range txs {
		if seen[tx.BalanceBefore] {
			t.Fatalf("duplicate balanceBefore snapshot %d", tx.BalanceBefore)
		}
		seen[tx.BalanceBefore] = true
		if tx.BalanceAfter != tx.BalanceBefore+1_000 {
			t.Fatalf("broken snapshot chain: %+v", tx)
		}
	}
}

func TestWalletBusyOnHeldLock(t *testing.T) {
	store := NewMemory(30 * time.Millisecond)
	ctx := context.Background()

	userID := uuid.NewString()
	store.EnsureWallet(ctx, userID, "VND") // nolint:errcheck

	release := HoldWallet(store, userID)
	defer release()

	_, err := store.Apply(ctx, Entry{
		UserID:      userID,
		Amount:      500,
		Type:        TypeWalletTopup,
		Flow:        FlowIn,
		Status:      StatusSuccess,
		ReferenceID: "held",
	})
	if !errors.Is(err, ErrWalletBusy) {
		t.Fatalf("expected wallet busy, got %v", err)
	}
}

func TestCrossUserNonInterference(t *testing.T) {
	store := NewMemory(50 * time.Millisecond)
	ctx := context.Background()

	blocked := uuid.NewString()
	free := uuid.NewString()
	store.EnsureWallet(ctx, blocked, "VND") // nolint:errcheck
	store.EnsureWallet(ctx, free, "VND")    // nolint:errcheck

	release := HoldWallet(store, blocked)
	defer release()

	// The held lock on one user must not delay another user's mutation.
	done := make(chan error, 1)
	go func() {
		_, err := store.Apply(ctx, Entry{
			UserID:      free,
			Amount:      1_000,
			Type:        TypeWalletTopup,
			Flow:        FlowIn,
			Status:      StatusSuccess,
			ReferenceID: uuid.NewString(),
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("apply for unrelated user: %v", err)
		}
	case <-time.After(40 * time.Millisecond):
		t.Fatal("unrelated user's mutation blocked behind a foreign wallet lock")
	}
}

func TestApplyContextCanceled(t *testing.T) {
	store := NewMemory(time.Second)
	ctx := context.Background()

	userID := uuid.NewString()
	store.EnsureWallet(ctx, userID, "VND") // nolint:errcheck

	release := HoldWallet(store, userID)
	defer release()

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := store.Apply(canceled, Entry{
		UserID:      userID,
		Amount:      100,
		Type:        TypeWalletTopup,
		Flow:        FlowIn,
		Status:      StatusSuccess,
		ReferenceID: "canceled",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
