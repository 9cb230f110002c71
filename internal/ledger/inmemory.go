package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.Mutex
	wallets  map[string]*Wallet
	locks    map[string]chan struct{}
	byID     map[string]Transaction
	byRef    map[string]Transaction
	byUser   map[string][]string
	lockWait time.Duration
}

// NewMemory creates a concurrency-safe in-memory ledger store useful for
// unit tests. lockWait mirrors the Postgres lock_timeout: an Apply that
// cannot acquire the wallet lock within it fails with ErrWalletBusy.
func NewMemory(lockWait time.Duration) Store {
	if lockWait <= 0 {
		lockWait = 3 * time.Second
	}
	return &memoryStore{
		wallets:  make(map[string]*Wallet),
		locks:    make(map[string]chan struct{}),
		byID:     make(map[string]Transaction),
		byRef:    make(map[string]Transaction),
		byUser:   make(map[string][]string),
		lockWait: lockWait,
	}
}

func (s *memoryStore) EnsureWallet(_ context.Context, userID, currency string) (Wallet, error) {
	if currency == "" {
		currency = "VND"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		return *w, nil
	}
	w := &Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	}
	s.wallets[userID] = w
	s.locks[userID] = make(chan struct{}, 1)
	return *w, nil
}

func (s *memoryStore) Wallet(_ context.Context, userID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (s *memoryStore) Apply(ctx context.Context, entry Entry) (Transaction, error) {
	s.mu.Lock()
	lock, ok := s.locks[entry.UserID]
	s.mu.Unlock()
	if !ok {
		return Transaction{}, ErrWalletNotFound
	}

	// Per-wallet lock with a bounded wait, matching the row lock semantics of
	// the Postgres store. Wallets of different users never contend here.
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case lock <- struct{}{}:
	case <-timer.C:
		return Transaction{}, ErrWalletBusy
	case <-ctx.Done():
		return Transaction{}, ctx.Err()
	}
	defer func() { <-lock }()

	s.mu.Lock()
	defer s.mu.Unlock()

	wallet := s.wallets[entry.UserID]
	if !wallet.IsActive {
		return Transaction{}, ErrWalletInactive
	}
	if _, exists := s.byRef[entry.ReferenceID]; exists {
		return Transaction{}, ErrDuplicateReference
	}

	balanceBefore := wallet.Balance
	balanceAfter := balanceBefore
	if entry.Status.AffectsBalance() {
		if entry.Flow == FlowOut {
			if balanceBefore < entry.Amount {
				return Transaction{}, ErrInsufficientBalance
			}
			balanceAfter = balanceBefore - entry.Amount
		} else {
			balanceAfter = balanceBefore + entry.Amount
		}
		wallet.Balance = balanceAfter
		wallet.UpdatedAt = time.Now().UTC()
	}

	tx := Transaction{
		ID:            uuid.NewString(),
		UserID:        entry.UserID,
		Amount:        entry.Amount,
		Type:          entry.Type,
		Flow:          entry.Flow,
		Status:        entry.Status,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceID:   entry.ReferenceID,
		Description:   entry.Description,
		Metadata:      entry.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	s.byID[tx.ID] = tx
	s.byRef[tx.ReferenceID] = tx
	s.byUser[tx.UserID] = append(s.byUser[tx.UserID], tx.ID)
	return tx, nil
}

func (s *memoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *memoryStore) TransactionByReference(_ context.Context, referenceID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byRef[referenceID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *memoryStore) Transactions(_ context.Context, userID string, filter Filter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	out := make([]Transaction, 0, len(ids))
	// Newest first, like the Postgres history query.
	for i := len(ids) - 1; i >= 0; i-- {
		tx := s.byID[ids[i]]
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && tx.CreatedAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !tx.CreatedAt.Before(filter.Until) {
			continue
		}
		out = append(out, tx)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
