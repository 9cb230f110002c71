package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu    sync.Mutex
	codes []*CardCode
}

// NewMemory creates a concurrency-safe in-memory inventory store useful for
// unit tests. Codes are kept in import order so claims stay FIFO.
func NewMemory() Store {
	return &memoryStore{}
}

func (s *memoryStore) ClaimOneAvailable(_ context.Context, productID, orderID string) (CardCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ProductID == productID && c.Status == StatusAvailable {
			c.Status = StatusSold
			c.OrderID = orderID
			c.SoldAt = time.Now().UTC()
			return *c, nil
		}
	}
	return CardCode{}, ErrOutOfStock
}

func (s *memoryStore) CodeByOrder(_ context.Context, orderID string) (CardCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.OrderID == orderID {
			return *c, nil
		}
	}
	return CardCode{}, ErrCodeNotFound
}

func (s *memoryStore) Import(_ context.Context, productID, batchID string, items []ImportItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, item := range items {
		s.codes = append(s.codes, &CardCode{
			ID:            uuid.NewString(),
			ProductID:     productID,
			ProviderCode:  item.ProviderCode,
			Value:         item.Value,
			Code:          item.Code,
			Serial:        item.Serial,
			ExpiryDate:    item.ExpiryDate,
			Status:        StatusAvailable,
			ImportBatchID: batchID,
			CreatedAt:     now,
		})
	}
	return len(items), nil
}

func (s *memoryStore) Release(_ context.Context, codeID string, status Status) (CardCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c.ID != codeID {
			continue
		}
		if c.Status == StatusAvailable {
			return CardCode{}, ErrCodeNotReleasable
		}
		c.Status = status
		if status == StatusAvailable {
			c.OrderID = ""
			c.SoldAt = time.Time{}
		}
		return *c, nil
	}
	return CardCode{}, ErrCodeNotFound
}

func (s *memoryStore) Stats(_ context.Context, productID string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{ProductID: productID}
	for _, c := range s.codes {
		if c.ProductID != productID {
			continue
		}
		switch c.Status {
		case StatusAvailable:
			stats.Available++
		case StatusSold:
			stats.SoldValue += c.Value
		}
	}
	return stats, nil
}
