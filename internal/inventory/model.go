package inventory

import "time"

// Status is the lifecycle state of one sellable card code. A code moves from
// AVAILABLE to SOLD exactly once and never back.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusSold      Status = "SOLD"
	StatusHeld      Status = "HELD"
	StatusError     Status = "ERROR"
)

// CardCode is one pre-paid code in the sellable pool. Code is stored sealed
// at rest; the service opens it when dispensing.
type CardCode struct {
	ID            string
	ProductID     string
	ProviderCode  string
	Value         int64
	Code          string
	Serial        string
	ExpiryDate    time.Time
	Status        Status
	OrderID       string
	ImportBatchID string
	SoldAt        time.Time
	CreatedAt     time.Time
}

// ImportItem is one code supplied by admin tooling for a bulk import.
type ImportItem struct {
	ProviderCode string
	Value        int64
	Code         string
	Serial       string
	ExpiryDate   time.Time
}

// Stats summarizes the pool for one product.
type Stats struct {
	ProductID string
	Available int
	SoldValue int64
}
