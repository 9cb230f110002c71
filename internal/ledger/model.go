package ledger

import "time"

// Type classifies the business event behind a ledger entry.
type Type string

const (
	TypeCardExchange   Type = "CARD_EXCHANGE"
	TypeWalletTopup    Type = "WALLET_TOPUP"
	TypeWalletWithdraw Type = "WALLET_WITHDRAW"
	TypeCardPurchase   Type = "CARD_PURCHASE"
	TypeRefund         Type = "REFUND"
	TypeAdjustment     Type = "ADJUSTMENT"
	TypeFee            Type = "FEE"
)

// Flow marks whether an entry credits (IN) or debits (OUT) the wallet.
type Flow string

const (
	FlowIn  Flow = "IN"
	FlowOut Flow = "OUT"
)

// Status is the settlement state of a ledger entry. Entries written by the
// immediate-consistency path are created directly in a terminal status.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	// StatusWrongValue marks a card exchange settled at the real card value
	// after the declared value turned out to be wrong. It affects the balance
	// like SUCCESS does.
	StatusWrongValue Status = "WRONG_VALUE"
	// StatusInvalidFormat marks a rejected card submission (bad serial or
	// code). Record-only, no balance effect.
	StatusInvalidFormat Status = "INVALID_FORMAT"
)

// AffectsBalance reports whether entries in this status move wallet funds.
func (s Status) AffectsBalance() bool {
	return s == StatusSuccess || s == StatusWrongValue
}

// Wallet is the durable balance record for one user. Balances are integral
// VND amounts; the ledger store is the only writer.
type Wallet struct {
	ID            string
	UserID        string
	Balance       int64
	FrozenBalance int64
	Currency      string
	IsActive      bool
	UpdatedAt     time.Time
}

// Transaction is one immutable balance-affecting event with balance
// snapshots taken at commit time.
type Transaction struct {
	ID            string
	UserID        string
	Amount        int64
	Type          Type
	Flow          Flow
	Status        Status
	BalanceBefore int64
	BalanceAfter  int64
	ReferenceID   string
	Description   string
	Metadata      map[string]any
	CreatedAt     time.Time
}
