package models

import "time"

// Transaction types
const (
	TypeDebit  = "debit"
	TypeCredit = "credit"
)

// Transaction is an immutable ledger entry. Amount is always the
// positive magnitude; Type carries the direction.
type Transaction struct {
	ID          string    `json:"id" db:"id"`
	AccountID   string    `json:"accountId" db:"account_id"`
	Amount      int64     `json:"amount" db:"amount"` // minor units
	Type        string    `json:"type" db:"type"`     // debit or credit
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
