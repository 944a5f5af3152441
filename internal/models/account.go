package models

import "time"

// Account holds a single user's balance in integer minor units.
// Balance never goes negative; it is mutated only inside the
// transaction service's atomic unit.
type Account struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"` // minor units
	Currency  string    `json:"currency" db:"currency"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
