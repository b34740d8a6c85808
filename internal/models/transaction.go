package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents an intent to move tokens between two accounts
type Transaction struct {
	ID             string
	IdempotencyKey string
	FromAccount    string
	ToAccount      string
	Amount         decimal.Decimal
	CreatedAt      time.Time
}
