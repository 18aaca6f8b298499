package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	Buy  Kind = "buy"
	Sell Kind = "sell"
)

func (k Kind) Valid() bool { return k == Buy || k == Sell }

type Transaction struct {
	Timestamp time.Time       `json:"date"`
	Symbol    string          `json:"coin"`
	Kind      Kind            `json:"type"`
	Quantity  decimal.Decimal `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

// Position is derived from the transaction log; quantity and cost basis are
// signed running totals.
type Position struct {
	Quantity  decimal.Decimal `json:"qty"`
	CostBasis decimal.Decimal `json:"cost"`
}

// UserState is everything persisted for one identity. Transactions are kept
// most-recent-first.
type UserState struct {
	Positions    map[string]Position `json:"portfolio"`
	Transactions []Transaction       `json:"transactions"`
}

func EmptyState() UserState {
	return UserState{Positions: map[string]Position{}, Transactions: []Transaction{}}
}

// Clone returns a deep copy so mutations can be staged before they are saved.
func (s UserState) Clone() UserState {
	out := UserState{
		Positions:    make(map[string]Position, len(s.Positions)),
		Transactions: make([]Transaction, len(s.Transactions)),
	}
	for k, v := range s.Positions {
		out.Positions[k] = v
	}
	copy(out.Transactions, s.Transactions)
	return out
}
