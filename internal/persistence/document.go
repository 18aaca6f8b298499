package persistence

import (
	"fmt"
	"time"

	"kenfolio/internal/models"

	"github.com/shopspring/decimal"
)

// Document is the stored shape of one user's state:
//
//	{ "portfolio": { "<coin>": {"qty": n, "cost": n} },
//	  "transactions": [{"date": s, "coin": s, "type": "buy"|"sell", "qty": n, "price": n}] }
type Document struct {
	Portfolio    map[string]PositionDoc `json:"portfolio"`
	Transactions []TransactionDoc       `json:"transactions"`
}

type PositionDoc struct {
	Qty  Number `json:"qty"`
	Cost Number `json:"cost"`
}

type TransactionDoc struct {
	Date  string  `json:"date"`
	Coin  string  `json:"coin"`
	Type  string  `json:"type"`
	Qty   Number `json:"qty"`
	Price Number `json:"price"`
}

const dateLayout = time.RFC3339

// Number is a decimal stored as a bare JSON number with every digit kept.
type Number decimal.Decimal

func (n Number) Decimal() decimal.Decimal { return decimal.Decimal(n) }

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || b[0] == '"' || string(b) == "null" {
		return fmt.Errorf("expected a number, got %s", b)
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return err
	}
	*n = Number(d)
	return nil
}

func toDocument(st models.UserState) Document {
	doc := Document{
		Portfolio:    make(map[string]PositionDoc, len(st.Positions)),
		Transactions: make([]TransactionDoc, 0, len(st.Transactions)),
	}
	for sym, p := range st.Positions {
		doc.Portfolio[sym] = PositionDoc{Qty: Number(p.Quantity), Cost: Number(p.CostBasis)}
	}
	for _, t := range st.Transactions {
		doc.Transactions = append(doc.Transactions, TransactionDoc{
			Date:  t.Timestamp.UTC().Format(dateLayout),
			Coin:  t.Symbol,
			Type:  string(t.Kind),
			Qty:   Number(t.Quantity),
			Price: Number(t.Price),
		})
	}
	return doc
}

// toState validates the document while converting it.
func (d Document) toState() (models.UserState, error) {
	st := models.EmptyState()
	for sym, p := range d.Portfolio {
		if sym == "" {
			return models.UserState{}, fmt.Errorf("portfolio entry with empty coin")
		}
		st.Positions[sym] = models.Position{
			Quantity:  p.Qty.Decimal(),
			CostBasis: p.Cost.Decimal(),
		}
	}
	for i, t := range d.Transactions {
		ts, err := time.Parse(dateLayout, t.Date)
		if err != nil {
			return models.UserState{}, fmt.Errorf("transaction %d: date %q: %v", i, t.Date, err)
		}
		kind := models.Kind(t.Type)
		switch {
		case t.Coin == "":
			return models.UserState{}, fmt.Errorf("transaction %d: empty coin", i)
		case !kind.Valid():
			return models.UserState{}, fmt.Errorf("transaction %d: unknown type %q", i, t.Type)
		case !t.Qty.Decimal().IsPositive():
			return models.UserState{}, fmt.Errorf("transaction %d: quantity %s", i, t.Qty.Decimal())
		case t.Price.Decimal().IsNegative():
			return models.UserState{}, fmt.Errorf("transaction %d: price %s", i, t.Price.Decimal())
		}
		st.Transactions = append(st.Transactions, models.Transaction{
			Timestamp: ts.UTC(),
			Symbol:    t.Coin,
			Kind:      kind,
			Quantity:  t.Qty.Decimal(),
			Price:     t.Price.Decimal(),
		})
	}
	return st, nil
}
