package portfolio

import (
	"context"
	"strings"
	"time"

	"kenfolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store persists the whole state of one identity.
type Store interface {
	Save(ctx context.Context, userID string, st models.UserState) error
}

// Ledger owns the in-memory transaction log of one signed-in identity. Every
// mutation is staged on a copy, positions are recomputed, the copy is saved,
// and only then does it replace the live state. A failed save leaves the
// ledger exactly as it was so the caller can retry.
type Ledger struct {
	userID string
	state  models.UserState
	store  Store
	log    *logrus.Logger
	now    func() time.Time
}

func NewLedger(userID string, st models.UserState, store Store, log *logrus.Logger) *Ledger {
	st = st.Clone()
	derived := Aggregate(st.Transactions)
	if !SamePositions(derived, st.Positions) {
		log.Warnf("positions snapshot for %s disagrees with its log, recomputing", userID)
	}
	st.Positions = derived
	return &Ledger{userID: userID, state: st, store: store, log: log, now: time.Now}
}

func (l *Ledger) UserID() string { return l.userID }

func (l *Ledger) Transactions() []models.Transaction {
	out := make([]models.Transaction, len(l.state.Transactions))
	copy(out, l.state.Transactions)
	return out
}

func (l *Ledger) Positions() map[string]models.Position {
	return l.state.Clone().Positions
}

func (l *Ledger) State() models.UserState { return l.state.Clone() }

// Append records a new transaction at the front of the log.
func (l *Ledger) Append(ctx context.Context, symbol string, kind models.Kind, qty, price decimal.Decimal) (models.Transaction, error) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return models.Transaction{}, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !kind.Valid() {
		return models.Transaction{}, &ValidationError{Field: "type", Reason: `must be "buy" or "sell"`}
	}
	if err := validateAmounts(qty, price); err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		Timestamp: l.now().UTC().Truncate(time.Second),
		Symbol:    symbol,
		Kind:      kind,
		Quantity:  qty,
		Price:     price,
	}
	next := l.state.Clone()
	next.Transactions = append([]models.Transaction{tx}, next.Transactions...)
	if err := l.commit(ctx, next); err != nil {
		return models.Transaction{}, err
	}
	l.log.Infof("user %s: %s %s %s @ %s", l.userID, kind, qty, symbol, price)
	return tx, nil
}

// Update overwrites quantity and price of the transaction at index. Symbol,
// kind and timestamp are kept.
func (l *Ledger) Update(ctx context.Context, index int, qty, price decimal.Decimal) error {
	if index < 0 || index >= len(l.state.Transactions) {
		return indexError(index, len(l.state.Transactions))
	}
	if err := validateAmounts(qty, price); err != nil {
		return err
	}
	next := l.state.Clone()
	next.Transactions[index].Quantity = qty
	next.Transactions[index].Price = price
	return l.commit(ctx, next)
}

func (l *Ledger) Remove(ctx context.Context, index int) error {
	if index < 0 || index >= len(l.state.Transactions) {
		return indexError(index, len(l.state.Transactions))
	}
	next := l.state.Clone()
	next.Transactions = append(next.Transactions[:index], next.Transactions[index+1:]...)
	return l.commit(ctx, next)
}

// ResetAll wipes positions and transactions. It is destructive, so callers
// must pass confirmed=true.
func (l *Ledger) ResetAll(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := l.commit(ctx, models.EmptyState()); err != nil {
		return err
	}
	l.log.Infof("user %s: portfolio reset", l.userID)
	return nil
}

func (l *Ledger) commit(ctx context.Context, next models.UserState) error {
	next.Positions = Aggregate(next.Transactions)
	if err := l.store.Save(ctx, l.userID, next); err != nil {
		l.log.Errorf("save state for %s failed: %v", l.userID, err)
		return err
	}
	l.state = next
	return nil
}

func validateAmounts(qty, price decimal.Decimal) error {
	if !qty.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be greater than 0"}
	}
	if price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	return nil
}
