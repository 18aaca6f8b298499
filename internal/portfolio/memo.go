package portfolio

import (
	"context"
	"strings"
	"sync"

	"kenfolio/internal/service"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type quote struct {
	price decimal.Decimal
	err   error
}

// priceMemo lives for one report only. Symbols are keyed by the id the oracle
// resolves them to, so "BTC" and "btc" share one oracle call.
type priceMemo struct {
	src    service.PriceProvider
	group  singleflight.Group
	mu     sync.Mutex
	quotes map[string]quote
}

func newPriceMemo(src service.PriceProvider) *priceMemo {
	return &priceMemo{src: src, quotes: map[string]quote{}}
}

func oracleID(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}

func (m *priceMemo) get(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = oracleID(symbol)
	m.mu.Lock()
	q, ok := m.quotes[symbol]
	m.mu.Unlock()
	if ok {
		return q.price, q.err
	}
	v, err, _ := m.group.Do(symbol, func() (interface{}, error) {
		m.mu.Lock()
		q, ok := m.quotes[symbol]
		m.mu.Unlock()
		if ok {
			return q.price, q.err
		}
		price, _, err := m.src.GetPrice(ctx, symbol)
		m.mu.Lock()
		m.quotes[symbol] = quote{price: price, err: err}
		m.mu.Unlock()
		return price, err
	})
	price, _ := v.(decimal.Decimal)
	return price, err
}
