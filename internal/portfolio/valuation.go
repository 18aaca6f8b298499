package portfolio

import (
	"context"
	"sort"

	"kenfolio/internal/models"
	"kenfolio/internal/service"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type AssetValuation struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AverageCost    decimal.Decimal `json:"average_cost"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceAvailable bool            `json:"price_available"`
	Invested       decimal.Decimal `json:"invested"`
	Current        decimal.Decimal `json:"current"`
	PnL            decimal.Decimal `json:"pnl"`
}

func (a AssetValuation) Profit() bool { return !a.PnL.IsNegative() }

type Report struct {
	Assets        []AssetValuation `json:"assets"`
	TotalInvested decimal.Decimal  `json:"total_invested"`
	TotalCurrent  decimal.Decimal  `json:"total_current"`
	TotalPnL      decimal.Decimal  `json:"total_pnl"`
}

type Valuer struct {
	prices      service.PriceProvider
	log         *logrus.Logger
	concurrency int
}

func NewValuer(prices service.PriceProvider, concurrency int, log *logrus.Logger) *Valuer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Valuer{prices: prices, log: log, concurrency: concurrency}
}

// Report values every position with a positive quantity. Lookups fan out per
// asset; an unknown or failed price counts as 0 for that asset only.
func (v *Valuer) Report(ctx context.Context, positions map[string]models.Position) Report {
	symbols := make([]string, 0, len(positions))
	for sym, p := range positions {
		if p.Quantity.IsPositive() {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	memo := newPriceMemo(v.prices)
	rows := make([]AssetValuation, len(symbols))

	var g errgroup.Group
	g.SetLimit(v.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			pos := positions[sym]
			avg, _ := AverageCost(pos)
			price, err := memo.get(ctx, sym)
			if err != nil {
				v.log.Warnf("no price for symbol %s: %v", sym, err)
				price = decimal.Zero
			}
			// avg*qty is the cost basis itself; use it directly to stay exact.
			invested := pos.CostBasis
			current := price.Mul(pos.Quantity)
			rows[i] = AssetValuation{
				Symbol:         sym,
				Quantity:       pos.Quantity,
				AverageCost:    avg,
				CurrentPrice:   price,
				PriceAvailable: err == nil,
				Invested:       invested,
				Current:        current,
				PnL:            current.Sub(invested),
			}
			return nil
		})
	}
	// lookups degrade to a zero price, so no goroutine returns an error
	g.Wait()

	rep := Report{Assets: rows, TotalInvested: decimal.Zero, TotalCurrent: decimal.Zero, TotalPnL: decimal.Zero}
	for _, r := range rows {
		rep.TotalInvested = rep.TotalInvested.Add(r.Invested)
		rep.TotalCurrent = rep.TotalCurrent.Add(r.Current)
	}
	rep.TotalPnL = rep.TotalCurrent.Sub(rep.TotalInvested)
	return rep
}
