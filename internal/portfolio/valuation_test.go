package portfolio

import (
	"context"
	"io"
	"testing"
	"time"

	"kenfolio/internal/models"
	"kenfolio/internal/service"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPrices struct {
	mock.Mock
}

func (m *mockPrices) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), time.Time{}, args.Error(1)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestReport_ValuesHeldAssets(t *testing.T) {
	prices := &mockPrices{}
	prices.On("GetPrice", mock.Anything, "bitcoin").Return(decimal.NewFromInt(20000), nil).Once()
	prices.On("GetPrice", mock.Anything, "ethereum").Return(decimal.NewFromInt(1500), nil).Once()

	positions := Aggregate([]models.Transaction{
		tx(models.Buy, "bitcoin", "2", "10000"),
		tx(models.Buy, "bitcoin", "1", "12000"),
		tx(models.Buy, "ethereum", "2", "2000"),
	})

	rep := NewValuer(prices, 4, quietLogger()).Report(context.Background(), positions)
	require.Len(t, rep.Assets, 2)

	btc := rep.Assets[0]
	assert.Equal(t, "bitcoin", btc.Symbol)
	assert.Equal(t, "10666.67", btc.AverageCost.StringFixed(2))
	assert.True(t, btc.Invested.Equal(decimal.NewFromInt(32000)))
	assert.True(t, btc.Current.Equal(decimal.NewFromInt(60000)))
	assert.True(t, btc.PnL.Equal(decimal.NewFromInt(28000)))
	assert.True(t, btc.Profit())

	eth := rep.Assets[1]
	assert.True(t, eth.PnL.Equal(decimal.NewFromInt(-1000)))
	assert.False(t, eth.Profit())

	assert.True(t, rep.TotalInvested.Equal(decimal.NewFromInt(36000)))
	assert.True(t, rep.TotalCurrent.Equal(decimal.NewFromInt(63000)))
	assert.True(t, rep.TotalPnL.Equal(decimal.NewFromInt(27000)))
	prices.AssertExpectations(t)
}

func TestReport_ZeroQuantityExcluded(t *testing.T) {
	prices := &mockPrices{}
	prices.On("GetPrice", mock.Anything, "ethereum").Return(decimal.NewFromInt(100), nil).Once()

	positions := Aggregate([]models.Transaction{
		tx(models.Buy, "bitcoin", "1", "10000"),
		tx(models.Sell, "bitcoin", "1", "12000"),
		tx(models.Buy, "dogecoin", "1", "1"),
		tx(models.Sell, "dogecoin", "5", "1"),
		tx(models.Buy, "ethereum", "1", "100"),
	})
	require.Contains(t, positions, "bitcoin", "closed positions stay in the map")

	rep := NewValuer(prices, 4, quietLogger()).Report(context.Background(), positions)
	require.Len(t, rep.Assets, 1)
	assert.Equal(t, "ethereum", rep.Assets[0].Symbol)
	assert.True(t, rep.TotalInvested.Equal(decimal.NewFromInt(100)))
	assert.True(t, rep.TotalPnL.IsZero())
	prices.AssertNotCalled(t, "GetPrice", mock.Anything, "bitcoin")
	prices.AssertNotCalled(t, "GetPrice", mock.Anything, "dogecoin")
}

func TestReport_UnknownSymbolPricedAtZero(t *testing.T) {
	prices := &mockPrices{}
	prices.On("GetPrice", mock.Anything, "notacoin").Return(decimal.Zero, service.ErrPriceUnavailable).Once()

	positions := Aggregate([]models.Transaction{tx(models.Buy, "notacoin", "4", "25")})
	rep := NewValuer(prices, 1, quietLogger()).Report(context.Background(), positions)

	require.Len(t, rep.Assets, 1)
	a := rep.Assets[0]
	assert.False(t, a.PriceAvailable)
	assert.True(t, a.CurrentPrice.IsZero())
	assert.True(t, a.PnL.Equal(decimal.NewFromInt(-100)))
	assert.True(t, rep.TotalPnL.Equal(decimal.NewFromInt(-100)))
}

func TestReport_Empty(t *testing.T) {
	rep := NewValuer(&mockPrices{}, 4, quietLogger()).Report(context.Background(), map[string]models.Position{})
	assert.Empty(t, rep.Assets)
	assert.True(t, rep.TotalCurrent.IsZero())
}

func TestPriceMemo_OneLookupPerSymbol(t *testing.T) {
	prices := &mockPrices{}
	prices.On("GetPrice", mock.Anything, "bitcoin").Return(decimal.NewFromInt(5), nil).Once()

	memo := newPriceMemo(prices)
	for i := 0; i < 3; i++ {
		p, err := memo.get(context.Background(), "bitcoin")
		require.NoError(t, err)
		assert.True(t, p.Equal(decimal.NewFromInt(5)))
	}
	prices.AssertNumberOfCalls(t, "GetPrice", 1)
}

func TestReport_SymbolsSharingAnOracleIDLookedUpOnce(t *testing.T) {
	prices := &mockPrices{}
	prices.On("GetPrice", mock.Anything, "btc").Return(decimal.NewFromInt(10), nil).Once()

	positions := map[string]models.Position{
		"BTC":  {Quantity: decimal.NewFromInt(1), CostBasis: decimal.NewFromInt(5)},
		"btc":  {Quantity: decimal.NewFromInt(2), CostBasis: decimal.NewFromInt(8)},
		" btc": {Quantity: decimal.NewFromInt(3), CostBasis: decimal.NewFromInt(9)},
	}
	rep := NewValuer(prices, 4, quietLogger()).Report(context.Background(), positions)

	require.Len(t, rep.Assets, 3)
	for _, a := range rep.Assets {
		assert.True(t, a.PriceAvailable, a.Symbol)
		assert.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(10)), a.Symbol)
	}
	assert.True(t, rep.TotalCurrent.Equal(decimal.NewFromInt(60)))
	prices.AssertNumberOfCalls(t, "GetPrice", 1)
}
