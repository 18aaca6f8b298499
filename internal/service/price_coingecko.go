package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrPriceUnavailable is returned when the oracle has no USD quote for a symbol.
var ErrPriceUnavailable = errors.New("price unavailable")

type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
}

// CoinGeckoPriceService asks the CoinGecko simple/price endpoint for one coin
// at a time. Nothing is cached and failed lookups are not retried.
type CoinGeckoPriceService struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

func NewCoinGeckoPriceService(baseURL string, timeout time.Duration, log *logrus.Logger) *CoinGeckoPriceService {
	return &CoinGeckoPriceService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

type simplePriceResponse map[string]struct {
	USD *float64 `json:"usd"`
}

func (p *CoinGeckoPriceService) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	id := strings.ToLower(strings.TrimSpace(symbol))
	if id == "" {
		return decimal.Zero, time.Time{}, ErrPriceUnavailable
	}
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", "usd")
	endpoint := p.baseURL + "/simple/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s: status %d", ErrPriceUnavailable, id, resp.StatusCode)
	}

	var body simplePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s: decode: %v", ErrPriceUnavailable, id, err)
	}
	entry, ok := body[id]
	if !ok || entry.USD == nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s", ErrPriceUnavailable, id)
	}
	p.log.Debugf("price %s = %v usd", id, *entry.USD)
	return decimal.NewFromFloat(*entry.USD), time.Now().UTC(), nil
}
