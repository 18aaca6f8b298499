package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *CoinGeckoPriceService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewCoinGeckoPriceService(srv.URL+"/", 2*time.Second, log)
}

func TestGetPrice_Known(t *testing.T) {
	var gotPath, gotIDs, gotVS string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIDs = r.URL.Query().Get("ids")
		gotVS = r.URL.Query().Get("vs_currencies")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bitcoin":{"usd":64123.5}}`)
	})

	price, ts, err := svc.GetPrice(context.Background(), "Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "64123.5", price.String())
	assert.False(t, ts.IsZero())
	assert.Equal(t, "/simple/price", gotPath)
	assert.Equal(t, "bitcoin", gotIDs)
	assert.Equal(t, "usd", gotVS)
}

func TestGetPrice_Unavailable(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"unknown symbol": func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{}`) },
		"no usd quote":   func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"notacoin":{}}`) },
		"server error":   func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		"garbage body":   func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `<html>`) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, h)
			price, _, err := svc.GetPrice(context.Background(), "notacoin")
			assert.ErrorIs(t, err, ErrPriceUnavailable)
			assert.True(t, price.IsZero())
		})
	}
}

func TestGetPrice_EmptySymbol(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, _, err := svc.GetPrice(context.Background(), " ")
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}
