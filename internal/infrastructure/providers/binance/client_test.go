package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/infrastructure/providers"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	return NewClient(cfg, testLogger())
}

func TestGetKlines(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))

		rows := [][]interface{}{
			{int64(1_700_000_000_000), "100.5", "110.0", "99.0", "105.25", "1234.567"},
			{int64(1_700_086_400_000), "105.25", "108.0", "101.0", "102.0", "900.0"},
		}
		_ = json.NewEncoder(w).Encode(rows)
	}, Config{})

	candles, err := client.GetKlines(context.Background(), "btc/usdt", "D", time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(1_700_000_000), candles[0].Time)
	assert.Equal(t, 100.5, candles[0].Open)
	assert.Equal(t, 105.25, candles[0].Close)
	assert.Equal(t, 1234.567, candles[0].Volume)
}

type aggTrade struct {
	Price        string `json:"p"`
	Qty          string `json:"q"`
	Time         int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func TestGetTradesPagination(t *testing.T) {
	var starts []int64
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		starts = append(starts, start)

		var page []aggTrade
		if len(starts) == 1 {
			// Full page forces a follow-up request.
			for i := int64(0); i < 3; i++ {
				page = append(page, aggTrade{Price: "100", Qty: "1", Time: start + i})
			}
		} else {
			page = []aggTrade{{Price: "101", Qty: "2", Time: start}}
		}
		_ = json.NewEncoder(w).Encode(page)
	}, Config{PageLimit: 3})

	trades, err := client.GetTrades(context.Background(), "BTCUSDT",
		time.UnixMilli(1000), time.UnixMilli(9000))
	require.NoError(t, err)
	require.Len(t, trades, 4)

	// Second page resumes one millisecond after the last seen trade.
	require.Equal(t, []int64{1000, 1003}, starts)
	assert.Equal(t, 101.0, trades[3].Price)
}

func TestGetTradesPageCap(t *testing.T) {
	var requests int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		page := []aggTrade{
			{Price: "100", Qty: "1", Time: start},
			{Price: "100", Qty: "1", Time: start + 1},
		}
		_ = json.NewEncoder(w).Encode(page)
	}, Config{PageLimit: 2, MaxPages: 3})

	trades, err := client.GetTrades(context.Background(), "BTCUSDT",
		time.UnixMilli(0), time.UnixMilli(1_000_000))
	require.NoError(t, err)

	assert.Equal(t, 3, requests)
	assert.Len(t, trades, 6)
}

func TestGetTradesTradeCap(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		page := []aggTrade{
			{Price: "100", Qty: "1", Time: start},
			{Price: "100", Qty: "1", Time: start + 1},
		}
		_ = json.NewEncoder(w).Encode(page)
	}, Config{PageLimit: 2, MaxPages: 100, MaxTrades: 4})

	trades, err := client.GetTrades(context.Background(), "BTCUSDT",
		time.UnixMilli(0), time.UnixMilli(1_000_000))
	require.NoError(t, err)
	assert.Len(t, trades, 4)
}

func TestGetTradesStopsAtRangeEnd(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		page := []aggTrade{
			{Price: "100", Qty: "1", Time: 4999},
			{Price: "100", Qty: "1", Time: 5000},
		}
		_ = json.NewEncoder(w).Encode(page)
	}, Config{PageLimit: 2})

	trades, err := client.GetTrades(context.Background(), "BTCUSDT",
		time.UnixMilli(0), time.UnixMilli(5000))
	require.NoError(t, err)
	// Next cursor (5001) would be past the range end, so no second page.
	assert.Len(t, trades, 2)
}

func TestAPIErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"rate limit code", http.StatusBadRequest, `{"code":-1003,"msg":"Too many requests"}`, providers.ErrRateLimited},
		{"permission code", http.StatusUnauthorized, `{"code":-2014,"msg":"API-key format invalid"}`, providers.ErrPlanRestricted},
		{"http 429", http.StatusTooManyRequests, `{}`, providers.ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := parseAPIError(tc.status, []byte(tc.body))
			assert.ErrorIs(t, err, tc.target)
		})
	}
}

func TestGetRetriesTransientErrors(t *testing.T) {
	var requests int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}, Config{})

	_, err := client.GetKlines(context.Background(), "BTCUSDT", "1m", time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
}

func TestNativeInterval(t *testing.T) {
	for token, want := range map[string]string{
		"1m": "1m", "4h": "4h", "D": "1d", "W": "1w", "M": "1M",
	} {
		got, err := nativeInterval(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := nativeInterval("7x")
	assert.Error(t, err)
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", normalizeSymbol("btc/usdt"))
	assert.Equal(t, "ETHUSDT", normalizeSymbol("ETH-USDT"))
}
