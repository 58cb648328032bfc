package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
	"main/internal/infrastructure/providers"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL     = "https://api.binance.com"
	defaultStreamURL   = "wss://stream.binance.com:9443/ws"
	defaultHTTPTimeout = 10 * time.Second

	defaultPageLimit = 1000
	defaultMaxTrades = 50_000
	defaultMaxPages  = 60
	defaultRPM       = 1200
)

// Config configures the Binance market data provider. BaseURL may point at
// a same-origin proxy in front of the exchange; the safety caps bound the
// worst-case request volume of a trade-history walk and are tuning
// parameters, not guarantees of completeness.
type Config struct {
	BaseURL   string
	StreamURL string

	PageLimit int
	MaxTrades int
	MaxPages  int

	RequestsPerMinute int

	HTTPClient *http.Client
}

// Client is the crypto-exchange variant of the market data provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *providers.Limiter
	backoff    providers.Backoff
	logger     *logrus.Entry

	stream *stream
}

var _ domain.MarketDataProvider = (*Client)(nil)

// NewClient creates a Binance provider with rate limiting and retry.
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = defaultStreamURL
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = defaultMaxTrades
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRPM
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    providers.NewLimiter("binance", cfg.RequestsPerMinute),
		backoff:    providers.DefaultBackoff(),
		logger:     logger.WithField("component", "binance_provider"),
	}
}

func (c *Client) Name() string {
	return "binance"
}

// GetKlines fetches up to limit OHLCV buckets for the generic interval
// token within [from, to].
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]marketdata.OHLCV, error) {
	native, err := nativeInterval(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > c.cfg.PageLimit {
		limit = c.cfg.PageLimit
	}

	params := url.Values{
		"symbol":   []string{normalizeSymbol(symbol)},
		"interval": []string{native},
		"limit":    []string{strconv.Itoa(limit)},
	}
	if !from.IsZero() {
		params.Set("startTime", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		params.Set("endTime", strconv.FormatInt(to.UnixMilli(), 10))
	}

	data, err := c.get(ctx, "/api/v3/klines", params)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]marketdata.OHLCV, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, marketdata.OHLCV{
			Time:   toInt64(row[0]) / 1000,
			Open:   parseFloat(row[1]),
			High:   parseFloat(row[2]),
			Low:    parseFloat(row[3]),
			Close:  parseFloat(row[4]),
			Volume: parseFloat(row[5]),
		})
	}
	return candles, nil
}

// GetTrades walks the aggregated trade history forward from `from`, paging
// with the last trade's timestamp+1, until `to`, end of data, or a safety
// cap. Cap hits are completeness warnings, not errors.
func (c *Client) GetTrades(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.Trade, error) {
	var trades []marketdata.Trade
	start := from.UnixMilli()
	end := to.UnixMilli()

	for page := 0; ; page++ {
		if page >= c.cfg.MaxPages {
			c.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"pages":  page,
				"trades": len(trades),
			}).Warn("trade pagination stopped at page cap; range may be incomplete")
			break
		}

		params := url.Values{
			"symbol":    []string{normalizeSymbol(symbol)},
			"startTime": []string{strconv.FormatInt(start, 10)},
			"endTime":   []string{strconv.FormatInt(end, 10)},
			"limit":     []string{strconv.Itoa(c.cfg.PageLimit)},
		}

		data, err := c.get(ctx, "/api/v3/aggTrades", params)
		if err != nil {
			return trades, err
		}

		var raw []struct {
			Price        string `json:"p"`
			Qty          string `json:"q"`
			Time         int64  `json:"T"`
			IsBuyerMaker bool   `json:"m"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return trades, fmt.Errorf("decode trades: %w", err)
		}
		if len(raw) == 0 {
			break
		}

		for _, t := range raw {
			trades = append(trades, marketdata.Trade{
				Time:         t.Time,
				Price:        parseFloat(t.Price),
				Qty:          parseFloat(t.Qty),
				IsBuyerMaker: t.IsBuyerMaker,
			})
		}

		if len(trades) >= c.cfg.MaxTrades {
			c.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"trades": len(trades),
			}).Warn("trade pagination stopped at trade cap; range may be incomplete")
			break
		}
		if len(raw) < c.cfg.PageLimit {
			break
		}
		start = raw[len(raw)-1].Time + 1
		if start > end {
			break
		}
	}

	return trades, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var payload []byte
	err := c.backoff.Do(ctx, func() error {
		reqURL := c.cfg.BaseURL + path
		if query := params.Encode(); query != "" {
			reqURL += "?" + query
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", providers.ErrTransient, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", providers.ErrTransient, err)
		}
		if resp.StatusCode >= 400 {
			return parseAPIError(resp.StatusCode, body)
		}
		payload = body
		return nil
	})
	return payload, err
}

func parseAPIError(status int, payload []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Code != 0 {
		switch apiErr.Code {
		case -1003:
			return fmt.Errorf("%w: %s", providers.ErrRateLimited, apiErr.Msg)
		case -2014, -2015:
			return fmt.Errorf("%w: %s", providers.ErrPlanRestricted, apiErr.Msg)
		}
		return fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
	}
	if status == http.StatusTooManyRequests || status == http.StatusTeapot {
		return fmt.Errorf("%w: http %d", providers.ErrRateLimited, status)
	}
	if status >= 500 {
		return fmt.Errorf("%w: http %d", providers.ErrTransient, status)
	}
	return fmt.Errorf("binance http %d: %s", status, string(payload))
}

// parseFloat accepts the string-encoded decimals Binance uses as well as
// bare JSON numbers; unparsable input becomes zero and is filtered later by
// trade sanitation.
func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		d, err := decimal.NewFromString(val)
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	case float64:
		return val
	default:
		return 0
	}
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case json.Number:
		i, _ := val.Int64()
		return i
	default:
		num, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return num
	}
}

func normalizeSymbol(symbol string) string {
	out := make([]byte, 0, len(symbol))
	for i := 0; i < len(symbol); i++ {
		ch := symbol[i]
		if ch == '/' || ch == '-' {
			continue
		}
		if ch >= 'a' && ch <= 'z' {
			ch -= 32
		}
		out = append(out, ch)
	}
	return string(out)
}

// nativeInterval maps generic interval tokens to Binance kline intervals.
func nativeInterval(token string) (string, error) {
	switch token {
	case "1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "12h", "1d", "1w", "1M":
		return token, nil
	case "D":
		return "1d", nil
	case "W":
		return "1w", nil
	case "M":
		return "1M", nil
	}
	if _, err := providers.IntervalDuration(token); err != nil {
		return "", err
	}
	return token, nil
}
