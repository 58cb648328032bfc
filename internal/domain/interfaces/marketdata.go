package interfaces

import (
	"context"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

// UnsubscribeFunc tears down a live subscription. It is safe to call more
// than once; every call after the first is a no-op.
type UnsubscribeFunc func()

// SubscribeParams identifies the live candle stream to open.
type SubscribeParams struct {
	Symbol   string
	Interval string
}

// MarketDataProvider fetches historical candles and trades and maintains a
// live candle subscription against one upstream data source. Implementations
// exist per exchange/vendor.
//
// A provider instance carries at most one live subscription; opening a new
// one tears down the previous stream before the new one starts.
type MarketDataProvider interface {
	// Name identifies the upstream source (e.g. "binance").
	Name() string

	// GetKlines returns up to limit OHLCV buckets for the generic interval
	// token (e.g. "1m", "1h", "D") within [from, to]. A zero from/to means
	// the upstream default range.
	GetKlines(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]marketdata.OHLCV, error)

	// GetTrades pages the upstream trade history forward from `from` until
	// `to`, the end of data, or a configured safety cap is reached. The
	// result is sorted by time ascending and is not guaranteed complete for
	// very large ranges.
	GetTrades(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.Trade, error)

	// Subscribe opens the live candle stream and delivers incremental
	// updates to onUpdate until the returned function is called or ctx is
	// cancelled. onUpdate must be cheap; it runs on every tick.
	Subscribe(ctx context.Context, params SubscribeParams, onUpdate func(marketdata.CandleUpdate)) (UnsubscribeFunc, error)
}

// FootprintRepository persists raw trades and aggregated footprint candles.
type FootprintRepository interface {
	AddTrades(ctx context.Context, symbol string, trades []marketdata.Trade) error
	GetTradesBetween(ctx context.Context, symbol string, from, to time.Time) ([]marketdata.Trade, error)

	AddFootprintCandles(ctx context.Context, symbol, interval string, candles []marketdata.FootprintCandle) error
	GetFootprintCandlesBetween(ctx context.Context, symbol, interval string, from, to time.Time) ([]marketdata.FootprintCandle, error)
	GetLastFootprintCandles(ctx context.Context, symbol, interval string, limit int) ([]marketdata.FootprintCandle, error)

	Close()
}
