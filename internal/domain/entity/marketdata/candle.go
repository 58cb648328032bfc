package marketdata

// OHLCV represents one time bucket of market data. Time is seconds since
// epoch, unique within a series and strictly increasing. The most recent
// bucket of a live series may be mutated in place as updates arrive; all
// earlier buckets are final.
type OHLCV struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Bullish reports whether the bucket closed at or above its open.
func (c OHLCV) Bullish() bool {
	return c.Close >= c.Open
}

// CandleUpdate is an incremental delta for the in-progress bucket of a live
// series, delivered by a provider subscription. The owner of the series
// merges it into the mutable last candle.
type CandleUpdate struct {
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	Time     int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Final    bool    `json:"final"`
}
