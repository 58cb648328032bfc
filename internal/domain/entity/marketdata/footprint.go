package marketdata

// ImbalanceSide marks a diagonal volume imbalance on a footprint level.
type ImbalanceSide string

const (
	ImbalanceNone ImbalanceSide = ""
	ImbalanceBid  ImbalanceSide = "bid"
	ImbalanceAsk  ImbalanceSide = "ask"
)

// FootprintLevel aggregates traded volume at one rounded price level within
// one candle's time window. BidVol collects quantities of aggressive sells
// (buyer was maker), AskVol quantities of aggressive buys.
type FootprintLevel struct {
	Price     float64       `json:"price"`
	BidVol    float64       `json:"bid_vol"`
	AskVol    float64       `json:"ask_vol"`
	Imbalance ImbalanceSide `json:"imbalance,omitempty"`
}

// Delta is ask volume minus bid volume at this level.
func (l FootprintLevel) Delta() float64 {
	return l.AskVol - l.BidVol
}

// Total is the combined volume traded at this level.
func (l FootprintLevel) Total() float64 {
	return l.BidVol + l.AskVol
}

// FootprintCandle extends an OHLCV bucket with its per-price-level volume
// breakdown. Levels are ordered ascending by price and contain one entry per
// level that saw at least one trade. MaxVolLevel is the point of control:
// the price with the highest total volume (lowest price wins ties).
//
// A footprint candle is mutable only while it is the last candle of a live
// series; renderers receive read-only slices and never modify them.
type FootprintCandle struct {
	OHLCV
	Levels      []FootprintLevel `json:"levels"`
	Delta       float64          `json:"delta"`
	TotalVolume float64          `json:"total_volume"`
	MaxVolLevel float64          `json:"max_vol_level"`
}

// HTFCandle is a synthetic higher-timeframe candle merged from consecutive
// base candles. Time is the start of the merged window and EndTime the start
// of the next window (exclusive). Levels hold per-price volumes merged
// across all constituent candles.
type HTFCandle struct {
	Time          int64            `json:"time"`
	EndTime       int64            `json:"end_time"`
	Open          float64          `json:"open"`
	High          float64          `json:"high"`
	Low           float64          `json:"low"`
	Close         float64          `json:"close"`
	Levels        []FootprintLevel `json:"levels"`
	TotalVolume   float64          `json:"total_volume"`
	POCPrice      float64          `json:"poc_price"`
	ValueAreaHigh float64          `json:"value_area_high"`
	ValueAreaLow  float64          `json:"value_area_low"`
}

// Bullish reports whether the merged window closed at or above its open.
func (c HTFCandle) Bullish() bool {
	return c.Close >= c.Open
}
