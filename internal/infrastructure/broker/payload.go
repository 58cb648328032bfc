package broker

import marketdata "main/internal/domain/entity/marketdata"

// TradeBatch is the wire payload for raw trades on the trades exchange.
type TradeBatch struct {
	Symbol string             `json:"symbol"`
	Trades []marketdata.Trade `json:"trades"`
}

// FootprintSnapshot is the wire payload for one aggregated candle on the
// footprints exchange. Live candles are re-published with the same
// symbol/interval/time as they grow; consumers upsert.
type FootprintSnapshot struct {
	Symbol   string                     `json:"symbol"`
	Interval string                     `json:"interval"`
	Candle   marketdata.FootprintCandle `json:"candle"`
}
