package marketdata

import "math"

// Trade models a single executed transaction. Time is milliseconds since
// epoch; trades arrive from providers in non-decreasing time order.
// IsBuyerMaker true means an aggressive sell hit the bid, false means an
// aggressive buy lifted the ask.
type Trade struct {
	Time         int64   `json:"time"`
	Price        float64 `json:"price"`
	Qty          float64 `json:"qty"`
	IsBuyerMaker bool    `json:"is_buyer_maker"`
}

// Valid reports whether the trade carries well-formed numeric data. Upstream
// payloads occasionally produce NaN or non-positive values; those records
// must not enter aggregation.
func (t Trade) Valid() bool {
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return false
	}
	if math.IsNaN(t.Qty) || math.IsInf(t.Qty, 0) || t.Qty <= 0 {
		return false
	}
	return true
}
