package footprint

import (
	"math"
	"sort"

	marketdata "main/internal/domain/entity/marketdata"
)

// defaultWindowMs is the assumed candle duration for a single-candle series,
// where no previous gap exists to infer it from.
const defaultWindowMs int64 = 60_000

// Aggregate converts a time-ordered trade stream into per-candle footprint
// statistics. Both candles and trades must be sorted ascending by time;
// priceStep is the tick size used to bucket prices and imbalanceRatio the
// diagonal dominance factor (>= 1). Trades carrying NaN or non-positive
// numbers are skipped; callers that need visibility into dropped records use
// SanitizeTrades first.
//
// Each trade lands in exactly one candle window, so total aggregated volume
// equals the total quantity of in-span trades.
func Aggregate(candles []marketdata.OHLCV, trades []marketdata.Trade, priceStep, imbalanceRatio float64) []marketdata.FootprintCandle {
	if len(candles) == 0 || len(trades) == 0 || priceStep <= 0 {
		return nil
	}

	out := make([]marketdata.FootprintCandle, 0, len(candles))
	cursor := 0

	for i := range candles {
		windowStart := candles[i].Time * 1000
		windowEnd := windowStartOfNext(candles, i)

		// Trades before the first window fall through here untouched by the
		// >= windowStart check; trades past windowEnd stay for the next
		// candle.
		levels := map[int64]*marketdata.FootprintLevel{}
		for cursor < len(trades) && trades[cursor].Time < windowEnd {
			t := trades[cursor]
			cursor++
			if t.Time < windowStart || !t.Valid() {
				continue
			}
			step := int64(math.Round(t.Price / priceStep))
			lvl, ok := levels[step]
			if !ok {
				lvl = &marketdata.FootprintLevel{Price: float64(step) * priceStep}
				levels[step] = lvl
			}
			if t.IsBuyerMaker {
				lvl.BidVol += t.Qty
			} else {
				lvl.AskVol += t.Qty
			}
		}

		out = append(out, buildCandle(candles[i], levels, imbalanceRatio))
	}

	return out
}

// SanitizeTrades splits a trade slice into records fit for aggregation and a
// count of malformed ones (NaN/inf or non-positive price/qty). The input is
// returned as-is when nothing was dropped.
func SanitizeTrades(trades []marketdata.Trade) ([]marketdata.Trade, int) {
	dropped := 0
	for _, t := range trades {
		if !t.Valid() {
			dropped++
		}
	}
	if dropped == 0 {
		return trades, 0
	}
	clean := make([]marketdata.Trade, 0, len(trades)-dropped)
	for _, t := range trades {
		if t.Valid() {
			clean = append(clean, t)
		}
	}
	return clean, dropped
}

// windowStartOfNext returns the exclusive upper bound (ms) of candle i's
// window: the next candle's start, or for the last candle a duration
// inferred from the previous gap (falling back to one minute).
func windowStartOfNext(candles []marketdata.OHLCV, i int) int64 {
	if i+1 < len(candles) {
		return candles[i+1].Time * 1000
	}
	dur := defaultWindowMs
	if i > 0 {
		dur = (candles[i].Time - candles[i-1].Time) * 1000
	}
	return candles[i].Time*1000 + dur
}

func buildCandle(base marketdata.OHLCV, levels map[int64]*marketdata.FootprintLevel, imbalanceRatio float64) marketdata.FootprintCandle {
	fc := marketdata.FootprintCandle{OHLCV: base}
	if len(levels) == 0 {
		return fc
	}

	fc.Levels = make([]marketdata.FootprintLevel, 0, len(levels))
	for _, lvl := range levels {
		fc.Levels = append(fc.Levels, *lvl)
	}
	sort.Slice(fc.Levels, func(a, b int) bool {
		return fc.Levels[a].Price < fc.Levels[b].Price
	})

	flagImbalances(fc.Levels, imbalanceRatio)

	for _, lvl := range fc.Levels {
		fc.Delta += lvl.Delta()
		fc.TotalVolume += lvl.Total()
	}
	fc.MaxVolLevel = pocPrice(fc.Levels)
	return fc
}

// flagImbalances applies the diagonal comparison rule over ascending levels:
// the ask volume at a price is compared with the bid volume one tick below,
// and the bid volume with the ask volume one tick above. When both diagonals
// trigger for the same level the ask flag, assigned first, stands.
func flagImbalances(levels []marketdata.FootprintLevel, ratio float64) {
	for j := 1; j < len(levels); j++ {
		below := levels[j-1].BidVol
		if levels[j].AskVol > 0 && (below == 0 || levels[j].AskVol >= below*ratio) {
			levels[j].Imbalance = marketdata.ImbalanceAsk
		}
	}
	for j := 0; j < len(levels)-1; j++ {
		if levels[j].Imbalance != marketdata.ImbalanceNone {
			continue
		}
		above := levels[j+1].AskVol
		if levels[j].BidVol > 0 && (above == 0 || levels[j].BidVol >= above*ratio) {
			levels[j].Imbalance = marketdata.ImbalanceBid
		}
	}
}

// pocPrice picks the level with the highest total volume. Levels arrive
// sorted ascending, so keeping the first maximum makes the lowest price win
// ties deterministically.
func pocPrice(levels []marketdata.FootprintLevel) float64 {
	best := 0.0
	bestTotal := -1.0
	for _, lvl := range levels {
		if total := lvl.Total(); total > bestTotal {
			best = lvl.Price
			bestTotal = total
		}
	}
	return best
}
