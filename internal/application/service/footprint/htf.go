package footprint

import (
	"sort"

	marketdata "main/internal/domain/entity/marketdata"
)

// valueAreaShare is the fraction of window volume enclosed by the value
// area band around the point of control.
const valueAreaShare = 0.70

// AggregateHTF merges base footprint candles into fixed higher-timeframe
// windows of targetMinutes. Windows are aligned to the epoch
// (floor(time / window) * window), so they are stable regardless of the data
// range; windows with no base candles are not emitted.
//
// The caller is responsible for invoking this only when targetMinutes is
// strictly coarser than the base candle duration.
func AggregateHTF(base []marketdata.FootprintCandle, targetMinutes int) []marketdata.HTFCandle {
	if len(base) == 0 || targetMinutes <= 0 {
		return nil
	}

	windowSec := int64(targetMinutes) * 60
	var out []marketdata.HTFCandle

	i := 0
	for i < len(base) {
		windowStart := (base[i].Time / windowSec) * windowSec
		j := i
		for j < len(base) && (base[j].Time/windowSec)*windowSec == windowStart {
			j++
		}
		out = append(out, mergeWindow(base[i:j], windowStart, windowStart+windowSec))
		i = j
	}

	return out
}

func mergeWindow(group []marketdata.FootprintCandle, start, end int64) marketdata.HTFCandle {
	htf := marketdata.HTFCandle{
		Time:    start,
		EndTime: end,
		Open:    group[0].Open,
		High:    group[0].High,
		Low:     group[0].Low,
		Close:   group[len(group)-1].Close,
	}

	merged := map[float64]*marketdata.FootprintLevel{}
	for _, c := range group {
		if c.High > htf.High {
			htf.High = c.High
		}
		if c.Low < htf.Low {
			htf.Low = c.Low
		}
		for _, lvl := range c.Levels {
			m, ok := merged[lvl.Price]
			if !ok {
				m = &marketdata.FootprintLevel{Price: lvl.Price}
				merged[lvl.Price] = m
			}
			m.BidVol += lvl.BidVol
			m.AskVol += lvl.AskVol
		}
	}

	htf.Levels = make([]marketdata.FootprintLevel, 0, len(merged))
	for _, m := range merged {
		htf.Levels = append(htf.Levels, *m)
	}
	sort.Slice(htf.Levels, func(a, b int) bool {
		return htf.Levels[a].Price < htf.Levels[b].Price
	})

	for _, lvl := range htf.Levels {
		htf.TotalVolume += lvl.Total()
	}
	htf.POCPrice = pocPrice(htf.Levels)
	htf.ValueAreaHigh, htf.ValueAreaLow = valueArea(htf.Levels, htf.TotalVolume)
	return htf
}

// valueArea expands from the point of control, greedily taking the heavier
// neighbor, until the band covers valueAreaShare of the window volume.
func valueArea(levels []marketdata.FootprintLevel, totalVolume float64) (high, low float64) {
	if len(levels) == 0 || totalVolume <= 0 {
		return 0, 0
	}

	poc := 0
	for idx, lvl := range levels {
		if lvl.Total() > levels[poc].Total() {
			poc = idx
		}
	}

	lo, hi := poc, poc
	covered := levels[poc].Total()
	target := totalVolume * valueAreaShare
	for covered < target {
		var belowVol, aboveVol float64
		if lo > 0 {
			belowVol = levels[lo-1].Total()
		}
		if hi < len(levels)-1 {
			aboveVol = levels[hi+1].Total()
		}
		if belowVol == 0 && aboveVol == 0 {
			break
		}
		if aboveVol >= belowVol {
			hi++
			covered += aboveVol
		} else {
			lo--
			covered += belowVol
		}
	}

	return levels[hi].Price, levels[lo].Price
}
