package footprint

import (
	"math"
	"testing"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candleAt(timeSec int64) marketdata.OHLCV {
	return marketdata.OHLCV{Time: timeSec, Open: 100, High: 110, Low: 90, Close: 105, Volume: 1}
}

func TestAggregateEmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil, nil, 1, 3))
	assert.Empty(t, Aggregate([]marketdata.OHLCV{candleAt(1)}, nil, 1, 3))
	assert.Empty(t, Aggregate(nil, []marketdata.Trade{{Time: 1000, Price: 100, Qty: 1}}, 1, 3))
	assert.Empty(t, AggregateHTF(nil, 60))
}

func TestAggregateEndToEndScenario(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1), candleAt(2)}
	trades := []marketdata.Trade{
		{Time: 1000, Price: 100, Qty: 2, IsBuyerMaker: false},
		{Time: 1500, Price: 100, Qty: 1, IsBuyerMaker: true},
		{Time: 2500, Price: 101, Qty: 4, IsBuyerMaker: false},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 2)

	require.Len(t, out[0].Levels, 1)
	lvl := out[0].Levels[0]
	assert.Equal(t, 100.0, lvl.Price)
	assert.Equal(t, 2.0, lvl.AskVol)
	assert.Equal(t, 1.0, lvl.BidVol)
	assert.Equal(t, 3.0, lvl.Total())
	assert.Equal(t, 1.0, lvl.Delta())
	assert.Equal(t, 3.0, out[0].TotalVolume)
	assert.Equal(t, 1.0, out[0].Delta)
	assert.Equal(t, 100.0, out[0].MaxVolLevel)

	require.Len(t, out[1].Levels, 1)
	lvl = out[1].Levels[0]
	assert.Equal(t, 101.0, lvl.Price)
	assert.Equal(t, 4.0, lvl.AskVol)
	assert.Equal(t, 0.0, lvl.BidVol)
}

func TestAggregateVolumeConservation(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(60), candleAt(120), candleAt(180)}
	trades := []marketdata.Trade{
		{Time: 10_000, Price: 99, Qty: 7},                        // before first window, must be dropped
		{Time: 61_000, Price: 100.01, Qty: 1.5},
		{Time: 70_000, Price: 100.02, Qty: 2.5, IsBuyerMaker: true},
		{Time: 125_000, Price: 100.02, Qty: 3},
		{Time: 179_999, Price: 100.05, Qty: 0.5, IsBuyerMaker: true},
		{Time: 181_000, Price: 100.10, Qty: 4},
		{Time: 239_999, Price: 100.10, Qty: 1},                   // inside last inferred window
		{Time: 240_000, Price: 100.10, Qty: 9},                   // past the last window, dropped
	}

	out := Aggregate(candles, trades, 0.01, 3)
	require.Len(t, out, 3)

	var sum float64
	for _, c := range out {
		for _, lvl := range c.Levels {
			sum += lvl.BidVol + lvl.AskVol
		}
		var candleSum float64
		for _, lvl := range c.Levels {
			candleSum += lvl.Total()
		}
		assert.InDelta(t, c.TotalVolume, candleSum, 1e-9)
	}
	assert.InDelta(t, 1.5+2.5+3+0.5+4+1, sum, 1e-9)
}

func TestAggregateWindowPartition(t *testing.T) {
	// A trade exactly on a boundary belongs to the later candle only.
	candles := []marketdata.OHLCV{candleAt(1), candleAt(2)}
	trades := []marketdata.Trade{{Time: 2000, Price: 100, Qty: 1}}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Levels)
	require.Len(t, out[1].Levels, 1)
}

func TestAggregateLastWindowInferredFromGap(t *testing.T) {
	// 5-minute spacing: the last candle window spans the previous gap.
	candles := []marketdata.OHLCV{candleAt(300), candleAt(600)}
	trades := []marketdata.Trade{
		{Time: 899_999, Price: 100, Qty: 2},
		{Time: 900_000, Price: 100, Qty: 5},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 2)
	require.Len(t, out[1].Levels, 1)
	assert.Equal(t, 2.0, out[1].Levels[0].AskVol)
}

func TestAggregatePOCLowestPriceWinsTie(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: 102, Qty: 3},
		{Time: 1200, Price: 100, Qty: 5},
		{Time: 1300, Price: 101, Qty: 5, IsBuyerMaker: true},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, out[0].MaxVolLevel)
}

func TestAggregatePOCMaxTotal(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: 100, Qty: 5},
		{Time: 1200, Price: 101, Qty: 9},
		{Time: 1300, Price: 102, Qty: 3},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 1)
	assert.Equal(t, 101.0, out[0].MaxVolLevel)
}

func TestAggregatePriceRounding(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: 100.124, Qty: 1},
		{Time: 1200, Price: 100.126, Qty: 1},
	}

	out := Aggregate(candles, trades, 0.05, 3)
	require.Len(t, out, 1)
	require.Len(t, out[0].Levels, 2)
	assert.InDelta(t, 100.10, out[0].Levels[0].Price, 1e-9)
	assert.InDelta(t, 100.15, out[0].Levels[1].Price, 1e-9)
}

func TestImbalanceDiagonalRule(t *testing.T) {
	run := func(bidBelow float64) marketdata.FootprintCandle {
		candles := []marketdata.OHLCV{candleAt(1)}
		trades := []marketdata.Trade{
			{Time: 1100, Price: 101, Qty: 30, IsBuyerMaker: false},
		}
		if bidBelow > 0 {
			trades = append(trades, marketdata.Trade{Time: 1200, Price: 100, Qty: bidBelow, IsBuyerMaker: true})
		}
		out := Aggregate(candles, trades, 1, 3)
		require.Len(t, out, 1)
		return out[0]
	}

	flagged := run(5) // 30 >= 5*3
	require.Len(t, flagged.Levels, 2)
	assert.Equal(t, marketdata.ImbalanceAsk, flagged.Levels[1].Imbalance)

	cleared := run(11) // 30 < 11*3
	require.Len(t, cleared.Levels, 2)
	assert.Equal(t, marketdata.ImbalanceNone, cleared.Levels[1].Imbalance)
}

func TestImbalanceZeroOppositeFlags(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: 100, Qty: 2, IsBuyerMaker: false},
		{Time: 1200, Price: 101, Qty: 2, IsBuyerMaker: false},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 1)
	require.Len(t, out[0].Levels, 2)
	// Ask at 101 faces zero bid one tick below, which flags regardless of
	// the ratio. Level 100 traded no bid volume, so it carries no flag even
	// though the ask above is non-empty.
	assert.Equal(t, marketdata.ImbalanceNone, out[0].Levels[0].Imbalance)
	assert.Equal(t, marketdata.ImbalanceAsk, out[0].Levels[1].Imbalance)
}

func TestImbalanceAskWinsDoubleTrigger(t *testing.T) {
	// One isolated level with both sides traded: ask faces zero bid below,
	// bid faces zero ask above. Single-level candles have no diagonals at
	// all, so use two levels with an empty diagonal on each side.
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: 100, Qty: 4, IsBuyerMaker: true},
		{Time: 1150, Price: 101, Qty: 4, IsBuyerMaker: false},
		{Time: 1200, Price: 101, Qty: 4, IsBuyerMaker: true},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 1)
	require.Len(t, out[0].Levels, 2)
	// Level 101: ask=4 vs bid below=4 (4 >= 12 false, not zero) -> no ask
	// flag; bid=4 with no level above -> edge, no bid flag either.
	assert.Equal(t, marketdata.ImbalanceNone, out[0].Levels[1].Imbalance)
	// Level 100: bid=4 vs ask above=4 -> no flag.
	assert.Equal(t, marketdata.ImbalanceNone, out[0].Levels[0].Imbalance)
}

func TestSanitizeTrades(t *testing.T) {
	trades := []marketdata.Trade{
		{Time: 1000, Price: 100, Qty: 1},
		{Time: 1100, Price: math.NaN(), Qty: 1},
		{Time: 1200, Price: 100, Qty: math.NaN()},
		{Time: 1300, Price: -5, Qty: 1},
		{Time: 1400, Price: 100, Qty: 0},
		{Time: 1500, Price: 101, Qty: 2, IsBuyerMaker: true},
	}

	clean, dropped := SanitizeTrades(trades)
	assert.Equal(t, 4, dropped)
	require.Len(t, clean, 2)
	assert.Equal(t, int64(1000), clean[0].Time)
	assert.Equal(t, int64(1500), clean[1].Time)

	same, none := SanitizeTrades(clean)
	assert.Zero(t, none)
	assert.Equal(t, clean, same)
}

func TestAggregateSkipsNaNTrades(t *testing.T) {
	candles := []marketdata.OHLCV{candleAt(1)}
	trades := []marketdata.Trade{
		{Time: 1100, Price: math.NaN(), Qty: 1},
		{Time: 1200, Price: 100, Qty: 2},
	}

	out := Aggregate(candles, trades, 1, 3)
	require.Len(t, out, 1)
	require.Len(t, out[0].Levels, 1)
	assert.Equal(t, 2.0, out[0].TotalVolume)
	assert.False(t, math.IsNaN(out[0].TotalVolume))
}
