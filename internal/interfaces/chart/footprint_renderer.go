package chart

import (
	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
)

const (
	defaultBarWidth = 10.0

	// Below this cell height a volume label is illegible.
	textHeightPadding = 4.0

	// Minimum bar width before the delta/total card overlaps neighbors.
	minSummaryBarWidth = 40.0

	summaryLineHeight = 14.0
	summaryOffset     = 8.0
)

// FootprintRenderer draws per-level bid/ask volume cells over a candle
// series. It is a pure consumer of the host's coordinate mapper and the
// target canvas: all state arrives via UpdateData/UpdateSettings and draw
// calls never mutate it.
type FootprintRenderer struct {
	mapper   domain.CoordinateMapper
	settings FootprintSettings

	candles []marketdata.FootprintCandle
}

func NewFootprintRenderer(mapper domain.CoordinateMapper, settings FootprintSettings) *FootprintRenderer {
	return &FootprintRenderer{mapper: mapper, settings: settings}
}

// UpdateData replaces the rendered series. Cell height in price space comes
// from the PriceStep setting, which must match the tick size the candles
// were bucketed with.
func (r *FootprintRenderer) UpdateData(candles []marketdata.FootprintCandle) {
	r.candles = candles
}

func (r *FootprintRenderer) UpdateSettings(settings FootprintSettings) {
	r.settings = settings
}

// Draw renders every visible candle. Candles outside the viewport plus one
// bar width are skipped; when more candles are visible than
// MaxCandlesRendered the overlay is skipped entirely, since footprint cells
// are unreadable at that zoom level anyway.
func (r *FootprintRenderer) Draw(canvas domain.Canvas) {
	if !r.settings.Enabled || len(r.candles) == 0 || r.settings.PriceStep <= 0 {
		return
	}

	visible := r.visibleCandles()
	if len(visible) == 0 {
		return
	}
	if max := r.settings.MaxCandlesRendered; max > 0 && len(visible) > max {
		return
	}

	barWidth := r.barWidth()
	for _, candle := range visible {
		r.drawCandle(canvas, candle, barWidth)
	}
}

func (r *FootprintRenderer) visibleCandles() []marketdata.FootprintCandle {
	from, to, ok := r.mapper.VisibleTimeRange()
	if !ok {
		return r.candles
	}

	// One bar of slack on each side so partially scrolled candles still draw.
	slack := r.barDuration()
	var visible []marketdata.FootprintCandle
	for _, c := range r.candles {
		if c.Time < from-slack || c.Time > to+slack {
			continue
		}
		visible = append(visible, c)
	}
	return visible
}

func (r *FootprintRenderer) barDuration() int64 {
	if len(r.candles) < 2 {
		return 60
	}
	return r.candles[1].Time - r.candles[0].Time
}

func (r *FootprintRenderer) barWidth() float64 {
	if len(r.candles) < 2 {
		return defaultBarWidth
	}
	x0, ok0 := r.mapper.TimeToCoordinate(r.candles[0].Time)
	x1, ok1 := r.mapper.TimeToCoordinate(r.candles[1].Time)
	if !ok0 || !ok1 || x1 <= x0 {
		return defaultBarWidth
	}
	return x1 - x0
}

func (r *FootprintRenderer) drawCandle(canvas domain.Canvas, candle marketdata.FootprintCandle, barWidth float64) {
	xCenter, ok := r.mapper.TimeToCoordinate(candle.Time)
	if !ok {
		return
	}
	cellWidth := barWidth / 2

	for _, level := range candle.Levels {
		yTop, okTop := r.mapper.PriceToCoordinate(level.Price + r.settings.PriceStep/2)
		yBottom, okBottom := r.mapper.PriceToCoordinate(level.Price - r.settings.PriceStep/2)
		if !okTop || !okBottom {
			continue
		}
		height := yBottom - yTop
		if height <= 0 {
			continue
		}

		bidColor, askColor := r.cellColors(candle, level)
		canvas.FillRect(xCenter-cellWidth, yTop, cellWidth, height, bidColor)
		canvas.FillRect(xCenter, yTop, cellWidth, height, askColor)

		if r.settings.ShowText && height >= r.settings.FontSize+textHeightPadding {
			yText := yTop + height/2
			canvas.FillText(FormatVolume(level.BidVol), xCenter-cellWidth/2, yText, r.settings.FontSize, r.settings.Colors.Text)
			canvas.FillText(FormatVolume(level.AskVol), xCenter+cellWidth/2, yText, r.settings.FontSize, r.settings.Colors.Text)
		}
	}

	if r.settings.ShowDeltaSummary && barWidth >= minSummaryBarWidth {
		r.drawSummary(canvas, candle, xCenter, barWidth)
	}
}

// cellColors resolves the bid/ask cell colors for one level. The POC cell
// overrides imbalance highlighting on both halves.
func (r *FootprintRenderer) cellColors(candle marketdata.FootprintCandle, level marketdata.FootprintLevel) (bid, ask string) {
	if level.Price == candle.MaxVolLevel {
		return r.settings.Colors.POC, r.settings.Colors.POC
	}
	bid = r.settings.Colors.Sell
	ask = r.settings.Colors.Buy
	switch level.Imbalance {
	case marketdata.ImbalanceBid:
		bid = r.settings.Colors.ImbalanceSell
	case marketdata.ImbalanceAsk:
		ask = r.settings.Colors.ImbalanceBuy
	}
	return bid, ask
}

func (r *FootprintRenderer) drawSummary(canvas domain.Canvas, candle marketdata.FootprintCandle, xCenter, barWidth float64) {
	yLow, ok := r.mapper.PriceToCoordinate(candle.Low)
	if !ok {
		return
	}

	top := yLow + summaryOffset
	canvas.FillRect(xCenter-barWidth/2, top, barWidth, 2*summaryLineHeight, r.settings.Colors.Background)

	deltaColor := r.settings.Colors.Buy
	if candle.Delta < 0 {
		deltaColor = r.settings.Colors.Sell
	}
	canvas.FillText(FormatDelta(candle.Delta), xCenter, top+summaryLineHeight/2+1, r.settings.FontSize, deltaColor)
	canvas.FillText(FormatVolume(candle.TotalVolume), xCenter, top+summaryLineHeight*3/2+1, r.settings.FontSize, r.settings.Colors.Delta)
}
