package chart

import (
	marketdata "main/internal/domain/entity/marketdata"
	domain "main/internal/domain/interfaces"
)

const (
	// Width estimate for the rightmost box when neither its end time nor a
	// following candle can be mapped to a coordinate.
	fallbackBoxWidth = 120.0

	pocLineWidth     = 1.5
	outlineLineWidth = 1.0
)

// HTFRenderer draws merged-timeframe volume-profile boxes behind the base
// candle series: an outline spanning the window's time and price range,
// horizontal per-level volume bars, the point-of-control line and an
// optional value-area band. Like FootprintRenderer it holds no hidden draw
// state.
type HTFRenderer struct {
	mapper   domain.CoordinateMapper
	settings HTFSettings

	candles []marketdata.HTFCandle
}

func NewHTFRenderer(mapper domain.CoordinateMapper, settings HTFSettings) *HTFRenderer {
	return &HTFRenderer{mapper: mapper, settings: settings}
}

func (r *HTFRenderer) UpdateData(candles []marketdata.HTFCandle) {
	r.candles = candles
}

func (r *HTFRenderer) UpdateSettings(settings HTFSettings) {
	r.settings = settings
}

func (r *HTFRenderer) Draw(canvas domain.Canvas) {
	if !r.settings.Enabled || len(r.candles) == 0 {
		return
	}
	for i, candle := range r.candles {
		r.drawBox(canvas, candle, i)
	}
}

func (r *HTFRenderer) drawBox(canvas domain.Canvas, candle marketdata.HTFCandle, index int) {
	xStart, ok := r.mapper.TimeToCoordinate(candle.Time)
	if !ok {
		return
	}
	xEnd, ok := r.boxEnd(candle, index, xStart)
	if !ok || xEnd <= xStart {
		return
	}

	yHigh, okHigh := r.mapper.PriceToCoordinate(candle.High)
	yLow, okLow := r.mapper.PriceToCoordinate(candle.Low)
	if !okHigh || !okLow || yLow <= yHigh {
		return
	}

	boxWidth := xEnd - xStart

	if r.settings.ShowValueArea && candle.ValueAreaHigh > candle.ValueAreaLow {
		if yVAH, ok1 := r.mapper.PriceToCoordinate(candle.ValueAreaHigh); ok1 {
			if yVAL, ok2 := r.mapper.PriceToCoordinate(candle.ValueAreaLow); ok2 && yVAL > yVAH {
				canvas.FillRect(xStart, yVAH, boxWidth, yVAL-yVAH, r.settings.Colors.ValueArea)
			}
		}
	}

	if r.settings.ShowProfile {
		r.drawProfile(canvas, candle, xStart, xEnd, boxWidth)
	}

	if r.settings.ShowOutline {
		color := r.settings.Colors.Bear
		if candle.Bullish() {
			color = r.settings.Colors.Bull
		}
		canvas.StrokeRect(xStart, yHigh, boxWidth, yLow-yHigh, outlineLineWidth, color)
	}

	if r.settings.ShowPOC {
		if yPOC, ok := r.mapper.PriceToCoordinate(candle.POCPrice); ok {
			canvas.Line(xStart, yPOC, xEnd, yPOC, pocLineWidth, r.settings.Colors.POC)
		}
	}
}

// boxEnd maps the window's exclusive end to a coordinate. When the end time
// is beyond the loaded series the next candle's start stands in; for the
// rightmost candle a fixed pixel estimate is used.
func (r *HTFRenderer) boxEnd(candle marketdata.HTFCandle, index int, xStart float64) (float64, bool) {
	if x, ok := r.mapper.TimeToCoordinate(candle.EndTime); ok {
		return x, true
	}
	if index+1 < len(r.candles) {
		if x, ok := r.mapper.TimeToCoordinate(r.candles[index+1].Time); ok {
			return x, true
		}
	}
	return xStart + fallbackBoxWidth, true
}

func (r *HTFRenderer) drawProfile(canvas domain.Canvas, candle marketdata.HTFCandle, xStart, xEnd, boxWidth float64) {
	maxTotal := 0.0
	for _, level := range candle.Levels {
		if t := level.Total(); t > maxTotal {
			maxTotal = t
		}
	}
	if maxTotal <= 0 {
		return
	}

	halfStep := r.levelStep(candle.Levels) / 2
	maxBar := boxWidth * r.settings.WidthPercentage / 100

	for _, level := range candle.Levels {
		yTop, okTop := r.mapper.PriceToCoordinate(level.Price + halfStep)
		yBottom, okBottom := r.mapper.PriceToCoordinate(level.Price - halfStep)
		if !okTop || !okBottom || yBottom <= yTop {
			continue
		}
		barLen := level.Total() / maxTotal * maxBar
		x := xStart
		if r.settings.Align == AlignRight {
			x = xEnd - barLen
		}
		canvas.FillRect(x, yTop, barLen, yBottom-yTop, r.settings.Colors.Profile)
	}
}

// levelStep infers the price bucket size from the smallest gap between
// adjacent levels; levels are sorted ascending by price.
func (r *HTFRenderer) levelStep(levels []marketdata.FootprintLevel) float64 {
	step := 0.0
	for i := 1; i < len(levels); i++ {
		gap := levels[i].Price - levels[i-1].Price
		if gap > 0 && (step == 0 || gap < step) {
			step = gap
		}
	}
	if step == 0 {
		return 1
	}
	return step
}
