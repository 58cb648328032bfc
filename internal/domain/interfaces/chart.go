package interfaces

// CoordinateMapper is the narrow view of the host charting surface the
// renderers are allowed to use. All pixel math goes through these mappings;
// renderers never derive coordinates on their own. The boolean result is
// false when the value cannot be mapped in the current viewport (e.g. a time
// beyond loaded data), in which case the caller skips that element.
type CoordinateMapper interface {
	TimeToCoordinate(timeSec int64) (float64, bool)
	CoordinateToTime(x float64) (int64, bool)
	PriceToCoordinate(price float64) (float64, bool)
	CoordinateToPrice(y float64) (float64, bool)

	// VisibleTimeRange returns the inclusive time bounds of the viewport in
	// epoch seconds. ok is false when no range is available (empty chart).
	VisibleTimeRange() (from, to int64, ok bool)
}

// Canvas is the pixel surface the renderers draw onto. Colors are CSS-style
// strings so the host can pass theme values straight through. FillText draws
// the string centered on (x, y).
type Canvas interface {
	FillRect(x, y, w, h float64, color string)
	StrokeRect(x, y, w, h float64, lineWidth float64, color string)
	Line(x1, y1, x2, y2 float64, lineWidth float64, color string)
	FillText(text string, x, y float64, fontPx float64, color string)
}
