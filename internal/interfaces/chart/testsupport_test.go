package chart

import (
	"fmt"

	domain "main/internal/domain/interfaces"
)

// drawOp is one recorded canvas call, flattened to a comparable string.
type drawOp string

// recordingCanvas captures draw calls for assertions.
type recordingCanvas struct {
	ops []drawOp
}

var _ domain.Canvas = (*recordingCanvas)(nil)

func (c *recordingCanvas) FillRect(x, y, w, h float64, color string) {
	c.ops = append(c.ops, drawOp(fmt.Sprintf("fillRect(%.1f,%.1f,%.1f,%.1f,%s)", x, y, w, h, color)))
}

func (c *recordingCanvas) StrokeRect(x, y, w, h, lineWidth float64, color string) {
	c.ops = append(c.ops, drawOp(fmt.Sprintf("strokeRect(%.1f,%.1f,%.1f,%.1f,%.1f,%s)", x, y, w, h, lineWidth, color)))
}

func (c *recordingCanvas) Line(x1, y1, x2, y2, lineWidth float64, color string) {
	c.ops = append(c.ops, drawOp(fmt.Sprintf("line(%.1f,%.1f,%.1f,%.1f,%.1f,%s)", x1, y1, x2, y2, lineWidth, color)))
}

func (c *recordingCanvas) FillText(text string, x, y, fontPx float64, color string) {
	c.ops = append(c.ops, drawOp(fmt.Sprintf("fillText(%s,%.1f,%.1f,%.1f,%s)", text, x, y, fontPx, color)))
}

func (c *recordingCanvas) count(prefix string) int {
	n := 0
	for _, op := range c.ops {
		if len(op) >= len(prefix) && string(op[:len(prefix)]) == prefix {
			n++
		}
	}
	return n
}

// linearMapper maps time and price linearly into pixel space: pxPerSec
// horizontal pixels per second, pxPerUnit vertical pixels per price unit
// (y grows downward from basePrice at y=0).
type linearMapper struct {
	pxPerSec  float64
	pxPerUnit float64
	basePrice float64

	visibleFrom int64
	visibleTo   int64
	hasRange    bool

	// Times at or past this value map to no coordinate, mimicking a range
	// that extends beyond the loaded series.
	unmappableFrom int64
}

var _ domain.CoordinateMapper = (*linearMapper)(nil)

func newLinearMapper() *linearMapper {
	return &linearMapper{pxPerSec: 1, pxPerUnit: 10, basePrice: 200, unmappableFrom: 1 << 62}
}

func (m *linearMapper) TimeToCoordinate(t int64) (float64, bool) {
	if t >= m.unmappableFrom {
		return 0, false
	}
	return float64(t) * m.pxPerSec, true
}

func (m *linearMapper) CoordinateToTime(x float64) (int64, bool) {
	return int64(x / m.pxPerSec), true
}

func (m *linearMapper) PriceToCoordinate(p float64) (float64, bool) {
	return (m.basePrice - p) * m.pxPerUnit, true
}

func (m *linearMapper) CoordinateToPrice(y float64) (float64, bool) {
	return m.basePrice - y/m.pxPerUnit, true
}

func (m *linearMapper) VisibleTimeRange() (int64, int64, bool) {
	return m.visibleFrom, m.visibleTo, m.hasRange
}
