package chart

import (
	"fmt"
	"math"
)

// FormatVolume renders a quantity as a compact label ("987.0", "1.234 K",
// "2.500 M"). Used for cell labels and summary cards where space is tight.
func FormatVolume(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.3f B", v/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.3f M", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.3f K", v/1_000)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

// FormatDelta keeps the sign visible so buyers/sellers dominance reads at a
// glance.
func FormatDelta(v float64) string {
	if v > 0 {
		return "+" + FormatVolume(v)
	}
	return FormatVolume(v)
}
