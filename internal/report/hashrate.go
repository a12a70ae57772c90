// Package report renders reorg calculations for terminals and result files.
package report

import "fmt"

// FormatHashrate renders h (hashes per second) with a PH/TH/GH unit.
// Values below 1 GH/s are printed as whole H/s.
func FormatHashrate(h float64) string {
	switch {
	case h >= 1e15:
		return fmt.Sprintf("%.2f PH/s", h/1e15)
	case h >= 1e12:
		return fmt.Sprintf("%.2f TH/s", h/1e12)
	case h >= 1e9:
		return fmt.Sprintf("%.2f GH/s", h/1e9)
	default:
		return fmt.Sprintf("%.0f H/s", h)
	}
}

// FormatDays renders a day count without trailing zeros.
func FormatDays(d float64) string {
	return fmt.Sprintf("%g", d)
}
