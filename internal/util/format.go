package util

import (
	"fmt"
	"math"
	"time"
)

// FormatSize renders a byte count with binary units and up to three decimals.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	exp := int(math.Log(float64(size)) / math.Log(unit))
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}

	div := int64(math.Pow(unit, float64(exp)))
	value := size / div
	if size%div == 0 {
		return fmt.Sprintf("%d %s", value, units[exp])
	}

	decimal := (size % div * 1000) / div
	switch {
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, units[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, units[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, units[exp])
	}
}

// FormatAge renders how long ago t was, coarsely.
func FormatAge(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 0:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
