package safefetch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParamsLabel renders a parameter count in the conventional model size
// notation, e.g. "7.6B" or "125M", keeping at least two significant digits.
func ParamsLabel(count int64) string {
	var scaled float64
	var suffix string
	switch {
	case count > 1e12:
		scaled = float64(count) * 1e-12
		suffix = "T"
	case count > 1e9:
		scaled = float64(count) * 1e-9
		suffix = "B"
	case count > 1e6:
		scaled = float64(count) * 1e-6
		suffix = "M"
	default:
		scaled = float64(count) * 1e-3
		suffix = "K"
	}
	digits := len(strings.TrimLeft(strconv.FormatInt(int64(math.Round(scaled)), 10), "0"))
	precision := 2 - digits
	if precision < 0 {
		precision = 0
	}
	return fmt.Sprintf("%.*f%s", precision, scaled, suffix)
}
