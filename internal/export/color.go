package export

import (
	"fmt"
	"math"
	"strings"
)

// parseColor reads the CSS colors boards use: hsl(h, s%, l%), #rrggbb and
// #rgb. Anything else renders black.
func parseColor(css string) (r, g, b int) {
	css = strings.ReplaceAll(strings.TrimSpace(css), " ", "")
	var h, s, l float64
	if _, err := fmt.Sscanf(css, "hsl(%g,%g%%,%g%%)", &h, &s, &l); err == nil {
		return hslToRGB(h, s/100, l/100)
	}
	if strings.HasPrefix(css, "#") {
		if r, g, b, ok := hexToRGB(css[1:]); ok {
			return r, g, b
		}
	}
	return 0, 0, 0
}

func hexToRGB(hex string) (r, g, b int, ok bool) {
	digits := make([]int, len(hex))
	for i := range len(hex) {
		c := hex[i]
		switch {
		case '0' <= c && c <= '9':
			digits[i] = int(c - '0')
		case 'a' <= c && c <= 'f':
			digits[i] = int(c - 'a' + 10)
		case 'A' <= c && c <= 'F':
			digits[i] = int(c - 'A' + 10)
		default:
			return 0, 0, 0, false
		}
	}
	switch len(digits) {
	case 3:
		return digits[0] * 17, digits[1] * 17, digits[2] * 17, true
	case 6:
		return digits[0]*16 + digits[1], digits[2]*16 + digits[3], digits[4]*16 + digits[5], true
	}
	return 0, 0, 0, false
}

// hslToRGB converts hue in degrees and saturation and lightness in [0, 1].
func hslToRGB(h, s, l float64) (int, int, int) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	h /= 360

	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h*6, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 1.0/6:
		r, g, b = c, x, 0
	case h < 2.0/6:
		r, g, b = x, c, 0
	case h < 3.0/6:
		r, g, b = 0, c, x
	case h < 4.0/6:
		r, g, b = 0, x, c
	case h < 5.0/6:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return to(r), to(g), to(b)
}
