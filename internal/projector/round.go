package projector

import (
	"math"
	"strconv"
	"strings"
)

// FormatFixed renders v with exactly digits decimals, rounding half away
// from zero on the shortest decimal form of v.
func FormatFixed(v float64, digits int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', digits, 64)
	}

	neg := v < 0
	s := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	if len(frac) <= digits {
		frac += strings.Repeat("0", digits-len(frac))
		return sign(neg, intPart, frac)
	}

	roundUp := frac[digits] >= '5'
	kept := []byte(intPart + frac[:digits])
	if roundUp {
		kept = increment(kept)
	}
	n := len(kept) - digits
	return sign(neg, string(kept[:n]), string(kept[n:]))
}

// increment adds one to a decimal digit string, growing it on carry.
func increment(d []byte) []byte {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i] < '9' {
			d[i]++
			return d
		}
		d[i] = '0'
	}
	return append([]byte{'1'}, d...)
}

func sign(neg bool, intPart, frac string) string {
	out := intPart
	if frac != "" {
		out += "." + frac
	}
	if neg && strings.Trim(out, "0.") != "" {
		return "-" + out
	}
	return out
}
