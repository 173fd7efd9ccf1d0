package export

import (
	"math"
	"strconv"
	"strings"
)

// FormatWithCommas renders value with thousands separators and exactly the
// given number of decimal places. Financial columns (margin, PnL) always
// show a fixed fraction.
func FormatWithCommas(value float64, decimals int) string {
	return groupThousands(strconv.FormatFloat(value, 'f', decimals, 64))
}

// FormatTrimmed renders value with thousands separators, showing no
// fraction for integral values and at most maxDecimals places otherwise,
// with trailing zeros removed. Price columns use this so "30000" stays
// "30,000" while "0.00012345" keeps its precision.
func FormatTrimmed(value float64, maxDecimals int) string {
	if value == math.Trunc(value) {
		return groupThousands(strconv.FormatFloat(value, 'f', 0, 64))
	}
	s := strconv.FormatFloat(value, 'f', maxDecimals, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return groupThousands(s)
}

// groupThousands inserts comma separators into the integer part of an
// already-formatted decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart = s[:dot]
		fracPart = s[dot:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(intPart[i : i+3])
	}
	return sign + sb.String() + fracPart
}
