package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// cleanNumber strips whitespace (including the non-breaking spaces B3 pads
// cells with) and a trailing percent sign.
func cleanNumber(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0':
			return -1
		}
		return r
	}, s)
	return strings.TrimSuffix(s, "%")
}

// ParseQuantity parses a pt-BR formatted integer such as "1.234.567" or
// "1.234.567,00". Dots are thousands separators; anything after the decimal
// comma is discarded.
func ParseQuantity(s string) (int64, error) {
	c := cleanNumber(s)
	if whole, _, ok := strings.Cut(c, ","); ok {
		c = whole
	}
	c = strings.ReplaceAll(c, ".", "")
	if c == "" || c == "-" {
		return 0, fmt.Errorf("empty quantity %q", s)
	}
	n, err := strconv.ParseInt(c, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}

// ParseWeight parses a participation percentage such as "5,123", "5,123%" or
// "1.005,5". When a decimal comma is present dots are treated as thousands
// separators; otherwise the value is parsed as written.
func ParseWeight(s string) (decimal.Decimal, error) {
	c := cleanNumber(s)
	if strings.Contains(c, ",") {
		c = strings.ReplaceAll(c, ".", "")
		c = strings.ReplaceAll(c, ",", ".")
	}
	if c == "" {
		return decimal.Zero, fmt.Errorf("empty weight %q", s)
	}
	d, err := decimal.NewFromString(c)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid weight %q", s)
	}
	return d, nil
}
