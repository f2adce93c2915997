package core

import "fmt"

// Money is an amount in minor currency units (cents).
type Money int64

// Format renders m as "12.34 EUR".
func (m Money) Format(currency string) string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
	if currency != "" {
		s += " " + currency
	}
	return s
}

// ApplyBasisPoints returns m * bp / 10000 rounded half away from zero.
func (m Money) ApplyBasisPoints(bp int64) Money {
	n := int64(m) * bp
	if n >= 0 {
		return Money((n + 5000) / 10000)
	}
	return Money((n - 5000) / 10000)
}
