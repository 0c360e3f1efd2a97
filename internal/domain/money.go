package domain

import (
	"fmt"
	"math"
)

// Money is a fixed-point amount in minor currency units (cents).
type Money int64

const minorPerUnit = 100

// Cents returns an amount expressed in minor units.
func Cents(c int64) Money {
	return Money(c)
}

// Units returns an amount expressed in whole currency units.
func Units(u int64) Money {
	return Money(u * minorPerUnit)
}

// FromFloat converts a decimal amount (e.g. 4.50) to Money, rounding to the
// nearest cent. Used at the config boundary only.
func FromFloat(f float64) Money {
	return Money(math.Round(f * minorPerUnit))
}

// Float returns the amount as a decimal number of whole units.
func (m Money) Float() float64 {
	return float64(m) / minorPerUnit
}

// RoundUpWhole rounds up to the next whole currency unit.
func (m Money) RoundUpWhole() Money {
	q := m / minorPerUnit
	if m%minorPerUnit > 0 {
		q++
	}
	return q * minorPerUnit
}

// IsWhole reports whether the amount has no fractional part.
func (m Money) IsWhole() bool {
	return m%minorPerUnit == 0
}

// String formats the amount with two fractional digits.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/minorPerUnit, v%minorPerUnit)
}

// Format formats the amount prefixed with a currency symbol.
func (m Money) Format(symbol string) string {
	if m < 0 {
		return "-" + symbol + (-m).String()
	}
	return symbol + m.String()
}
