package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money represents a monetary value stored in minor units (pesewas for GHS).
type Money = int64

// MinorPerMajor is the number of minor units in one major currency unit.
const MinorPerMajor = 100

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Total    Money
	Units    int
}

// Compute calculates cart totals for the provided items. Items with a
// non-positive quantity do not contribute.
func Compute(items []Item) Summary {
	var summary Summary
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		summary.Subtotal += Money(it.Qty) * it.UnitPrice
		summary.Units += it.Qty
	}
	summary.Total = summary.Subtotal
	return summary
}

// FromMajor converts a major-unit amount (e.g. 12.5 GHS) into minor units.
func FromMajor(v float64) Money {
	return Money(math.Round(v * MinorPerMajor))
}

// ToMajor converts minor units back to a major-unit float for wire formats that expect it.
func ToMajor(m Money) float64 {
	return float64(m) / MinorPerMajor
}

// MajorJSON renders m as a JSON number in major units without a trailing ".00".
func MajorJSON(m Money) json.Number {
	return json.Number(strconv.FormatFloat(ToMajor(m), 'f', -1, 64))
}

var printer = message.NewPrinter(language.English)

// Format renders an amount as "<CUR> 1,200" or "<CUR> 12.50" for fractional values.
func Format(currency string, m Money) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	major := m / MinorPerMajor
	minor := m % MinorPerMajor
	var amount string
	if minor == 0 {
		amount = printer.Sprintf("%d", major)
	} else {
		amount = printer.Sprintf("%d", major) + fmt.Sprintf(".%02d", minor)
	}
	if currency == "" {
		return sign + amount
	}
	return currency + " " + sign + amount
}
