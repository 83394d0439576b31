package model

import "github.com/shopspring/decimal"

// DefaultCurrency is the settlement currency when none is configured.
const DefaultCurrency = "VND"

// AmountEpsilon is the tolerance used when comparing amounts reported by
// gateways against stored amounts.
var AmountEpsilon = decimal.New(1, -2)

// RoundMoney rounds to currency precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AmountsMatch reports whether a and b differ by no more than AmountEpsilon.
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountEpsilon)
}
