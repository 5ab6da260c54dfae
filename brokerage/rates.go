package brokerage

import "github.com/shopspring/decimal"

// =============================================================================
// COMMISSION RATES - Tiered by sale price
// =============================================================================

// RateTier applies Rate to prices strictly below Below.
// A tier with a zero Below is the open-ended top tier.
type RateTier struct {
	Below decimal.Decimal
	Rate  decimal.Decimal
}

// RateSchedule is an ordered list of tiers; the first match wins.
type RateSchedule []RateTier

// DefaultRateSchedule is the brokerage's commission table.
//
//	< 100,000              10%
//	[100,000, 200,000)     7.5%
//	[200,000, 500,000)     6%
//	[500,000, 1,000,000)   5%
//	>= 1,000,000           4%
var DefaultRateSchedule = RateSchedule{
	{Below: decimal.NewFromInt(100_000), Rate: decimal.RequireFromString("0.10")},
	{Below: decimal.NewFromInt(200_000), Rate: decimal.RequireFromString("0.075")},
	{Below: decimal.NewFromInt(500_000), Rate: decimal.RequireFromString("0.06")},
	{Below: decimal.NewFromInt(1_000_000), Rate: decimal.RequireFromString("0.05")},
	{Rate: decimal.RequireFromString("0.04")},
}

// Rate returns the rate for price. Negative prices land in the lowest tier.
func (s RateSchedule) Rate(price decimal.Decimal) decimal.Decimal {
	for _, tier := range s {
		if tier.Below.IsZero() || price.LessThan(tier.Below) {
			return tier.Rate
		}
	}
	if len(s) == 0 {
		return decimal.Zero
	}
	return s[len(s)-1].Rate
}

// Amount returns price × Rate(price).
func (s RateSchedule) Amount(price decimal.Decimal) decimal.Decimal {
	return price.Mul(s.Rate(price))
}

// CommissionRate returns the default schedule's rate for price.
func CommissionRate(price decimal.Decimal) decimal.Decimal {
	return DefaultRateSchedule.Rate(price)
}

// CommissionAmount returns the default schedule's commission for price.
func CommissionAmount(price decimal.Decimal) decimal.Decimal {
	return DefaultRateSchedule.Amount(price)
}
