package salon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Commission is total * ratePercent / 100, rounded half-up to cents.
func Commission(total, ratePercent decimal.Decimal) decimal.Decimal {
	if total.IsNegative() || !ratePercent.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(ratePercent).Div(hundred).Round(2)
}

// SumItems totals item prices.
func SumItems(items []BookingItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}
