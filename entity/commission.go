package entity

import "github.com/shopspring/decimal"

// commissionRate is the platform fee charged on top of the ticket price.
var commissionRate = decimal.New(5, -2)

// Commission returns the fee for price, rounded half away from zero to cents.
func Commission(price decimal.Decimal) decimal.Decimal {
	return price.Mul(commissionRate).Round(2)
}

// Total is price plus Commission(price), rounded to cents.
func Total(price decimal.Decimal) decimal.Decimal {
	return price.Add(Commission(price)).Round(2)
}
