package domain

import "github.com/shopspring/decimal"

// TierCount is the fixed number of pricing options on every budget.
const TierCount = 3

// PricingOption is one margin scenario applied to the material base cost.
// Quantity is informational: it is stored and echoed but never priced.
type PricingOption struct {
	Quantity         decimal.Decimal `json:"quantity"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
	MarginAmount     decimal.Decimal `json:"margin_amount"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	ClientPrice      decimal.Decimal `json:"client_price"`
}
