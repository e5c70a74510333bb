package core

import "github.com/shopspring/decimal"

// MonthSpend is one month of a year report.
type MonthSpend struct {
	Month string
	Spend decimal.Decimal
}

// CategorySpend is one category of a year report.
type CategorySpend struct {
	Category string
	Spend    decimal.Decimal
}

// MerchantSpend is one merchant of a year report.
type MerchantSpend struct {
	Merchant string
	Spend    decimal.Decimal
}

// YearMetrics is the pre-aggregated input of the year-end report. It is
// built fresh from the store for every request.
type YearMetrics struct {
	Year         int
	Currency     string
	TotalSpend   decimal.Decimal
	TxnCount     int
	ByMonth      []MonthSpend
	ByCategory   []CategorySpend // spend descending
	TopMerchants []MerchantSpend // spend descending, at most TopMerchantsLimit
}

// TopMerchantsLimit bounds YearMetrics.TopMerchants.
const TopMerchantsLimit = 15
