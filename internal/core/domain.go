package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// UncategorizedCategory is used when a statement row has no category.
	UncategorizedCategory = "Uncategorized"

	// OtherCategory is the synthetic category holding collapsed categories.
	OtherCategory = "Other"

	// UnknownMerchant keys rows whose description is blank, such as fees.
	UnknownMerchant = "UNKNOWN"

	MonthLayout = "2006-01"
	DateLayout  = "2006-01-02"
)

type (
	// Transaction is one cleaned statement row.
	Transaction struct {
		TransactionDate time.Time
		PostDate        time.Time
		Merchant        string // upper-cased, trimmed description
		Category        string
		Type            string
		Amount          decimal.Decimal // negative = spend, positive = credit/payment
		Memo            string
		Card            string // empty when no card label was supplied
	}

	// MonthlyRollup summarises one month of spending.
	MonthlyRollup struct {
		Month             string
		TotalSpend        decimal.Decimal
		TxnCount          int
		AvgPerTransaction decimal.Decimal
	}

	// CategoryBreakdownRow summarises one (month, category) bucket.
	CategoryBreakdownRow struct {
		Month             string
		Category          string
		Spend             decimal.Decimal
		TxnCount          int
		AvgPerTransaction decimal.Decimal
		RankInMonth       int // 0 when no ranking was requested
	}
)

var (
	ErrEmptyMerchant = errors.New("empty merchant")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// Month returns the transaction month as "YYYY-MM".
func (t Transaction) Month() string {
	return t.TransactionDate.Format(MonthLayout)
}

// Year returns the transaction year.
func (t Transaction) Year() int {
	return t.TransactionDate.Year()
}

// IsCredit reports whether the row is a payment, refund or other credit.
func (t Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// IsSpend reports whether the row counts as spending.
func (t Transaction) IsSpend() bool {
	return t.Amount.IsNegative()
}

func (t Transaction) Validate() error {
	if t.TransactionDate.IsZero() {
		return ErrZeroDate
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return ErrEmptyMerchant
	}
	return nil
}

// NormalizeMerchant turns a raw statement description into a merchant key.
// A blank description maps to UnknownMerchant.
func NormalizeMerchant(description string) string {
	m := strings.ToUpper(strings.TrimSpace(description))
	if m == "" {
		return UnknownMerchant
	}
	return m
}

// NormalizeCategory trims the category and applies the Uncategorized fallback.
func NormalizeCategory(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return UncategorizedCategory
	}
	return c
}
