package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"budget/internal/core"
)

const defaultCurrency = "USD"

// LoadYearMetrics aggregates one calendar year straight from the
// transactions table. Spend only counts rows with amount_cents < 0, while
// TxnCount counts every row of the year, credits included.
func (r *SQLiteRepository) LoadYearMetrics(ctx context.Context, year int) (core.YearMetrics, error) {
	y := strconv.Itoa(year)
	metrics := core.YearMetrics{Year: year, Currency: defaultCurrency}

	var (
		spendCents sql.NullInt64
		count      int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END),
			COUNT(*)
		FROM transactions
		WHERE substr(transaction_date, 1, 4) = ?`, y).Scan(&spendCents, &count)
	if err != nil {
		return core.YearMetrics{}, fmt.Errorf("query year total: %w", err)
	}
	metrics.TotalSpend = core.CentsToDollars(spendCents.Int64)
	metrics.TxnCount = count

	err = r.queryCents(ctx, `
		SELECT
			substr(transaction_date, 1, 7) AS month,
			SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END)
		FROM transactions
		WHERE substr(transaction_date, 1, 4) = ?
		GROUP BY month
		ORDER BY month`, y, func(key string, cents int64) {
		metrics.ByMonth = append(metrics.ByMonth, core.MonthSpend{Month: key, Spend: core.CentsToDollars(cents)})
	})
	if err != nil {
		return core.YearMetrics{}, fmt.Errorf("query spend by month: %w", err)
	}

	err = r.queryCents(ctx, `
		SELECT
			COALESCE(category_final, category_chase, 'Uncategorized') AS category,
			SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END) AS spend_cents
		FROM transactions
		WHERE substr(transaction_date, 1, 4) = ?
		GROUP BY category
		ORDER BY spend_cents DESC, MIN(id)`, y, func(key string, cents int64) {
		metrics.ByCategory = append(metrics.ByCategory, core.CategorySpend{Category: key, Spend: core.CentsToDollars(cents)})
	})
	if err != nil {
		return core.YearMetrics{}, fmt.Errorf("query spend by category: %w", err)
	}

	err = r.queryCents(ctx, fmt.Sprintf(`
		SELECT
			m.name AS merchant,
			SUM(CASE WHEN t.amount_cents < 0 THEN -t.amount_cents ELSE 0 END) AS spend_cents
		FROM transactions t
		JOIN merchants m ON t.merchant_id = m.id
		WHERE substr(t.transaction_date, 1, 4) = ?
		GROUP BY m.name
		ORDER BY spend_cents DESC, MIN(t.id)
		LIMIT %d`, core.TopMerchantsLimit), y, func(key string, cents int64) {
		metrics.TopMerchants = append(metrics.TopMerchants, core.MerchantSpend{Merchant: key, Spend: core.CentsToDollars(cents)})
	})
	if err != nil {
		return core.YearMetrics{}, fmt.Errorf("query top merchants: %w", err)
	}

	return metrics, nil
}

// queryCents runs a (key, cents) query and feeds every row to fn.
func (r *SQLiteRepository) queryCents(ctx context.Context, query, year string, fn func(key string, cents int64)) error {
	rows, err := r.db.QueryContext(ctx, query, year)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			cents int64
		)
		if err := rows.Scan(&key, &cents); err != nil {
			return err
		}
		fn(key, cents)
	}
	return rows.Err()
}
