// Package analytics computes monthly and category spending rollups.
//
// All sums are exact decimals. Groups are kept in first-seen order and
// every sort is stable, so the same input always produces the same output.
package analytics

import (
	"sort"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

type bucket struct {
	month    string
	category string
	total    decimal.Decimal
	count    int
}

// MonthlyRollup groups transactions by month.
//
// By default only spending rows (amount < 0) count and TotalSpend is the sum
// of their absolute values. With includeCredits every row counts and
// TotalSpend is the net spend, the negated sum of all amounts.
func MonthlyRollup(txns []core.Transaction, includeCredits bool) []core.MonthlyRollup {
	var order []*bucket
	byMonth := make(map[string]*bucket)

	for _, tx := range txns {
		if !includeCredits && !tx.IsSpend() {
			continue
		}
		m := tx.Month()
		b, ok := byMonth[m]
		if !ok {
			b = &bucket{month: m}
			byMonth[m] = b
			order = append(order, b)
		}
		b.total = b.total.Sub(tx.Amount)
		b.count++
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].month < order[j].month })

	out := make([]core.MonthlyRollup, 0, len(order))
	for _, b := range order {
		out = append(out, core.MonthlyRollup{
			Month:             b.month,
			TotalSpend:        b.total,
			TxnCount:          b.count,
			AvgPerTransaction: core.Average(b.total, b.count),
		})
	}
	return out
}

// CategoryBreakdown groups spending rows by (month, category), ordered by
// month ascending then spend descending. When topN > 0 categories ranked
// below topN inside a month are collapsed into a single "Other" row.
func CategoryBreakdown(txns []core.Transaction, topN int) []core.CategoryBreakdownRow {
	type key struct{ month, category string }
	var order []*bucket
	groups := make(map[key]*bucket)

	for _, tx := range txns {
		if !tx.IsSpend() {
			continue
		}
		k := key{tx.Month(), tx.Category}
		b, ok := groups[k]
		if !ok {
			b = &bucket{month: k.month, category: k.category}
			groups[k] = b
			order = append(order, b)
		}
		b.total = b.total.Sub(tx.Amount)
		b.count++
	}

	rows := make([]core.CategoryBreakdownRow, 0, len(order))
	for _, b := range order {
		rows = append(rows, core.CategoryBreakdownRow{
			Month:             b.month,
			Category:          b.category,
			Spend:             b.total,
			TxnCount:          b.count,
			AvgPerTransaction: core.Average(b.total, b.count),
		})
	}
	SortBreakdown(rows)

	if topN <= 0 {
		return rows
	}
	return CollapseTopN(rows, topN)
}

// SortBreakdown orders rows by month ascending, then spend descending.
// Ties keep their current relative order.
func SortBreakdown(rows []core.CategoryBreakdownRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		return rows[i].Spend.GreaterThan(rows[j].Spend)
	})
}

// CollapseTopN ranks rows inside each month and merges every row ranked
// below topN into one "Other" row for that month. Rows must already be
// ordered by SortBreakdown; ties are ranked by position. When a category
// named "Other" is itself kept, the tail is merged into it, so a month never
// carries two Other rows. The Other average is recomputed from its summed
// spend and count.
func CollapseTopN(rows []core.CategoryBreakdownRow, topN int) []core.CategoryBreakdownRow {
	if topN <= 0 {
		return rows
	}

	out := make([]core.CategoryBreakdownRow, 0, len(rows))
	var (
		month   string
		rank    int
		keptIdx = -1 // index in out of a kept "Other" row for this month
		tail    *core.CategoryBreakdownRow
	)
	flush := func() {
		if tail == nil {
			return
		}
		if keptIdx >= 0 {
			kept := &out[keptIdx]
			kept.Spend = kept.Spend.Add(tail.Spend)
			kept.TxnCount += tail.TxnCount
			kept.AvgPerTransaction = core.Average(kept.Spend, kept.TxnCount)
		} else {
			tail.AvgPerTransaction = core.Average(tail.Spend, tail.TxnCount)
			out = append(out, *tail)
		}
		tail = nil
	}

	for _, row := range rows {
		if row.Month != month {
			flush()
			month = row.Month
			rank = 0
			keptIdx = -1
		}
		rank++
		if rank <= topN {
			row.RankInMonth = rank
			if row.Category == core.OtherCategory {
				keptIdx = len(out)
			}
			out = append(out, row)
			continue
		}
		if tail == nil {
			tail = &core.CategoryBreakdownRow{Month: row.Month, Category: core.OtherCategory}
		}
		tail.Spend = tail.Spend.Add(row.Spend)
		tail.TxnCount += row.TxnCount
	}
	flush()

	// Other can outrank a kept category, so restore the spend ordering.
	SortBreakdown(out)
	return out
}

// MonthTotals sums breakdown spend per month.
func MonthTotals(rows []core.CategoryBreakdownRow) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, r := range rows {
		totals[r.Month] = totals[r.Month].Add(r.Spend)
	}
	return totals
}
