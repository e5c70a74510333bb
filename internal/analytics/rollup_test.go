package analytics

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

func txn(date string, cents int64, category string) core.Transaction {
	d, err := time.Parse(core.DateLayout, date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		TransactionDate: d,
		PostDate:        d,
		Merchant:        "M-" + category,
		Category:        category,
		Amount:          core.FromCents(cents),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMonthlyRollupExcludesCredits(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-05", -1000, "A"),
		txn("2024-01-09", -500, "B"),
		txn("2024-01-20", 2000, "A"),
	}
	got := MonthlyRollup(txns, false)
	if len(got) != 1 {
		t.Fatalf("expected one month, got %d", len(got))
	}
	r := got[0]
	if r.Month != "2024-01" || r.TxnCount != 2 {
		t.Fatalf("unexpected rollup %+v", r)
	}
	if core.FormatMoney(r.TotalSpend) != "15.00" {
		t.Fatalf("total_spend = %s", r.TotalSpend)
	}
	if !r.AvgPerTransaction.Equal(dec("7.5")) {
		t.Fatalf("avg = %s", r.AvgPerTransaction)
	}
}

func TestMonthlyRollupIncludeCreditsIsNetSpend(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-05", -1000, "A"),
		txn("2024-01-09", -500, "B"),
		txn("2024-01-20", 400, "A"),
	}
	got := MonthlyRollup(txns, true)
	if len(got) != 1 || got[0].TxnCount != 3 || !got[0].TotalSpend.Equal(dec("11")) {
		t.Fatalf("unexpected rollup %+v", got)
	}
}

func TestMonthlyRollupOrdersMonthsAscending(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-03-01", -100, "A"),
		txn("2023-12-31", -100, "A"),
		txn("2024-01-15", -300, "A"),
		txn("2024-01-16", -301, "A"),
	}
	got := MonthlyRollup(txns, false)
	var months []string
	for _, r := range got {
		months = append(months, r.Month)
	}
	want := []string{"2023-12", "2024-01", "2024-03"}
	if !reflect.DeepEqual(months, want) {
		t.Fatalf("months = %v, want %v", months, want)
	}
	if !got[1].AvgPerTransaction.Equal(dec("3.005")) {
		t.Fatalf("avg = %s", got[1].AvgPerTransaction)
	}
	if core.FormatMoney(got[1].AvgPerTransaction) != "3.01" {
		t.Fatalf("rounded avg = %s", core.FormatMoney(got[1].AvgPerTransaction))
	}
}

func TestMonthlyRollupMatchesAbsoluteSums(t *testing.T) {
	txns := sampleYear()
	want := map[string]decimal.Decimal{}
	counts := map[string]int{}
	for _, tx := range txns {
		if tx.Amount.IsNegative() {
			want[tx.Month()] = want[tx.Month()].Add(tx.Amount.Abs())
			counts[tx.Month()]++
		}
	}
	for _, r := range MonthlyRollup(txns, false) {
		if !r.TotalSpend.Equal(want[r.Month]) || r.TxnCount != counts[r.Month] {
			t.Fatalf("%s: got %s/%d want %s/%d", r.Month, r.TotalSpend, r.TxnCount, want[r.Month], counts[r.Month])
		}
		if !r.AvgPerTransaction.Equal(r.TotalSpend.Div(decimal.NewFromInt(int64(r.TxnCount)))) {
			t.Fatalf("%s: avg mismatch", r.Month)
		}
	}
}

func TestCategoryBreakdownOrdering(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-02-01", -500, "Food"),
		txn("2024-01-01", -100, "Gas"),
		txn("2024-01-02", -300, "Food"),
		txn("2024-01-03", -300, "Travel"),
		txn("2024-01-04", 900, "Food"),
	}
	got := CategoryBreakdown(txns, 0)
	var keys []string
	for _, r := range got {
		keys = append(keys, fmt.Sprintf("%s/%s/%s", r.Month, r.Category, r.Spend))
		if r.RankInMonth != 0 {
			t.Fatalf("unbounded breakdown should not rank: %+v", r)
		}
	}
	// Food and Travel tie in January; Food was seen first.
	want := []string{"2024-01/Food/3", "2024-01/Travel/3", "2024-01/Gas/1", "2024-02/Food/5"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("rows = %v, want %v", keys, want)
	}
}

func TestCategoryBreakdownTopNCollapsesIntoOther(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-01", -10000, "A"),
		txn("2024-01-02", -2000, "B"),
		txn("2024-01-03", -3000, "B"),
		txn("2024-01-04", -3000, "C"),
	}
	got := CategoryBreakdown(txns, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %+v", got)
	}
	if got[0].Category != "A" || !got[0].Spend.Equal(dec("100")) || got[0].RankInMonth != 1 {
		t.Fatalf("unexpected top row %+v", got[0])
	}
	other := got[1]
	if other.Category != core.OtherCategory || !other.Spend.Equal(dec("80")) || other.TxnCount != 3 {
		t.Fatalf("unexpected other row %+v", other)
	}
	if !other.AvgPerTransaction.Equal(dec("80").Div(dec("3"))) {
		t.Fatalf("other avg = %s", other.AvgPerTransaction)
	}
}

func TestCategoryBreakdownTopNTieBreakIsFirstSeen(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-01", -500, "Second"),
		txn("2024-01-02", -500, "First"),
		txn("2024-01-03", -100, "Third"),
	}
	got := CategoryBreakdown(txns, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %+v", got)
	}
	// Other (6) outranks the kept category (5) and sorts first.
	if got[0].Category != core.OtherCategory || !got[0].Spend.Equal(dec("6")) || got[0].TxnCount != 2 {
		t.Fatalf("unexpected other row %+v", got[0])
	}
	if got[1].Category != "Second" || got[1].RankInMonth != 1 {
		t.Fatalf("tie should keep first-seen category, got %+v", got[1])
	}
}

func TestCategoryBreakdownTopNMergesIntoRealOtherCategory(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-01", -10000, core.OtherCategory),
		txn("2024-01-02", -500, "Food"),
		txn("2024-01-03", -400, "Gas"),
		txn("2024-02-01", -100, "Food"),
		txn("2024-02-02", -200, "Gas"),
		txn("2024-02-03", -300, core.OtherCategory),
	}
	got := CategoryBreakdown(txns, 1)
	want := []string{
		"2024-01,Other,109.00,3,36.33",
		"2024-02,Other,6.00,3,2.00",
	}
	if !reflect.DeepEqual(renderBreakdown(got), want) {
		t.Fatalf("rows = %v, want %v", renderBreakdown(got), want)
	}
	if got[0].RankInMonth != 1 {
		t.Fatalf("kept Other should keep its rank: %+v", got[0])
	}
	for month, total := range MonthTotals(got) {
		if !total.Equal(MonthTotals(CategoryBreakdown(txns, 0))[month]) {
			t.Fatalf("%s: total %s changed after collapsing", month, total)
		}
	}
}

func TestCategoryBreakdownTopNNoCollapseWhenFewCategories(t *testing.T) {
	txns := []core.Transaction{
		txn("2024-01-01", -500, "A"),
		txn("2024-01-02", -400, "B"),
		txn("2024-02-02", -400, "B"),
	}
	for _, n := range []int{2, 3, 10} {
		got := CategoryBreakdown(txns, n)
		if len(got) != 3 {
			t.Fatalf("top_n=%d: expected 3 rows, got %+v", n, got)
		}
		for _, r := range got {
			if r.Category == core.OtherCategory {
				t.Fatalf("top_n=%d: unexpected Other row", n)
			}
		}
	}
}

func TestCategoryBreakdownTopNPreservesMonthTotals(t *testing.T) {
	txns := sampleYear()
	full := CategoryBreakdown(txns, 0)
	fullTotals := MonthTotals(full)

	monthly := MonthlyRollup(txns, false)
	for _, m := range monthly {
		if !fullTotals[m.Month].Equal(m.TotalSpend) {
			t.Fatalf("%s: breakdown %s != rollup %s", m.Month, fullTotals[m.Month], m.TotalSpend)
		}
	}

	for _, k := range []int{1, 2, 3} {
		collapsed := CategoryBreakdown(txns, k)
		perMonth := map[string]int{}
		for _, r := range collapsed {
			perMonth[r.Month]++
		}
		for month, n := range perMonth {
			if n > k+1 {
				t.Fatalf("top_n=%d: %s has %d rows", k, month, n)
			}
		}
		for month, total := range MonthTotals(collapsed) {
			if !total.Equal(fullTotals[month]) {
				t.Fatalf("top_n=%d: %s total %s != %s", k, month, total, fullTotals[month])
			}
		}
	}
}

func TestRollupsAreIdempotent(t *testing.T) {
	txns := sampleYear()
	if !reflect.DeepEqual(render(MonthlyRollup(txns, false)), render(MonthlyRollup(txns, false))) {
		t.Fatalf("monthly rollup differs between runs")
	}
	a := CategoryBreakdown(txns, 2)
	b := CategoryBreakdown(txns, 2)
	if !reflect.DeepEqual(renderBreakdown(a), renderBreakdown(b)) {
		t.Fatalf("breakdown differs between runs")
	}
}

func render(rows []core.MonthlyRollup) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("%s,%s,%d,%s", r.Month, core.FormatMoney(r.TotalSpend), r.TxnCount, core.FormatMoney(r.AvgPerTransaction))
	}
	return out
}

func renderBreakdown(rows []core.CategoryBreakdownRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("%s,%s,%s,%d,%s", r.Month, r.Category, core.FormatMoney(r.Spend), r.TxnCount, core.FormatMoney(r.AvgPerTransaction))
	}
	return out
}

func sampleYear() []core.Transaction {
	cats := []string{"Groceries", "Dining", "Travel", "Gas", "Shopping"}
	var out []core.Transaction
	for m := 1; m <= 12; m++ {
		for i, c := range cats {
			if (m+i)%4 == 0 {
				continue
			}
			cents := -int64((m*137+i*71)%9000 + 101)
			out = append(out, txn(fmt.Sprintf("2024-%02d-%02d", m, i+1), cents, c))
		}
		out = append(out, txn(fmt.Sprintf("2024-%02d-28", m), 50000, "Payment"))
	}
	return out
}
