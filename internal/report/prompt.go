// Package report turns pre-aggregated year metrics into a year-end spending
// report written by a text-generation model.
package report

import (
	"fmt"
	"strings"

	"budget/internal/core"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// promptCategoryLimit is how many categories the prompt lists.
const promptCategoryLimit = 12

// BuildPrompt renders the model instructions for one year. The output is a
// pure function of metrics: only the supplied numbers are embedded.
func BuildPrompt(m core.YearMetrics) string {
	var b strings.Builder

	b.WriteString("You are a personal finance analyst.\n\n")
	fmt.Fprintf(&b, "Write a concise but insightful YEAR-END SPENDING REPORT for %d.\n", m.Year)
	b.WriteString("Rules:\n")
	b.WriteString("- Use ONLY the numbers provided. Do not invent numbers.\n")
	b.WriteString("- Make budgeting advice specific and measurable.\n")
	b.WriteString("- Call out the top 5 categories and their shares where possible.\n")
	b.WriteString("- Mention notable monthly spikes.\n")
	b.WriteString("- Output in the format below exactly.\n\n")

	b.WriteString("DATA:\n")
	fmt.Fprintf(&b, "Total spend: %s\n", FormatDollars(m.TotalSpend))
	fmt.Fprintf(&b, "Transaction count: %d\n\n", m.TxnCount)

	b.WriteString("Monthly spend (dollars):\n")
	for _, ms := range m.ByMonth {
		fmt.Fprintf(&b, "- %s: %s\n", ms.Month, FormatDollars(ms.Spend))
	}
	if len(m.ByMonth) == 0 {
		b.WriteString("- none\n")
	}

	b.WriteString("\nSpend by category (dollars):\n")
	cats := m.ByCategory
	if len(cats) > promptCategoryLimit {
		cats = cats[:promptCategoryLimit]
	}
	for _, c := range cats {
		fmt.Fprintf(&b, "- %s: %s\n", c.Category, FormatDollars(c.Spend))
	}
	if len(cats) == 0 {
		b.WriteString("- none\n")
	}

	b.WriteString("\nTop merchants (dollars):\n")
	for _, ms := range m.TopMerchants {
		fmt.Fprintf(&b, "- %s: %s\n", ms.Merchant, FormatDollars(ms.Spend))
	}
	if len(m.TopMerchants) == 0 {
		b.WriteString("- none\n")
	}

	b.WriteString("\nOUTPUT FORMAT:\n")
	b.WriteString("1) Executive summary (3-5 bullets)\n")
	b.WriteString("2) Where the money went (top categories + short interpretation)\n")
	b.WriteString("3) Month-by-month story (spikes, trend, seasonality)\n")
	b.WriteString("4) Merchant insights (top merchants and what they imply)\n")
	b.WriteString("5) Budgeting strategies (5 actions, each with a $ target or rule)\n")
	b.WriteString("6) Next-year experiment plan (3 experiments to try for 30 days)\n")

	return b.String()
}

// FormatDollars renders an amount as "$1,234.56", rounding half-up.
func FormatDollars(d decimal.Decimal) string {
	d = core.RoundHalfUp(d)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.IntPart()
	cents := d.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(whole), cents)
}
