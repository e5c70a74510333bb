// Package charts renders spending rollups as interactive HTML bar charts.
// Decimal amounts are converted to float64 here and nowhere else.
package charts

import (
	"fmt"
	"io"
	"sort"

	"budget/internal/core"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/shopspring/decimal"
)

const stackName = "total"

// MonthlySpendChart is a bar chart of total spend per month.
func MonthlySpendChart(rows []core.MonthlyRollup) *echarts.Bar {
	bar := echarts.NewBar()
	bar.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{Title: "Monthly Spend"}),
		echarts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		echarts.WithYAxisOpts(opts.YAxis{Name: "Spend"}),
	)

	months := make([]string, 0, len(rows))
	data := make([]opts.BarData, 0, len(rows))
	for _, r := range rows {
		months = append(months, r.Month)
		data = append(data, opts.BarData{Value: toFloat(r.TotalSpend)})
	}
	bar.SetXAxis(months).AddSeries("Total spend", data)
	return bar
}

// Series is one category of the stacked breakdown, aligned with Months.
type Series struct {
	Category string
	Values   []decimal.Decimal
}

// Stack arranges breakdown rows for a stacked chart. Duplicate
// (month, category) rows are summed. Categories are ordered by total spend
// descending, first-seen on ties, so the largest category is the base of
// the stack.
func Stack(rows []core.CategoryBreakdownRow) (months []string, series []Series) {
	monthIdx := make(map[string]int)
	for _, r := range rows {
		if _, ok := monthIdx[r.Month]; !ok {
			monthIdx[r.Month] = len(months)
			months = append(months, r.Month)
		}
	}
	sort.Strings(months)
	for i, m := range months {
		monthIdx[m] = i
	}

	catIdx := make(map[string]int)
	var totals []decimal.Decimal
	for _, r := range rows {
		i, ok := catIdx[r.Category]
		if !ok {
			i = len(series)
			catIdx[r.Category] = i
			series = append(series, Series{Category: r.Category, Values: make([]decimal.Decimal, len(months))})
			totals = append(totals, decimal.Zero)
		}
		m := monthIdx[r.Month]
		series[i].Values[m] = series[i].Values[m].Add(r.Spend)
		totals[i] = totals[i].Add(r.Spend)
	}

	order := make([]int, len(series))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return totals[order[a]].GreaterThan(totals[order[b]])
	})
	sorted := make([]Series, len(series))
	for i, j := range order {
		sorted[i] = series[j]
	}
	return months, sorted
}

// CategoryBreakdownChart is a stacked bar chart of spend per category per
// month.
func CategoryBreakdownChart(rows []core.CategoryBreakdownRow) *echarts.Bar {
	bar := echarts.NewBar()
	bar.SetGlobalOptions(
		echarts.WithTitleOpts(opts.Title{Title: "Monthly Spend by Category"}),
		echarts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		echarts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Type: "scroll", Top: "bottom"}),
		echarts.WithYAxisOpts(opts.YAxis{Name: "Spend"}),
	)

	months, series := Stack(rows)
	bar.SetXAxis(months)
	for _, s := range series {
		data := make([]opts.BarData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.BarData{Value: toFloat(v)}
		}
		bar.AddSeries(s.Category, data, echarts.WithBarChartOpts(opts.BarChart{Stack: stackName}))
	}
	return bar
}

// RenderPage writes one self-contained HTML page with both charts.
func RenderPage(w io.Writer, monthly []core.MonthlyRollup, breakdown []core.CategoryBreakdownRow) error {
	page := components.NewPage()
	page.PageTitle = "Spending"
	page.AddCharts(
		MonthlySpendChart(monthly),
		CategoryBreakdownChart(breakdown),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart page: %w", err)
	}
	return nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
