// Package export writes cleaned transactions and rollups as CSV files.
// Money columns are written with exactly two decimals, rounded half-up.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"budget/internal/core"
)

const (
	TransactionsFile = "transactions_clean.csv"
	MonthlyFile      = "monthly_summary.csv"
	BreakdownFile    = "monthly_category_breakdown.csv"
)

// Files lists the paths written by WriteAll.
type Files struct {
	Transactions string
	Monthly      string
	Breakdown    string
}

// WriteAll writes the three CSV artifacts into dir, creating it if needed.
func WriteAll(dir string, txns []core.Transaction, monthly []core.MonthlyRollup, breakdown []core.CategoryBreakdownRow) (Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Files{}, fmt.Errorf("create output directory: %w", err)
	}
	files := Files{
		Transactions: filepath.Join(dir, TransactionsFile),
		Monthly:      filepath.Join(dir, MonthlyFile),
		Breakdown:    filepath.Join(dir, BreakdownFile),
	}

	if err := writeFile(files.Transactions, func(w io.Writer) error { return WriteTransactions(w, txns) }); err != nil {
		return Files{}, err
	}
	if err := writeFile(files.Monthly, func(w io.Writer) error { return WriteMonthly(w, monthly) }); err != nil {
		return Files{}, err
	}
	if err := writeFile(files.Breakdown, func(w io.Writer) error { return WriteBreakdown(w, breakdown) }); err != nil {
		return Files{}, err
	}
	return files, nil
}

// WriteTransactions writes cleaned rows. The card column is only present
// when at least one row carries a card label.
func WriteTransactions(w io.Writer, txns []core.Transaction) error {
	withCard := false
	for _, t := range txns {
		if t.Card != "" {
			withCard = true
			break
		}
	}

	header := []string{"transaction_date", "post_date", "month", "merchant", "category", "type", "amount", "is_credit", "memo"}
	if withCard {
		header = append(header, "card")
	}

	records := make([][]string, 0, len(txns))
	for _, t := range txns {
		rec := []string{
			t.TransactionDate.Format(core.DateLayout),
			formatDate(t),
			t.Month(),
			t.Merchant,
			t.Category,
			t.Type,
			core.FormatMoney(t.Amount),
			strconv.FormatBool(t.IsCredit()),
			t.Memo,
		}
		if withCard {
			rec = append(rec, t.Card)
		}
		records = append(records, rec)
	}
	return write(w, header, records)
}

func WriteMonthly(w io.Writer, rows []core.MonthlyRollup) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Month,
			core.FormatMoney(r.TotalSpend),
			strconv.Itoa(r.TxnCount),
			core.FormatMoney(r.AvgPerTransaction),
		})
	}
	return write(w, []string{"month", "total_spend", "txn_count", "avg_per_transaction"}, records)
}

func WriteBreakdown(w io.Writer, rows []core.CategoryBreakdownRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Month,
			r.Category,
			core.FormatMoney(r.Spend),
			strconv.Itoa(r.TxnCount),
			core.FormatMoney(r.AvgPerTransaction),
		})
	}
	return write(w, []string{"month", "category", "spend", "txn_count", "avg_per_transaction"}, records)
}

func write(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func formatDate(t core.Transaction) string {
	if t.PostDate.IsZero() {
		return ""
	}
	return t.PostDate.Format(core.DateLayout)
}
