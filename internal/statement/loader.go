// Package statement parses credit-card statement exports into cleaned
// transactions.
package statement

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"budget/internal/core"
)

// Column names of the statement header. Matching is case-sensitive.
const (
	ColTransactionDate = "Transaction Date"
	ColPostDate        = "Post Date"
	ColDescription     = "Description"
	ColCategory        = "Category"
	ColType            = "Type"
	ColAmount          = "Amount"
	ColMemo            = "Memo"
)

// ExpectedColumns lists the columns every statement must carry.
var ExpectedColumns = []string{
	ColTransactionDate,
	ColPostDate,
	ColDescription,
	ColCategory,
	ColType,
	ColAmount,
	ColMemo,
}

var dateLayouts = []string{"01/02/2006", "1/2/2006", core.DateLayout}

// Options tune how rows are cleaned.
type Options struct {
	// Card is attached to every row when non-empty.
	Card string
}

// Result is a fully parsed statement.
type Result struct {
	Transactions []core.Transaction
	SHA256       string // hex digest of the raw file bytes
}

// Load reads and parses the statement at path.
func Load(path string, opts Options) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	txns, err := Parse(bytes.NewReader(raw), opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	return &Result{
		Transactions: txns,
		SHA256:       hex.EncodeToString(sum[:]),
	}, nil
}

// Parse reads a delimited statement. A missing column yields a
// *core.SchemaError; any malformed row aborts the whole parse.
func Parse(r io.Reader, opts Options) ([]core.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.NewSchemaError(ExpectedColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var out []core.Transaction
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)
		tx, err := parseRecord(record, idx, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func indexColumns(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	var missing []string
	for _, col := range ExpectedColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewSchemaError(missing)
	}
	return idx, nil
}

func parseRecord(record []string, idx map[string]int, opts Options) (core.Transaction, error) {
	field := func(col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	txDate, err := parseDate(field(ColTransactionDate))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction date: %w", err)
	}
	postDate, err := parseDate(field(ColPostDate))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("post date: %w", err)
	}
	amount, err := core.ParseAmount(field(ColAmount))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}

	return core.Transaction{
		TransactionDate: txDate,
		PostDate:        postDate,
		Merchant:        core.NormalizeMerchant(field(ColDescription)),
		Category:        core.NormalizeCategory(field(ColCategory)),
		Type:            field(ColType),
		Amount:          amount,
		Memo:            field(ColMemo),
		Card:            strings.TrimSpace(opts.Card),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
