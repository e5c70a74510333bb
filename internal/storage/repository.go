package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budget/internal/analytics"
	"budget/internal/core"

	_ "modernc.org/sqlite"
)

var ErrMerchantNotFound = errors.New("merchant not found")

// ImportRecord describes one statement file stored in the database.
type ImportRecord struct {
	ID         string
	SourcePath string
	SHA256     string
	Card       string
	RowCount   int
	ImportedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Schema first, so the main connection never sees a half-migrated file.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveImport stores one statement and its transactions atomically. A prior
// import of the same file (same SHA-256) is replaced, so re-running the
// pipeline never duplicates rows.
func (r *SQLiteRepository) SaveImport(ctx context.Context, rec ImportRecord, txns []core.Transaction) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var previousID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM statement_imports WHERE sha256 = ?`, rec.SHA256).Scan(&previousID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
	case err != nil:
		return fmt.Errorf("find previous import: %w", err)
	default:
		if _, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE import_id = ?`, previousID); err != nil {
			return fmt.Errorf("delete previous transactions: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM statement_imports WHERE id = ?`, previousID); err != nil {
			return fmt.Errorf("delete previous import: %w", err)
		}
		slog.InfoContext(ctx, "Replacing previous import of the same file",
			"previous_import_id", previousID,
			"import_id", rec.ID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statement_imports (id, source_path, sha256, card, row_count, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SourcePath, rec.SHA256, nullString(rec.Card), rec.RowCount, rec.ImportedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}

	merchantStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO merchants (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id, category_override`)
	if err != nil {
		return fmt.Errorf("prepare merchant upsert: %w", err)
	}
	defer merchantStmt.Close()

	txnStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			import_id, transaction_date, post_date, merchant_id,
			category_chase, category_final, type, amount_cents, memo, card
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare transaction insert: %w", err)
	}
	defer txnStmt.Close()

	type merchantRow struct {
		id       int64
		override sql.NullString
	}
	merchants := make(map[string]merchantRow)

	for i, t := range txns {
		if err = t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		m, ok := merchants[t.Merchant]
		if !ok {
			if err = merchantStmt.QueryRowContext(ctx, t.Merchant).Scan(&m.id, &m.override); err != nil {
				return fmt.Errorf("upsert merchant %q: %w", t.Merchant, err)
			}
			merchants[t.Merchant] = m
		}

		_, err = txnStmt.ExecContext(ctx,
			rec.ID,
			t.TransactionDate.Format(core.DateLayout),
			formatOptionalDate(t.PostDate),
			m.id,
			chaseCategory(t.Category),
			m.override,
			t.Type,
			core.ToCents(t.Amount),
			t.Memo,
			nullString(t.Card),
		)
		if err != nil {
			return fmt.Errorf("insert transaction %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Statement saved to SQLite",
		"import_id", rec.ID,
		"source_path", rec.SourcePath,
		"transactions", len(txns),
		"merchants", len(merchants))
	return nil
}

// SetFinalCategory overrides the category of every transaction of a
// merchant, including ones imported later. It returns the number of
// transactions updated.
func (r *SQLiteRepository) SetFinalCategory(ctx context.Context, merchant, category string) (int64, error) {
	merchant = core.NormalizeMerchant(merchant)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin category override: %w", err)
	}
	defer tx.Rollback()

	var merchantID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM merchants WHERE name = ?`, merchant).Scan(&merchantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("merchant %q: %w", merchant, ErrMerchantNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("find merchant: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE merchants SET category_override = ? WHERE id = ?`, nullString(category), merchantID); err != nil {
		return 0, fmt.Errorf("update merchant override: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE transactions SET category_final = ? WHERE merchant_id = ?`, nullString(category), merchantID)
	if err != nil {
		return 0, fmt.Errorf("update transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit category override: %w", err)
	}

	slog.InfoContext(ctx, "Category override applied",
		"merchant", merchant,
		"category", category,
		"transactions", n)
	return n, nil
}

// ListImports returns stored imports, newest first.
func (r *SQLiteRepository) ListImports(ctx context.Context) ([]ImportRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_path, sha256, COALESCE(card, ''), row_count, imported_at
		FROM statement_imports
		ORDER BY imported_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []ImportRecord
	for rows.Next() {
		var (
			rec ImportRecord
			ts  string
		)
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &rec.SHA256, &rec.Card, &rec.RowCount, &ts); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		if rec.ImportedAt, err = time.Parse(time.RFC3339, ts); err != nil {
			return nil, fmt.Errorf("parse imported_at %q: %w", ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MonthlySummary reads v_monthly_summary ordered by month.
func (r *SQLiteRepository) MonthlySummary(ctx context.Context) ([]core.MonthlyRollup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month, total_spend, txn_count
		FROM v_monthly_summary
		ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("query monthly summary: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyRollup
	for rows.Next() {
		var (
			m     core.MonthlyRollup
			cents int64
		)
		if err := rows.Scan(&m.Month, &cents, &m.TxnCount); err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		m.TotalSpend = core.FromCents(cents)
		m.AvgPerTransaction = core.Average(m.TotalSpend, m.TxnCount)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MonthlyCategory reads v_monthly_category ordered by month then spend
// descending, ties in insertion order. topN > 0 collapses the tail of each
// month into "Other".
func (r *SQLiteRepository) MonthlyCategory(ctx context.Context, topN int) ([]core.CategoryBreakdownRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT month, category, spend, txn_count
		FROM v_monthly_category
		ORDER BY month, spend DESC, first_id`)
	if err != nil {
		return nil, fmt.Errorf("query monthly category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryBreakdownRow
	for rows.Next() {
		var (
			c     core.CategoryBreakdownRow
			cents int64
		)
		if err := rows.Scan(&c.Month, &c.Category, &cents, &c.TxnCount); err != nil {
			return nil, fmt.Errorf("scan monthly category: %w", err)
		}
		c.Spend = core.FromCents(cents)
		c.AvgPerTransaction = core.Average(c.Spend, c.TxnCount)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return analytics.CollapseTopN(out, topN), nil
}

func chaseCategory(category string) sql.NullString {
	if category == core.UncategorizedCategory {
		return sql.NullString{}
	}
	return nullString(category)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatOptionalDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(core.DateLayout), Valid: true}
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
