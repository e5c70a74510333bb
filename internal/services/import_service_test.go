package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/log"
	"budget/internal/storage"
)

const statementCSV = `Transaction Date,Post Date,Description,Category,Type,Amount,Memo
01/03/2024,01/04/2024,Trader Joe's,Groceries,Sale,-54.21,
01/05/2024,01/05/2024,Payment Thank You,,Payment,1200.00,
01/09/2024,01/10/2024,Shell,Gas,Sale,-40.00,
02/11/2024,02/12/2024,netflix.com,Entertainment,Sale,-15.49,
`

type fakeStore struct {
	records []storage.ImportRecord
	rows    int
	err     error
}

func (f *fakeStore) SaveImport(ctx context.Context, rec storage.ImportRecord, txns []core.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	f.rows += len(txns)
	return nil
}

type fakeNotifier struct {
	msgs []*amqp.ImportCompletedMessage
	err  error
}

func (f *fakeNotifier) PublishImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Writer: io.Discard})
}

func writeStatement(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chase.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write statement: %v", err)
	}
	return path
}

func newService(store ImportStore, notifier Notifier) *ImportService {
	svc := NewImportService(store, notifier, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "import-1" }
	return svc
}

func TestImportRunsWholePipeline(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	out := filepath.Join(t.TempDir(), "output")
	chart := filepath.Join(out, "charts.html")

	summary, err := newService(store, notifier).Import(context.Background(), ImportRequest{
		Path:      writeStatement(t, statementCSV),
		Card:      "Chase Card",
		TopN:      10,
		OutputDir: out,
		ChartPath: chart,
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if summary.ImportID != "import-1" || summary.Rows != 4 || summary.SpendRows != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !reflect.DeepEqual(summary.Months, []string{"2024-01", "2024-02"}) {
		t.Fatalf("months = %v", summary.Months)
	}
	if len(store.records) != 1 || store.rows != 4 || store.records[0].Card != "Chase Card" || store.records[0].SHA256 == "" {
		t.Fatalf("store got %+v", store.records)
	}

	for _, name := range []string{export.TransactionsFile, export.MonthlyFile, export.BreakdownFile} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing export %s: %v", name, err)
		}
	}
	monthly, err := os.ReadFile(summary.Files.Monthly)
	if err != nil {
		t.Fatalf("read monthly: %v", err)
	}
	if !strings.Contains(string(monthly), "2024-01,94.21,2,47.11") {
		t.Errorf("unexpected monthly export:\n%s", monthly)
	}
	if _, err := os.Stat(chart); err != nil {
		t.Errorf("missing chart page: %v", err)
	}

	if !summary.Notified || len(notifier.msgs) != 1 || notifier.msgs[0].ImportID != "import-1" || notifier.msgs[0].RowCount != 4 {
		t.Fatalf("notifier got %+v", notifier.msgs)
	}
}

func TestImportSchemaErrorStoresNothing(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	path := writeStatement(t, "Transaction Date,Description,Amount\n01/01/2024,x,-1\n")

	_, err := newService(store, notifier).Import(context.Background(), ImportRequest{Path: path, OutputDir: t.TempDir()})
	var schemaErr *core.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(store.records) != 0 || len(notifier.msgs) != 0 {
		t.Fatalf("nothing should be stored or published")
	}
}

func TestImportStoreFailureAborts(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	out := filepath.Join(t.TempDir(), "output")

	_, err := newService(store, nil).Import(context.Background(), ImportRequest{
		Path:      writeStatement(t, statementCSV),
		OutputDir: out,
	})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected store error, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("exports should not be written after a failed save")
	}
}

func TestImportNotificationIsOptional(t *testing.T) {
	tests := []struct {
		name     string
		notifier Notifier
	}{
		{"disabled", nil},
		{"failing", &fakeNotifier{err: errors.New("circuit breaker is open")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			summary, err := newService(store, tt.notifier).Import(context.Background(), ImportRequest{
				Path: writeStatement(t, statementCSV),
			})
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			if summary.Notified {
				t.Fatalf("should not report a notification")
			}
			if len(store.records) != 1 {
				t.Fatalf("import should still be stored")
			}
		})
	}
}

func TestImportTwiceIntoSQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	path := writeStatement(t, statementCSV)
	svc := NewImportService(repo, nil, testLogger())
	for i := 0; i < 2; i++ {
		if _, err := svc.Import(ctx, ImportRequest{Path: path, TopN: 10}); err != nil {
			t.Fatalf("Import #%d: %v", i+1, err)
		}
	}

	imports, err := repo.ListImports(ctx)
	if err != nil {
		t.Fatalf("ListImports: %v", err)
	}
	if len(imports) != 1 || imports[0].RowCount != 4 {
		t.Fatalf("imports = %+v", imports)
	}
	monthly, err := repo.MonthlySummary(ctx)
	if err != nil {
		t.Fatalf("MonthlySummary: %v", err)
	}
	if len(monthly) != 2 || core.FormatMoney(monthly[0].TotalSpend) != "94.21" || monthly[0].TxnCount != 2 {
		t.Fatalf("monthly = %+v", monthly)
	}
}

func TestImportKeepsRowsWithBlankDescription(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	content := statementCSV + "01/20/2024,01/20/2024,,Fees & Adjustments,Fee,-39.00,\n"
	svc := NewImportService(repo, nil, testLogger())
	summary, err := svc.Import(ctx, ImportRequest{Path: writeStatement(t, content)})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Rows != 5 {
		t.Fatalf("rows = %d, want 5", summary.Rows)
	}

	monthly, err := repo.MonthlySummary(ctx)
	if err != nil {
		t.Fatalf("MonthlySummary: %v", err)
	}
	if len(monthly) != 2 || core.FormatMoney(monthly[0].TotalSpend) != "133.21" || monthly[0].TxnCount != 3 {
		t.Fatalf("monthly = %+v", monthly)
	}
	if _, err := repo.SetFinalCategory(ctx, core.UnknownMerchant, "Fees"); err != nil {
		t.Fatalf("blank-description rows should be stored under %q: %v", core.UnknownMerchant, err)
	}
}
