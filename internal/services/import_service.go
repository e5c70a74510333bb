package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"budget/internal/amqp"
	"budget/internal/analytics"
	"budget/internal/charts"
	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/log"
	"budget/internal/statement"
	"budget/internal/storage"

	"github.com/google/uuid"
)

// ImportStore persists one loaded statement.
type ImportStore interface {
	SaveImport(ctx context.Context, rec storage.ImportRecord, txns []core.Transaction) error
}

// Notifier announces stored imports to other services.
type Notifier interface {
	PublishImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error
}

type ImportRequest struct {
	Path           string
	Card           string
	TopN           int
	IncludeCredits bool
	OutputDir      string // no CSV exports when empty
	ChartPath      string // no chart page when empty
}

type ImportSummary struct {
	ImportID  string
	SHA256    string
	Rows      int
	SpendRows int
	Months    []string
	Monthly   []core.MonthlyRollup
	Breakdown []core.CategoryBreakdownRow
	Files     export.Files
	ChartPath string
	Notified  bool
}

// ImportService runs the statement pipeline: load, aggregate, persist,
// export, chart and notify. Any failure before notification aborts the
// run; a failed notification is only logged.
type ImportService struct {
	store    ImportStore
	notifier Notifier
	logger   *log.Logger

	now   func() time.Time
	newID func() string
}

// NewImportService wires the pipeline. notifier may be nil, in which case
// notifications are skipped.
func NewImportService(store ImportStore, notifier Notifier, logger *log.Logger) *ImportService {
	return &ImportService{
		store:    store,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentImport),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*ImportSummary, error) {
	sl := log.NewStructuredLogger(s.logger)

	loaded, err := statement.Load(req.Path, statement.Options{Card: req.Card})
	if err != nil {
		sl.LogError(ctx, "Failed to load statement", err, log.OpLoad, log.NewFields().WithImport("", req.Path, 0, nil))
		return nil, fmt.Errorf("load statement: %w", err)
	}
	txns := loaded.Transactions

	monthly := analytics.MonthlyRollup(txns, req.IncludeCredits)
	breakdown := analytics.CategoryBreakdown(txns, req.TopN)

	summary := &ImportSummary{
		ImportID:  s.newID(),
		SHA256:    loaded.SHA256,
		Rows:      len(txns),
		SpendRows: countSpend(txns),
		Months:    distinctMonths(txns),
		Monthly:   monthly,
		Breakdown: breakdown,
	}
	s.logger.DebugContext(ctx, "Statement aggregated",
		log.FieldOperation, log.OpAggregate,
		log.FieldRows, summary.Rows,
		log.FieldSpendRows, summary.SpendRows,
		log.FieldTopN, req.TopN)

	sourcePath := req.Path
	if abs, err := filepath.Abs(req.Path); err == nil {
		sourcePath = abs
	}
	rec := storage.ImportRecord{
		ID:         summary.ImportID,
		SourcePath: sourcePath,
		SHA256:     loaded.SHA256,
		Card:       req.Card,
		RowCount:   len(txns),
		ImportedAt: s.now(),
	}
	if err := s.store.SaveImport(ctx, rec, txns); err != nil {
		sl.LogError(ctx, "Failed to persist statement", err, log.OpPersist, log.NewFields().WithImport(rec.ID, sourcePath, len(txns), summary.Months))
		return nil, fmt.Errorf("save import: %w", err)
	}

	if req.OutputDir != "" {
		files, err := export.WriteAll(req.OutputDir, txns, monthly, breakdown)
		if err != nil {
			sl.LogError(ctx, "Failed to export CSV files", err, log.OpExport, nil)
			return nil, fmt.Errorf("export csv: %w", err)
		}
		summary.Files = files
	}

	if req.ChartPath != "" {
		if err := writeChartPage(req.ChartPath, monthly, breakdown); err != nil {
			sl.LogError(ctx, "Failed to write chart page", err, log.OpRender, nil)
			return nil, err
		}
		summary.ChartPath = req.ChartPath
	}

	summary.Notified = s.notify(ctx, summary, sourcePath)

	sl.LogImportCompleted(ctx, summary.ImportID, sourcePath, summary.Rows, summary.Months)
	return summary, nil
}

func (s *ImportService) notify(ctx context.Context, summary *ImportSummary, sourcePath string) bool {
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, skipping import notification",
			log.FieldImportID, summary.ImportID)
		return false
	}

	msg := amqp.NewImportCompletedMessage(summary.ImportID, sourcePath, summary.SHA256, summary.Rows, summary.Months)
	if err := s.notifier.PublishImportCompleted(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish import notification",
			log.FieldImportID, summary.ImportID,
			log.FieldOperation, log.OpNotify,
			log.FieldError, err)
		return false
	}
	return true
}

func writeChartPage(path string, monthly []core.MonthlyRollup, breakdown []core.CategoryBreakdownRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := charts.RenderPage(f, monthly, breakdown); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart file: %w", err)
	}
	return nil
}

func countSpend(txns []core.Transaction) int {
	n := 0
	for _, t := range txns {
		if t.IsSpend() {
			n++
		}
	}
	return n
}

func distinctMonths(txns []core.Transaction) []string {
	seen := make(map[string]bool)
	var months []string
	for _, t := range txns {
		m := t.Month()
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Strings(months)
	return months
}
