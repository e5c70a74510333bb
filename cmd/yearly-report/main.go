package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/report"
)

type options struct {
	dbPath string
	year   int
	out    string
	model  string
}

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(log.ComponentReport)

	var opts options
	flag.StringVar(&opts.dbPath, "db", cfg.DBPath, "SQLite database path")
	flag.IntVar(&opts.year, "year", 0, "Calendar year to report on (required)")
	flag.StringVar(&opts.out, "out", "", "Also save the report to this file")
	flag.StringVar(&opts.model, "model", cfg.ReportModel, "Text generation model id")
	flag.Parse()

	if opts.year == 0 {
		fmt.Fprintln(os.Stderr, "--year is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.ValidateReport(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	text, err := run(cfg, opts, logger)
	if err != nil {
		var genErr *core.GenerationError
		if errors.As(err, &genErr) {
			logger.Error("Report generation failed", log.FieldModel, genErr.Model, log.FieldError, genErr.Err)
		} else {
			logger.Error("Report failed", log.FieldError, err)
		}
		os.Exit(1)
	}

	fmt.Println(text)

	if opts.out != "" {
		if err := os.WriteFile(opts.out, []byte(text), 0644); err != nil {
			logger.Error("Failed to save report", log.FieldError, err, "path", opts.out)
			os.Exit(1)
		}
		logger.Info("Report saved", "path", opts.out)
	}
}

func run(cfg *config.Config, opts options, logger *log.Logger) (string, error) {
	repo := cli.InitSQLite(logger, opts.dbPath)
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ReportTimeout)
	defer cancel()

	metrics, err := repo.LoadYearMetrics(ctx, opts.year)
	if err != nil {
		return "", fmt.Errorf("load year metrics: %w", err)
	}
	logger.Info("Year metrics loaded",
		log.FieldYear, opts.year,
		"total_spend", core.FormatMoney(metrics.TotalSpend),
		"txn_count", metrics.TxnCount)

	gen, err := report.NewGeminiGenerator(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return "", &core.GenerationError{Model: opts.model, Err: err}
	}
	return report.NewRenderer(gen, opts.model).Render(ctx, metrics)
}
