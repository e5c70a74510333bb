package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()

	var (
		csvPath        = flag.String("csv", "", "Chase statement CSV file (required)")
		card           = flag.String("card", "", "Card label attached to every row")
		dbPath         = flag.String("db", cfg.DBPath, "SQLite database path")
		outDir         = flag.String("out-dir", cfg.OutputDir, "Directory for CSV exports (empty to skip)")
		topN           = flag.Int("top-n", cfg.TopN, "Categories kept per month before collapsing into Other (0 = all)")
		includeCredits = flag.Bool("include-credits", false, "Count payments and refunds in the monthly rollup (net spend)")
		chartPath      = flag.String("chart", "", "Write an HTML chart page to this file")
	)
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "--csv is required")
		flag.Usage()
		os.Exit(2)
	}
	if *topN < 0 {
		fmt.Fprintln(os.Stderr, "--top-n must be 0 or positive")
		os.Exit(2)
	}

	repo := cli.InitSQLite(logger, *dbPath)
	defer repo.Close()

	notifier, closeNotifier := cli.InitNotifier(logger, cfg)
	defer closeNotifier()

	svc := services.NewImportService(repo, notifier, logger)
	summary, err := svc.Import(context.Background(), services.ImportRequest{
		Path:           *csvPath,
		Card:           *card,
		TopN:           *topN,
		IncludeCredits: *includeCredits,
		OutputDir:      *outDir,
		ChartPath:      *chartPath,
	})
	if err != nil {
		var schemaErr *core.SchemaError
		if errors.As(err, &schemaErr) {
			logger.Error("Statement is missing required columns", "missing", schemaErr.Missing)
		} else {
			logger.Error("Import failed", log.FieldError, err)
		}
		closeNotifier()
		repo.Close()
		os.Exit(1)
	}

	for _, m := range summary.Monthly {
		fmt.Printf("%s  spend %s  txns %d  avg %s\n",
			m.Month, core.FormatMoney(m.TotalSpend), m.TxnCount, core.FormatMoney(m.AvgPerTransaction))
	}
	logger.Info("Import finished",
		log.FieldImportID, summary.ImportID,
		log.FieldRows, summary.Rows,
		"exports", *outDir,
		"chart", summary.ChartPath,
		"notified", summary.Notified)
}
