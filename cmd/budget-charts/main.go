package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"budget/internal/charts"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/storage"
)

func main() {
	cfg, logger := cli.Bootstrap()

	var (
		dbPath  = flag.String("db", cfg.DBPath, "SQLite database path")
		outPath = flag.String("out", "", "Write the chart page to this file and exit")
		addr    = flag.String("addr", cfg.ChartAddr, "Serve charts on this address when --out is not set")
		topN    = flag.Int("top-n", cfg.TopN, "Categories kept per month before collapsing into Other (0 = all)")
	)
	flag.Parse()

	if *topN < 0 {
		fmt.Fprintln(os.Stderr, "--top-n must be 0 or positive")
		os.Exit(2)
	}

	repo := cli.InitSQLite(logger, *dbPath)
	defer repo.Close()

	if *outPath != "" {
		if err := writePage(context.Background(), repo, *outPath, *topN); err != nil {
			logger.WithComponent(log.ComponentCharts).Error("Failed to write chart page", log.FieldError, err)
			repo.Close()
			os.Exit(1)
		}
		logger.Info("Chart page written", "path", *outPath)
		return
	}

	if imports, err := repo.ListImports(context.Background()); err == nil {
		logger.Info("Serving charts", log.FieldOperation, log.OpStartup, "addr", *addr, "imports", len(imports), log.FieldTopN, *topN)
	}

	srv := apphttp.NewServer(*addr, repo, *topN, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "addr", *addr)
		repo.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func writePage(ctx context.Context, repo *storage.SQLiteRepository, path string, topN int) error {
	monthly, err := repo.MonthlySummary(ctx)
	if err != nil {
		return err
	}
	breakdown, err := repo.MonthlyCategory(ctx, topN)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := charts.RenderPage(f, monthly, breakdown); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
