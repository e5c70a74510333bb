package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/storage"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(log.ComponentStorage)

	var (
		dbPath   = flag.String("db", cfg.DBPath, "SQLite database path")
		merchant = flag.String("merchant", "", "Merchant name as stored (case-insensitive, required)")
		category = flag.String("category", "", "Category override; empty clears it")
	)
	flag.Parse()

	if strings.TrimSpace(*merchant) == "" {
		fmt.Fprintln(os.Stderr, "--merchant is required")
		flag.Usage()
		os.Exit(2)
	}

	repo := cli.InitSQLite(logger, *dbPath)
	defer repo.Close()

	n, err := repo.SetFinalCategory(context.Background(), *merchant, strings.TrimSpace(*category))
	if err != nil {
		if errors.Is(err, storage.ErrMerchantNotFound) {
			logger.Error("Unknown merchant", log.FieldMerchant, *merchant)
		} else {
			logger.Error("Failed to set category", log.FieldError, err)
		}
		repo.Close()
		os.Exit(1)
	}
	logger.Info("Category override saved",
		log.FieldMerchant, *merchant,
		log.FieldCategory, strings.TrimSpace(*category),
		log.FieldRows, n)
	fmt.Printf("%d transactions updated\n", n)
}
