package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Store and outputs
	DBPath    string
	OutputDir string
	TopN      int

	// Year-end report
	GeminiAPIKey  string
	ReportModel   string
	ReportTimeout time.Duration

	// Chart server
	ChartAddr string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

func Load() *Config {
	return &Config{
		DBPath:    getEnv("BUDGET_DB_PATH", "budget.db"),
		OutputDir: getEnv("BUDGET_OUTPUT_DIR", "output"),
		TopN:      getEnvInt("BUDGET_TOP_N", 10),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		ReportModel:   getEnv("REPORT_MODEL", "gemini-2.5-flash"),
		ReportTimeout: getEnvDuration("REPORT_TIMEOUT", 2*time.Minute),

		ChartAddr: getEnv("CHART_ADDR", ":8081"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budget"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "statement_imports"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.OutputDir == "" {
		errors = append(errors, "output directory cannot be empty")
	}

	if c.TopN < 0 {
		errors = append(errors, fmt.Sprintf("invalid top-n %d: must be 0 (unbounded) or positive", c.TopN))
	}

	if c.ReportModel == "" {
		errors = append(errors, "report model cannot be empty")
	}
	if c.ReportTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report timeout %v: must be at least 1 second", c.ReportTimeout))
	} else if c.ReportTimeout > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report timeout %v: must be at most 1 hour", c.ReportTimeout))
	}

	if _, port, err := net.SplitHostPort(c.ChartAddr); err != nil {
		errors = append(errors, fmt.Sprintf("invalid chart address '%s': %v", c.ChartAddr, err))
	} else if p, err := strconv.Atoi(port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid chart port '%s': must be a number", port))
	} else if p < 1 || p > 65535 {
		errors = append(errors, fmt.Sprintf("invalid chart port %d: must be between 1 and 65535", p))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateReport checks the settings only the year-end report needs.
func (c *Config) ValidateReport() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required to generate a report")
	}
	return nil
}

// AMQPEnabled reports whether import notifications should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
