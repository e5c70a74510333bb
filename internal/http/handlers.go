package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budget/internal/charts"
	"budget/internal/core"
	"budget/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.reader.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(ctx, "Store not ready", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"checks": map[string]string{"store": "failed: " + err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]string{"store": "ok"},
	})
}

// handleCharts renders the chart page from the current store contents.
// An optional top_n query parameter overrides the server default.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	topN, err := s.parseTopN(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	monthly, err := s.reader.MonthlySummary(ctx)
	if err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to read monthly summary", err, log.OpRender, nil)
		http.Error(w, "failed to read monthly summary", http.StatusInternalServerError)
		return
	}
	breakdown, err := s.reader.MonthlyCategory(ctx, topN)
	if err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to read category breakdown", err, log.OpRender, nil)
		http.Error(w, "failed to read category breakdown", http.StatusInternalServerError)
		return
	}

	// Render into a buffer so a failure can still produce a clean 500.
	var buf bytes.Buffer
	if err := charts.RenderPage(&buf, monthly, breakdown); err != nil {
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to render charts", err, log.OpRender, nil)
		http.Error(w, "failed to render charts", http.StatusInternalServerError)
		return
	}

	logger.DebugContext(ctx, "Charts rendered",
		log.FieldTopN, topN,
		"months", len(monthly),
		"breakdown_rows", len(breakdown))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type monthlyJSON struct {
	Month             string `json:"month"`
	TotalSpend        string `json:"total_spend"`
	TxnCount          int    `json:"txn_count"`
	AvgPerTransaction string `json:"avg_per_transaction"`
}

type categoryJSON struct {
	Month             string `json:"month"`
	Category          string `json:"category"`
	Spend             string `json:"spend"`
	TxnCount          int    `json:"txn_count"`
	AvgPerTransaction string `json:"avg_per_transaction"`
	RankInMonth       int    `json:"rank_in_month,omitempty"`
}

func (s *Server) handleMonthlyJSON(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reader.MonthlySummary(r.Context())
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Failed to read monthly summary", err, log.OpRender, nil)
		http.Error(w, "failed to read monthly summary", http.StatusInternalServerError)
		return
	}
	out := make([]monthlyJSON, 0, len(rows))
	for _, m := range rows {
		out = append(out, monthlyJSON{
			Month:             m.Month,
			TotalSpend:        core.FormatMoney(m.TotalSpend),
			TxnCount:          m.TxnCount,
			AvgPerTransaction: core.FormatMoney(m.AvgPerTransaction),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCategoriesJSON(w http.ResponseWriter, r *http.Request) {
	topN, err := s.parseTopN(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.reader.MonthlyCategory(r.Context(), topN)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Failed to read category breakdown", err, log.OpRender, nil)
		http.Error(w, "failed to read category breakdown", http.StatusInternalServerError)
		return
	}
	out := make([]categoryJSON, 0, len(rows))
	for _, c := range rows {
		out = append(out, categoryJSON{
			Month:             c.Month,
			Category:          c.Category,
			Spend:             core.FormatMoney(c.Spend),
			TxnCount:          c.TxnCount,
			AvgPerTransaction: core.FormatMoney(c.AvgPerTransaction),
			RankInMonth:       c.RankInMonth,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) parseTopN(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("top_n"))
	if v == "" {
		return s.topN, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid top_n %q: must be a non-negative integer", v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
