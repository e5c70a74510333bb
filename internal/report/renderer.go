package report

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/log"
)

var ErrEmptyResponse = errors.New("model returned no text")

// Renderer builds the prompt for a year and asks the generator for the
// report. It makes exactly one call per Render.
type Renderer struct {
	Generator Generator
	Model     string
}

func NewRenderer(gen Generator, model string) *Renderer {
	if model == "" {
		model = DefaultModel
	}
	return &Renderer{Generator: gen, Model: model}
}

// Render returns the generated text verbatim. Any generator failure,
// including an empty answer, is returned as *core.GenerationError.
func (r *Renderer) Render(ctx context.Context, metrics core.YearMetrics) (string, error) {
	prompt := BuildPrompt(metrics)

	start := time.Now()
	text, err := r.Generator.Generate(ctx, r.Model, prompt)
	if err != nil {
		return "", &core.GenerationError{Model: r.Model, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &core.GenerationError{Model: r.Model, Err: ErrEmptyResponse}
	}

	slog.InfoContext(ctx, "Year-end report generated",
		log.FieldOperation, log.OpGenerate,
		log.FieldYear, metrics.Year,
		log.FieldModel, r.Model,
		"prompt_bytes", len(prompt),
		"report_bytes", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}
