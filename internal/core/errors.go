package core

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaError is returned when a statement file lacks required columns.
type SchemaError struct {
	Missing []string
}

// NewSchemaError builds a SchemaError with the missing columns sorted.
func NewSchemaError(missing []string) *SchemaError {
	m := append([]string(nil), missing...)
	sort.Strings(m)
	return &SchemaError{Missing: m}
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
}

// GenerationError wraps a failure of the external text-generation call.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate report with model %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
