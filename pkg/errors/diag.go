package errors

import (
	"fmt"
	"sync"
)

// Diagnostic records a stage-local, recoverable failure. The pipeline
// degrades in place (placeholder items, no-op fragments) and surfaces the
// collected diagnostics to the caller instead of aborting the export.
type Diagnostic struct {
	// Stage is the pipeline stage that recorded the diagnostic:
	// "lower", "flatten", "codegen" or "assemble".
	Stage string `json:"stage" bson:"stage"`

	// Code classifies the failure.
	Code Code `json:"code" bson:"code"`

	// Page is the page index the failure occurred on, or -1.
	Page int `json:"page" bson:"page"`

	// Message describes the failure.
	Message string `json:"message" bson:"message"`
}

// String formats the diagnostic for logs.
func (d Diagnostic) String() string {
	if d.Page >= 0 {
		return fmt.Sprintf("%s[%s] page %d: %s", d.Stage, d.Code, d.Page, d.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Stage, d.Code, d.Message)
}

// Diagnostics collects diagnostics from concurrently running stages.
// The zero value is not usable; create one with NewDiagnostics.
type Diagnostics struct {
	mu   sync.Mutex
	list []Diagnostic
}

// NewDiagnostics returns an empty collector.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

// Add records a diagnostic. Safe for concurrent use.
func (d *Diagnostics) Add(stage string, code Code, page int, format string, args ...any) {
	d.mu.Lock()
	d.list = append(d.list, Diagnostic{
		Stage:   stage,
		Code:    code,
		Page:    page,
		Message: fmt.Sprintf(format, args...),
	})
	d.mu.Unlock()
}

// All returns a copy of the collected diagnostics.
func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.list))
	copy(out, d.list)
	return out
}

// Len returns the number of collected diagnostics.
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.list)
}
