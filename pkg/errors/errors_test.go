package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(ErrCodeInvalidDocument, "document has no pages")
	if got := plain.Error(); got != "INVALID_DOCUMENT: document has no pages" {
		t.Errorf("Error() = %q", got)
	}

	cause := stderrors.New("dial tcp: connection refused")
	wrapped := Wrap(ErrCodeStoreUnavailable, cause, "load snapshot %s", "abc123")
	if got := wrapped.Error(); got != "STORE_UNAVAILABLE: load snapshot abc123: dial tcp: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("wrapped error does not unwrap to its cause")
	}
}

func TestIsAndGetCode(t *testing.T) {
	base := New(ErrCodeCacheUnavailable, "redis down")
	deep := fmt.Errorf("pass failed: %w", Wrap(ErrCodeInternal, base, "assemble"))

	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct match", base, ErrCodeCacheUnavailable, true},
		{"direct mismatch", base, ErrCodeInternal, false},
		{"outermost code wins in a chain", deep, ErrCodeInternal, true},
		{"inner code shadowed", deep, ErrCodeCacheUnavailable, false},
		{"plain error", stderrors.New("boom"), ErrCodeInternal, false},
	}
	for _, tt := range tests {
		if got := Is(tt.err, tt.code); got != tt.want {
			t.Errorf("%s: Is(err, %s) = %v, want %v", tt.name, tt.code, got, tt.want)
		}
	}

	if got := GetCode(deep); got != ErrCodeInternal {
		t.Errorf("GetCode = %q, want INTERNAL_ERROR", got)
	}
	if got := GetCode(stderrors.New("boom")); got != "" {
		t.Errorf("GetCode of a plain error = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeInvalidOptions, "workers must be >= 0")); got != "workers must be >= 0" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("boom")); got != "boom" {
		t.Errorf("UserMessage of a plain error = %q", got)
	}
}

func TestDiagnosticString(t *testing.T) {
	tests := []struct {
		d    Diagnostic
		want string
	}{
		{
			Diagnostic{Stage: "lower", Code: ErrCodeFontUnresolved, Page: 2, Message: "no outlines"},
			"lower[FONT_UNRESOLVED] page 2: no outlines",
		},
		{
			Diagnostic{Stage: "codegen", Code: ErrCodeMalformedItem, Page: -1, Message: "empty path"},
			"codegen[MALFORMED_ITEM]: empty path",
		},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDiagnosticsConcurrentAdd(t *testing.T) {
	diags := NewDiagnostics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				diags.Add("lower", ErrCodeFontUnresolved, page, "glyph %d", j)
			}
		}(i)
	}
	wg.Wait()
	if got := diags.Len(); got != 800 {
		t.Errorf("Len = %d, want 800", got)
	}
	all := diags.All()
	all[0].Message = "mutated"
	if diags.All()[0].Message == "mutated" {
		t.Error("All returned a live slice instead of a copy")
	}
}
