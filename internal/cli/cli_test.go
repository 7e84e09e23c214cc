package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/errors"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if cfg.Watch.Addr != "localhost:7038" {
		t.Errorf("Watch.Addr = %q, want default", cfg.Watch.Addr)
	}
	if cfg.Watch.DebounceMillis != 300 {
		t.Errorf("Watch.DebounceMillis = %d, want 300", cfg.Watch.DebounceMillis)
	}
	if cfg.PageGap != 0 || cfg.Workers != 0 {
		t.Errorf("unexpected non-zero defaults: %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svgpress.toml")
	content := `
page_gap = 12.5
workers = 4
pretty_ids = true

[cache]
backend = "redis"

[cache.redis]
addr = "localhost:6379"

[watch]
debounce_ms = 100
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(path)
	if cfg.PageGap != 12.5 {
		t.Errorf("PageGap = %v, want 12.5", cfg.PageGap)
	}
	if cfg.Workers != 4 || !cfg.PrettyIDs {
		t.Errorf("Workers = %d, PrettyIDs = %v", cfg.Workers, cfg.PrettyIDs)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Redis.Addr != "localhost:6379" {
		t.Errorf("cache config = %+v", cfg.Cache)
	}
	if cfg.Watch.DebounceMillis != 100 {
		t.Errorf("DebounceMillis = %d, want 100", cfg.Watch.DebounceMillis)
	}
	// Untouched settings keep their defaults.
	if cfg.Watch.Addr != "localhost:7038" {
		t.Errorf("Watch.Addr = %q, want default", cfg.Watch.Addr)
	}
}

func TestLoadConfigBrokenFileYieldsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svgpress.toml")
	if err := os.WriteFile(path, []byte("page_gap = [not toml"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(path)
	if cfg.Watch.Addr != "localhost:7038" {
		t.Errorf("broken config did not fall back to defaults: %+v", cfg)
	}
}

func TestExportOptionsPrecedence(t *testing.T) {
	c := &CLI{
		Logger: newLogger(io.Discard, log.InfoLevel),
		Config: &Config{
			PageGap:       20,
			InlineMaxRefs: 3,
			Workers:       2,
		},
	}

	// No flags set: config values pass through. The page gap flag uses -1
	// as its unset sentinel so an explicit 0 still overrides.
	opts := c.exportOptions(&exportFlags{pageGap: -1})
	if opts.PageGap != 20 || opts.InlineMaxRefs != 3 || opts.Workers != 2 {
		t.Errorf("config passthrough = %+v", opts)
	}
	if opts.PrettyIDs || opts.Refresh {
		t.Errorf("unset bool flags = %+v", opts)
	}

	opts = c.exportOptions(&exportFlags{
		pageGap:       0,
		inlineMaxRefs: 5,
		workers:       8,
		prettyIDs:     true,
		refresh:       true,
	})
	if opts.PageGap != 0 {
		t.Errorf("PageGap = %v, want flag value 0", opts.PageGap)
	}
	if opts.InlineMaxRefs != 5 || opts.Workers != 8 {
		t.Errorf("flag overrides = %+v", opts)
	}
	if !opts.PrettyIDs || !opts.Refresh {
		t.Errorf("bool flags = %+v", opts)
	}
}

func TestLoggerFromContext(t *testing.T) {
	l := newLogger(io.Discard, log.DebugLevel)
	ctx := withLogger(context.Background(), l)
	if got := loggerFromContext(ctx); got != l {
		t.Error("loggerFromContext did not return the attached logger")
	}
	if got := loggerFromContext(context.Background()); got == nil {
		t.Error("loggerFromContext returned nil for a bare context")
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	content := `{
		"title": "t",
		"pages": [{
			"size": {"w": 100, "h": 50},
			"frame": {"size": {"w": 100, "h": 50}, "items": [
				{"type": "shape", "shape": {
					"geometry": {"segments": [
						{"op": 0, "end": {"x": 0, "y": 0}},
						{"op": 1, "end": {"x": 10, "y": 10}},
						{"op": 3}
					]},
					"fill": {"color": {"r": 0, "g": 0, "b": 0, "a": 255}}
				}}
			]}
		}]
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	d, err := readDocument(path)
	if err != nil {
		t.Fatalf("readDocument() error = %v", err)
	}
	if d.Title != "t" || len(d.Pages) != 1 {
		t.Errorf("document = %+v", d)
	}

	tests := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"invalid json", "{not json"},
		{"no pages", `{"title": "empty", "pages": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(dir, tt.name+".json")
			if tt.content != "" {
				if err := os.WriteFile(p, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			_, err := readDocument(p)
			if errors.GetCode(err) != errors.ErrCodeInvalidDocument {
				t.Errorf("readDocument() error = %v, want INVALID_DOCUMENT", err)
			}
		})
	}
}

func TestDocScope(t *testing.T) {
	a := docScope("/home/me/report.json")
	b := docScope("/home/me/invoice.json")
	if a == b {
		t.Errorf("distinct documents share scope %q", a)
	}
	if a != docScope("/home/me/report.json") {
		t.Error("scope is not stable for the same path")
	}
	if !strings.HasPrefix(a, "doc:") || !strings.HasSuffix(a, ":") {
		t.Errorf("scope %q is not a key prefix", a)
	}

	keyer := cache.NewScopedKeyer(nil, a)
	if !strings.HasPrefix(keyer.ModuleKey("h"), a) {
		t.Error("scoped keyer does not apply the document prefix")
	}
}
