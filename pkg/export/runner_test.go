package export

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
)

func testDoc(pages int) *doc.Document {
	fill := doc.Solid(doc.RGB(30, 30, 200))
	d := &doc.Document{Title: "test"}
	for i := 0; i < pages; i++ {
		d.Pages = append(d.Pages, doc.Page{
			Size: doc.Size{W: 200, H: 100},
			Frame: doc.Frame{Size: doc.Size{W: 200, H: 100}, Items: []doc.Positioned{
				{Pos: doc.Point{X: 10, Y: 10}, Item: &doc.Shape{
					Geometry: doc.RectPath(doc.Size{W: 20, H: 20}), Fill: &fill,
				}},
				{Pos: doc.Point{X: 50, Y: 10}, Item: &doc.Shape{
					Geometry: doc.RectPath(doc.Size{W: 20, H: 20}), Fill: &fill,
				}},
			}},
		})
	}
	return d
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

func TestExportEndToEnd(t *testing.T) {
	r := quietRunner(cache.NewMemoryCache())
	res, err := r.Export(context.Background(), testDoc(2), Options{})
	if err != nil {
		t.Fatalf("Export error = %v", err)
	}
	if res.PassID == "" {
		t.Error("result has no pass id")
	}
	svg := string(res.Artifact)
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Errorf("artifact is not an SVG document: %.60s", svg)
	}
	if res.Stats.PageCount != 2 || res.Stats.DefCount == 0 || res.Stats.ItemCount == 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.ModuleHash == "" || res.Module == nil {
		t.Error("result lacks the flattened module")
	}
	if res.CacheInfo.ModuleHit || res.CacheInfo.ArtifactHit {
		t.Errorf("cold pass reported cache hits: %+v", res.CacheInfo)
	}
	if res.CacheInfo.FragmentInvocations == 0 {
		t.Error("cold pass generated no fragments")
	}
}

func TestExportSecondPassHitsArtifactCache(t *testing.T) {
	r := quietRunner(cache.NewMemoryCache())
	ctx := context.Background()
	d := testDoc(1)

	first, err := r.Export(ctx, d, Options{})
	if err != nil {
		t.Fatalf("first Export error = %v", err)
	}
	second, err := r.Export(ctx, d, Options{})
	if err != nil {
		t.Fatalf("second Export error = %v", err)
	}
	if !second.CacheInfo.ModuleHit {
		t.Error("second pass did not hit the module cache")
	}
	if !second.CacheInfo.ArtifactHit {
		t.Error("second pass did not hit the artifact cache")
	}
	if string(first.Artifact) != string(second.Artifact) {
		t.Error("cached artifact differs from the generated one")
	}
}

func TestExportLeafEditReusesFragments(t *testing.T) {
	// After editing one shape, fragments of untouched definitions come
	// from the cache; only the dirty ancestor chain regenerates.
	r := quietRunner(cache.NewMemoryCache())
	ctx := context.Background()

	first, err := r.Export(ctx, testDoc(1), Options{})
	if err != nil {
		t.Fatalf("first Export error = %v", err)
	}

	edited := testDoc(1)
	red := doc.Solid(doc.RGB(220, 0, 0))
	edited.Pages[0].Frame.Items[1].Item.(*doc.Shape).Fill = &red

	second, err := r.Export(ctx, edited, Options{})
	if err != nil {
		t.Fatalf("second Export error = %v", err)
	}
	if second.CacheInfo.ModuleHit || second.CacheInfo.ArtifactHit {
		t.Errorf("edited document unexpectedly hit outer caches: %+v", second.CacheInfo)
	}
	if second.CacheInfo.FragmentHits == 0 {
		t.Error("no fragment reuse after a single-leaf edit")
	}
	if second.CacheInfo.FragmentInvocations >= first.CacheInfo.FragmentInvocations+second.CacheInfo.FragmentHits {
		t.Errorf("edit regenerated everything: first=%+v second=%+v",
			first.CacheInfo, second.CacheInfo)
	}
	if second.ModuleHash == first.ModuleHash {
		t.Error("module hash unchanged despite an edit")
	}
}

func TestExportRefreshBypassesCaches(t *testing.T) {
	r := quietRunner(cache.NewMemoryCache())
	ctx := context.Background()
	d := testDoc(1)

	if _, err := r.Export(ctx, d, Options{}); err != nil {
		t.Fatalf("first Export error = %v", err)
	}
	res, err := r.Export(ctx, d, Options{Refresh: true})
	if err != nil {
		t.Fatalf("refresh Export error = %v", err)
	}
	if res.CacheInfo.ModuleHit || res.CacheInfo.ArtifactHit {
		t.Errorf("refresh pass hit outer caches: %+v", res.CacheInfo)
	}
	if len(res.Artifact) == 0 {
		t.Error("refresh pass produced no artifact")
	}
}

func TestExportWithoutCache(t *testing.T) {
	r := quietRunner(nil)
	ctx := context.Background()
	d := testDoc(1)

	if _, err := r.Export(ctx, d, Options{}); err != nil {
		t.Fatalf("first Export error = %v", err)
	}
	// No persistent cache, but the in-memory fragment cache still
	// memoizes across passes on the same runner.
	res, err := r.Export(ctx, d, Options{})
	if err != nil {
		t.Fatalf("second Export error = %v", err)
	}
	if res.CacheInfo.ArtifactHit || res.CacheInfo.ModuleHit {
		t.Error("NullCache reported a hit")
	}
	if res.CacheInfo.FragmentHits == 0 {
		t.Error("fragment cache did not carry across passes")
	}
}

func TestExportInvalidInputs(t *testing.T) {
	r := quietRunner(nil)
	ctx := context.Background()

	if _, err := r.Export(ctx, &doc.Document{}, Options{}); !errors.Is(err, errors.ErrCodeInvalidDocument) {
		t.Errorf("empty document error = %v, want INVALID_DOCUMENT", err)
	}
	if _, err := r.Export(ctx, testDoc(1), Options{PageGap: -1}); !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("negative page gap error = %v, want INVALID_OPTIONS", err)
	}
	if _, err := r.Export(ctx, testDoc(1), Options{Workers: -1}); !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("negative workers error = %v, want INVALID_OPTIONS", err)
	}
}

func TestExportCancelled(t *testing.T) {
	r := quietRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Export(ctx, testDoc(3), Options{})
	if err == nil {
		t.Fatal("Export with a cancelled context returned no error")
	}
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("error = %v, want CANCELLED", err)
	}
}

func TestExportPage(t *testing.T) {
	r := quietRunner(nil)
	d := testDoc(2)
	res, err := r.ExportPage(context.Background(), &d.Pages[1], 1, Options{})
	if err != nil {
		t.Fatalf("ExportPage error = %v", err)
	}
	svg := string(res.Artifact)
	if !strings.Contains(svg, `data-page="1"`) {
		t.Error("partial export lost the page index")
	}
	if res.Stats.PageCount != 1 {
		t.Errorf("PageCount = %d, want 1", res.Stats.PageCount)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"zero value", Options{}, false},
		{"explicit values", Options{PageGap: 4, InlineMaxRefs: 2, InlineMaxSize: 1024, Workers: 2}, false},
		{"negative gap", Options{PageGap: -0.5}, true},
		{"negative refs", Options{InlineMaxRefs: -1}, true},
		{"negative size", Options{InlineMaxSize: -1}, true},
	}
	for _, tt := range tests {
		opts := tt.opts
		err := opts.ValidateAndSetDefaults()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: ValidateAndSetDefaults() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err == nil && (opts.PageGap == 0 || opts.InlineMaxRefs == 0 || opts.InlineMaxSize == 0) {
			t.Errorf("%s: defaults not applied: %+v", tt.name, opts)
		}
	}
}
