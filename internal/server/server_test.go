package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mbolt/svgpress/pkg/export"
)

func TestBroadcaster(t *testing.T) {
	b := newBroadcaster()
	ch1, un1 := b.subscribe()
	ch2, un2 := b.subscribe()
	defer un2()

	b.publish("pass-1")
	for i, ch := range []chan string{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "pass-1" {
				t.Errorf("subscriber %d received %q", i, got)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}

	un1()
	if _, open := <-ch1; open {
		t.Error("unsubscribed channel not closed")
	}
	// Unsubscribing twice must not close twice.
	un1()

	b.publish("pass-2")
	if got := <-ch2; got != "pass-2" {
		t.Errorf("remaining subscriber received %q", got)
	}
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := newBroadcaster()
	ch, un := b.subscribe()
	defer un()
	// Overfill the buffer; the publisher must not block.
	for i := 0; i < 10; i++ {
		b.publish("pass")
	}
	drained := 0
	for {
		select {
		case <-ch:
			drained++
			continue
		default:
		}
		break
	}
	if drained == 0 || drained > 4 {
		t.Errorf("drained %d events, want 1..4", drained)
	}
}

func TestHandlersBeforeFirstPass(t *testing.T) {
	s := NewServer("localhost:0", nil)
	for _, path := range []string{"/artifact.svg", "/module.json", "/pass"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s before any pass = %d, want 404", path, rec.Code)
		}
	}
}

func TestHandlersAfterPublish(t *testing.T) {
	s := NewServer("localhost:0", nil)
	s.Publish(&export.Result{
		PassID:     "pass-1",
		ModuleHash: "abc",
		Artifact:   []byte("<svg></svg>"),
	})

	req := httptest.NewRequest(http.MethodGet, "/artifact.svg", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /artifact.svg = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/svg+xml" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Body.String() != "<svg></svg>" {
		t.Errorf("artifact body = %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/pass", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /pass = %d", rec.Code)
	}
	var pass map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &pass); err != nil {
		t.Fatalf("pass response is not JSON: %v", err)
	}
	if pass["pass_id"] != "pass-1" || pass["module_hash"] != "abc" {
		t.Errorf("pass response = %v", pass)
	}
}

func TestIndexAndHealth(t *testing.T) {
	s := NewServer("localhost:0", nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "EventSource") {
		t.Errorf("GET / = %d, body %.60q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("GET /healthz = %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer("localhost:0", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d", rec.Code)
	}
}
