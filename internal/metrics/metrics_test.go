// ABOUTME: Tests for stream metrics and the HTTP surface
// ABOUTME: Uses a fake stream source and httptest
package metrics

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sinetone/sinetone/internal/version"
	"github.com/sinetone/sinetone/pkg/audio"
	"github.com/sinetone/sinetone/pkg/audio/stream"
)

type fakeSource struct {
	stats stream.Stats
}

func (f *fakeSource) ID() string { return "stream-1" }
func (f *fakeSource) Stats() stream.Stats { return f.stats }
func (f *fakeSource) Format() audio.Format { return audio.NewFormat(44100, 2) }
func (f *fakeSource) BufferSize() int { return 4096 }

func TestObserve(t *testing.T) {
	m := New()
	m.ObserveRender(2 * time.Millisecond)
	m.ObserveError(errors.New("boom"))
	m.ObserveError(errors.New("boom"))

	if got := testutil.ToFloat64(m.failures); got != 2 {
		t.Errorf("expected 2 failures, got %f", got)
	}
	if got := testutil.CollectAndCount(m.renderDuration); got != 1 {
		t.Errorf("expected 1 histogram, got %d", got)
	}
}

func TestAttach(t *testing.T) {
	m := New()
	src := &fakeSource{stats: stream.Stats{ID: "stream-1", State: stream.StateStarted, Callbacks: 3, Frames: 3 * 4096, Late: 1}}

	if err := m.Attach(src); err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	if err := m.Attach(src); err == nil {
		t.Error("expected error attaching twice")
	}

	expected := `
# HELP sinetone_callbacks_total Provider invocations
# TYPE sinetone_callbacks_total counter
sinetone_callbacks_total{stream="stream-1"} 3
# HELP sinetone_late_callbacks_total Provider calls that took longer than one buffer period
# TYPE sinetone_late_callbacks_total counter
sinetone_late_callbacks_total{stream="stream-1"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"sinetone_callbacks_total", "sinetone_late_callbacks_total"); err != nil {
		t.Error(err)
	}

	src.stats.Callbacks = 10
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(strings.Replace(expected, "} 3", "} 10", 1)),
		"sinetone_callbacks_total", "sinetone_late_callbacks_total"); err != nil {
		t.Errorf("counter func did not follow stats: %v", err)
	}
}

func TestServerRoutes(t *testing.T) {
	m := New()
	src := &fakeSource{stats: stream.Stats{
		ID:         "stream-1",
		State:      stream.StateStopped,
		Callbacks:  2,
		Frames:     8192,
		LastRender: 500 * time.Microsecond,
		Err:        errors.New("callback failure: boom"),
	}}
	srv := httptest.NewServer(NewServer(m, nil).Router())
	defer srv.Close()

	// No stream attached yet
	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before attach, got %d", resp.StatusCode)
	}

	if err := m.Attach(src); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()

	if status.State != "stopped" || status.Callbacks != 2 || status.BufferSize != 4096 || status.SampleRate != 44100 {
		t.Errorf("unexpected status %+v", status)
	}
	if status.Version != version.String() {
		t.Errorf("expected version %q, got %q", version.String(), status.Version)
	}
	if status.LastRenderMs != 0.5 {
		t.Errorf("expected 0.5ms, got %f", status.LastRenderMs)
	}
	if status.Error == "" {
		t.Error("expected error in status")
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `sinetone_frames_total{stream="stream-1"} 8192`) {
		t.Errorf("metrics missing frames counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServerCORS(t *testing.T) {
	srv := httptest.NewServer(NewServer(New(), nil).Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://dashboard.local")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}

func TestServerStartShutdown(t *testing.T) {
	s := NewServer(New(), nil)
	if err := s.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.Addr() == nil {
		t.Fatal("expected bound address")
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	resp.Body.Close()

	if err := s.Shutdown(t.Context()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
