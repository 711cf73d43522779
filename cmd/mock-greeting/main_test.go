package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/greeting-e2e/greeting"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("MOCK_GREETING_PORT", "")

	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.port != 8080 {
		t.Errorf("port: expected 8080, got %d", opts.port)
	}
	if opts.failEvery != 0 || opts.dropEvery != 0 || opts.foreign != 0 {
		t.Errorf("expected no faults by default, got %+v", opts)
	}
}

func TestParseFlags_Faults(t *testing.T) {
	opts, err := parseFlags([]string{"-fail-every", "3", "-drop-every", "4", "-foreign", "2", "-log-delay", "250ms"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.failEvery != 3 || opts.dropEvery != 4 || opts.foreign != 2 {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.logDelay != 250*time.Millisecond {
		t.Errorf("log-delay: expected 250ms, got %s", opts.logDelay)
	}
}

func TestParseFlags_EnvPort(t *testing.T) {
	t.Setenv("MOCK_GREETING_PORT", "9090")

	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.port != 9090 {
		t.Errorf("port: expected 9090 from env, got %d", opts.port)
	}

	// Flag wins over env
	opts, err = parseFlags([]string{"-port", "7070"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.port != 7070 {
		t.Errorf("port: expected 7070 from flag, got %d", opts.port)
	}
}

func TestParseFlags_Invalid(t *testing.T) {
	t.Setenv("MOCK_GREETING_PORT", "")

	for _, args := range [][]string{
		{"-fail-every", "-1"},
		{"-seed", "-2"},
		{"-port", "http"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}

	t.Setenv("MOCK_GREETING_PORT", "eighty")
	if _, err := parseFlags(nil); err == nil {
		t.Error("expected error for non-numeric MOCK_GREETING_PORT")
	}
}

func TestNewService_SeedAndFaults(t *testing.T) {
	opts := &options{failEvery: 2, seed: 3}
	svc := newService(opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := svc.Handler()

	// Seeded entries are visible before any send
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/log/last", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/log/last: status %d", w.Code)
	}
	var last greeting.LogEntry
	if err := json.NewDecoder(w.Body).Decode(&last); err != nil {
		t.Fatalf("decode last entry: %v", err)
	}
	if last.ID != 3 {
		t.Errorf("last id: expected 3, got %d", last.ID)
	}

	body := `{"externalReference":"r","to":"a","from":"b","heading":"c","message":"d"}`
	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/greeting", strings.NewReader(body)))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusServiceUnavailable {
		t.Errorf("expected [200 503], got %v", codes)
	}
}
