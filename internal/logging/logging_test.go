package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func useBuffer(t *testing.T, devMode bool) *bytes.Buffer {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	slog.SetDefault(New(&buf, slog.LevelDebug, devMode))
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup(t *testing.T) {
	old := slog.Default()
	defer slog.SetDefault(old)

	if err := Setup("info", false); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := Setup("nope", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewProdModeIsJSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, false).Info("prod test", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "prod test" || rec["k"] != "v" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, true)
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn should be logged")
	}
}

func TestContextRequestID(t *testing.T) {
	buf := useBuffer(t, true)

	slog.InfoContext(WithRequestID(context.Background(), "abc-123"), "with id")
	slog.Info("without id")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "request_id=abc-123") {
		t.Errorf("expected request_id in %q", lines[0])
	}
	if strings.Contains(lines[1], "request_id") {
		t.Errorf("unexpected request_id in %q", lines[1])
	}
	if RequestIDFrom(context.Background()) != "" {
		t.Error("expected empty request ID without one set")
	}
}

func TestRequestLogger(t *testing.T) {
	buf := useBuffer(t, true)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/visits", nil)
	rec := httptest.NewRecorder()
	RequestLogger(inner).ServeHTTP(rec, req)

	output := buf.String()
	if !strings.Contains(output, "GET") {
		t.Error("expected method in log")
	}
	if !strings.Contains(output, "/api/visits") {
		t.Error("expected path in log")
	}
	if seen == "" {
		t.Fatal("expected request ID in handler context")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header %q, want %q", rec.Header().Get(RequestIDHeader), seen)
	}
	if !strings.Contains(output, "request_id="+seen) {
		t.Errorf("expected request ID in log: %s", output)
	}
}

func TestRequestLoggerKeepsIncomingID(t *testing.T) {
	useBuffer(t, true)
	const id = "7d444840-9dc0-11d1-b245-5ffdce74fad2"

	req := httptest.NewRequest("GET", "/api/tours", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	RequestLogger(http.NotFoundHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Errorf("request ID = %q, want %q", got, id)
	}

	req = httptest.NewRequest("GET", "/api/tours", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	RequestLogger(http.NotFoundHandler()).ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got == "not-a-uuid" || got == "" {
		t.Errorf("malformed request ID should be replaced, got %q", got)
	}
}

func TestRequestLoggerSkipsHealth(t *testing.T) {
	buf := useBuffer(t, true)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	if buf.Len() > 0 {
		t.Error("expected no log for /health path")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}
	for _, tt := range tests {
		buf := useBuffer(t, true)
		req := httptest.NewRequest("GET", "/api/x", nil)
		rec := httptest.NewRecorder()
		RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		})).ServeHTTP(rec, req)

		if !strings.Contains(buf.String(), tt.level) {
			t.Errorf("status %d: expected %s in %s", tt.status, tt.level, buf.String())
		}
	}
}
