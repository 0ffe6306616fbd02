package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/evcraddock/hometrace/internal/auth"
)

func statusOutput(t *testing.T) string {
	t.Helper()
	var out bytes.Buffer
	if err := runStatus(t.Context(), &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	return out.String()
}

func TestStatusShortAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HT_API_KEY", "ht_ab")
	t.Setenv("HT_SERVER_URL", "http://127.0.0.1:1")

	out := statusOutput(t)
	if !strings.Contains(out, "API Key: ht_ab…") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "cannot reach server") {
		t.Errorf("output = %q, want unreachable", out)
	}
}

func TestStatusNoAPIKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HT_API_KEY", "")
	t.Setenv("HT_SERVER_URL", "http://localhost:9999")

	if out := statusOutput(t); !strings.Contains(out, "not configured") {
		t.Errorf("output = %q", out)
	}
}

func TestStatusWithServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/me" || r.Header.Get("Authorization") != "Bearer ht_validkey1234567890abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&auth.User{ID: 1, Email: "rita@example.com", Role: auth.RoleRealtor}); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("HT_API_KEY", "ht_validkey1234567890abc")
	t.Setenv("HT_SERVER_URL", srv.URL)

	out := statusOutput(t)
	if !strings.Contains(out, "rita@example.com (realtor)") || !strings.Contains(out, "✓ connected") {
		t.Errorf("output = %q", out)
	}
}

func TestStatusWithInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("HT_API_KEY", "ht_badkey1234567890abcde")
	t.Setenv("HT_SERVER_URL", srv.URL)

	if out := statusOutput(t); !strings.Contains(out, "invalid API key") {
		t.Errorf("output = %q", out)
	}
}
