package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/hometrace/internal/auth"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "ht_abc123def456", false},
		{"empty key", "", true},
		{"missing prefix", "abc123def456", true},
		{"wrong prefix", "xx_abc123", true},
		{"just prefix", "ht_", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAPIKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAPIKey(%q) err = %v, wantErr = %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

// loginServer accepts CLI login requests and authenticates goodKey.
func loginServer(t *testing.T, goodKey string, requested *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cli/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*requested = body["email"]
			w.WriteHeader(http.StatusAccepted)
		case "/api/me":
			if r.Header.Get("Authorization") != "Bearer "+goodKey {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"invalid API key"}}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(&auth.User{ID: 1, Email: "buyer@example.com", Role: auth.RoleBuyer})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginWithEmailPrompt(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var requested string
	srv := loginServer(t, "ht_goodkey", &requested)

	var out bytes.Buffer
	in := strings.NewReader("buyer@example.com\nht_goodkey\n")
	require.NoError(t, runLogin(t.Context(), in, &out, srv.URL, "", ""))

	assert.Equal(t, "buyer@example.com", requested)
	assert.Contains(t, out.String(), "Logged in as buyer@example.com (buyer)")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ht_goodkey", cfg.APIKey)
	assert.Equal(t, srv.URL, cfg.ServerURL)
}

func TestLoginWithKeyFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var requested string
	srv := loginServer(t, "ht_goodkey", &requested)

	var out bytes.Buffer
	require.NoError(t, runLogin(t.Context(), strings.NewReader(""), &out, srv.URL, "", "ht_goodkey"))
	assert.Empty(t, requested, "no login link should be requested")
}

func TestLoginRejectedKeyIsNotSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var requested string
	srv := loginServer(t, "ht_goodkey", &requested)

	err := runLogin(t.Context(), strings.NewReader(""), &bytes.Buffer{}, srv.URL, "", "ht_wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API key")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.APIKey)
}
