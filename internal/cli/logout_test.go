package cli

import (
	"bytes"
	"testing"
)

func TestLogoutClearsKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := CLIConfig{APIKey: "ht_testkey123", ServerURL: "http://myhost:9090"}
	if err := saveConfig(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out bytes.Buffer
	if err := runLogout(&out); err != nil {
		t.Fatalf("logout: %v", err)
	}

	loaded, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.APIKey != "" {
		t.Errorf("api_key = %q, want empty after logout", loaded.APIKey)
	}
	if loaded.ServerURL != "http://myhost:9090" {
		t.Errorf("server_url = %q, want preserved after logout", loaded.ServerURL)
	}
}

func TestLogoutWhenNotLoggedIn(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	if err := runLogout(&out); err != nil {
		t.Fatalf("logout with no config: %v", err)
	}
	if out.String() != "Not logged in.\n" {
		t.Errorf("output = %q", out.String())
	}
}
