package main

import (
	"os"
	"testing"

	"github.com/Vodeneev/hoopsmomentum/internal/pkg/config"
)

func TestParseGameID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseGameID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseGameID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestLoadConfig_StorageOverride(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("STORAGE_DRIVER", "")

	if _, err := loadConfig(&globalFlags{}); err == nil {
		t.Error("postgres without DSN should fail validation")
	}

	cfg, err := loadConfig(&globalFlags{storage: config.DriverMemory})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != config.DriverMemory {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		t.Errorf("STORAGE_DRIVER = %q, flag must not leak into the environment", v)
	}
	if _, err := loadConfig(&globalFlags{}); err == nil {
		t.Error("override applied to a later load without the flag")
	}
}

func TestNewApp_MemoryWiring(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("REDIS_ADDR", "")

	a, err := newApp(&globalFlags{storage: config.DriverMemory}, true)
	if err != nil {
		t.Fatal(err)
	}
	defer a.close()
	if a.orch == nil || a.store == nil {
		t.Fatal("app not wired")
	}
}
