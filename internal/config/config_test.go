package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Analysis.Workers != 4 {
		t.Errorf("Analysis.Workers = %v, want 4", cfg.Analysis.Workers)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}

	// Test display defaults
	if cfg.Display.DistanceUnit != "km" {
		t.Errorf("Display.DistanceUnit = %q, want %q", cfg.Display.DistanceUnit, "km")
	}
	if cfg.Display.PaceUnit != "min/km" {
		t.Errorf("Display.PaceUnit = %q, want %q", cfg.Display.PaceUnit, "min/km")
	}

	// Strava config should be empty by default
	if cfg.Strava.ClientID != "" {
		t.Errorf("Strava.ClientID should be empty, got %q", cfg.Strava.ClientID)
	}
	if cfg.Sentry.DSN != "" {
		t.Errorf("Sentry.DSN should be empty, got %q", cfg.Sentry.DSN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestThresholds(t *testing.T) {
	cfg := DefaultConfig()
	th := cfg.Thresholds()
	if th.VisualizationPoints != 500 || th.ThumbnailPoints != 50 {
		t.Errorf("budgets = %d/%d, want 500/50", th.VisualizationPoints, th.ThumbnailPoints)
	}

	cfg.Analysis.MedianWindowS = 21
	cfg.Analysis.WorkEnterZ = 0.8
	th = cfg.Thresholds()
	if th.MedianWindowS != 21 {
		t.Errorf("MedianWindowS = %v, want 21", th.MedianWindowS)
	}
	if th.WorkEnterZ != 0.8 {
		t.Errorf("WorkEnterZ = %v, want 0.8", th.WorkEnterZ)
	}
	if th.DwellS != 20 {
		t.Errorf("DwellS = %v, want default 20", th.DwellS)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{
			name:   "valid config",
			modify: func(*Config) {},
		},
		{
			name:        "inverted hysteresis",
			modify:      func(c *Config) { c.Analysis.WorkEnterZ = -0.5 },
			errContains: "work_exit_z",
		},
		{
			name:        "negative dwell",
			modify:      func(c *Config) { c.Analysis.DwellS = -1 },
			errContains: "dwell_s",
		},
		{
			name:        "negative min segment",
			modify:      func(c *Config) { c.Analysis.MinSegmentS = -5 },
			errContains: "min_segment_s",
		},
		{
			name:        "thumbnail larger than visualization",
			modify:      func(c *Config) { c.Analysis.ThumbnailPoints = 600 },
			errContains: "thumbnail_points",
		},
		{
			name:        "budget below two",
			modify:      func(c *Config) { c.Analysis.ThumbnailPoints = 1 },
			errContains: "at least 2",
		},
		{
			name:        "unknown log level",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			errContains: "logging.level",
		},
		{
			name:        "unknown log format",
			modify:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "logging.format",
		},
		{
			name:        "bad distance unit",
			modify:      func(c *Config) { c.Display.DistanceUnit = "yd" },
			errContains: "distance_unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestValidateStrava(t *testing.T) {
	tests := []struct {
		name        string
		strava      StravaConfig
		errContains string
	}{
		{"valid", StravaConfig{ClientID: "12345", ClientSecret: "abc123secret"}, ""},
		{"empty client ID", StravaConfig{ClientSecret: "abc123secret"}, "client_id"},
		{"placeholder client ID", StravaConfig{ClientID: "YOUR_CLIENT_ID", ClientSecret: "abc"}, "client_id"},
		{"empty client secret", StravaConfig{ClientID: "12345"}, "client_secret"},
		{"placeholder refresh token", StravaConfig{ClientID: "1", ClientSecret: "s", RefreshToken: "YOUR_REFRESH_TOKEN"}, "refresh_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Strava: tt.strava}
			err := cfg.ValidateStrava()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %v should contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	if _, err := LoadFrom(path); err != ErrNoConfig {
		t.Fatalf("LoadFrom(missing) error = %v, want ErrNoConfig", err)
	}

	raw := `{"strava": {"client_id": "1"}, "analysis": {"dwell_s": 30}, "logging": {"format": "json"}}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "info" {
		t.Errorf("Logging = %+v, want json/info", cfg.Logging)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("Workers = %d, want default 4", cfg.Analysis.Workers)
	}
	if got := cfg.Thresholds().DwellS; got != 30 {
		t.Errorf("DwellS = %v, want 30", got)
	}

	cfg.Server.Addr = ":9999"
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	again, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom after save: %v", err)
	}
	if again.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want %q", again.Server.Addr, ":9999")
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Config{Store: StoreConfig{Path: "/tmp/x.db"}}
	got, err := cfg.DatabasePath()
	if err != nil || got != "/tmp/x.db" {
		t.Errorf("DatabasePath() = %q, %v", got, err)
	}

	cfg.Store.Path = ""
	got, err = cfg.DatabasePath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "data.db" || filepath.Base(filepath.Dir(got)) != ".runstream" {
		t.Errorf("DatabasePath() = %q, want ~/.runstream/data.db", got)
	}
}

func TestCreateExampleAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if err := CreateExampleAt(path); err != nil {
		t.Fatalf("CreateExampleAt() error = %v", err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Strava.ClientID != "YOUR_CLIENT_ID" {
		t.Errorf("Strava.ClientID = %q, want placeholder", cfg.Strava.ClientID)
	}
	if err := cfg.ValidateStrava(); err == nil {
		t.Error("placeholder credentials should not validate")
	}

	// Existing files are left alone
	cfg.Display.DistanceUnit = "mi"
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if err := CreateExampleAt(path); err != nil {
		t.Fatalf("CreateExampleAt() error = %v", err)
	}
	cfg, err = LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Display.DistanceUnit != "mi" {
		t.Errorf("Display.DistanceUnit = %q, want mi", cfg.Display.DistanceUnit)
	}
}
