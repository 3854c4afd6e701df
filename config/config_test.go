package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("SOURCE_CHANNEL_ID", "-1002654782182")
	t.Setenv("PUBLIC_CHANNEL_ID", "-1002796610784")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"MATCH_THRESHOLD", "RETENTION_WINDOW", "INDEX_WINDOW", "INDEX_MARKER", "INDEX_REFRESH_INTERVAL", "MAX_CONCURRENT_UPDATES", "DB_DSN", "HTTP_ADDR", "SERVICE_VERSION", "OTEL_TRACE_SAMPLE_RATIO"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MatchThreshold != 65 {
		t.Errorf("MatchThreshold = %d, want 65", cfg.MatchThreshold)
	}
	if cfg.RetentionWindow != 3*time.Hour {
		t.Errorf("RetentionWindow = %v, want 3h", cfg.RetentionWindow)
	}
	if cfg.IndexWindow != 100 {
		t.Errorf("IndexWindow = %d, want 100", cfg.IndexWindow)
	}
	if cfg.IndexMarker != "🎬" {
		t.Errorf("IndexMarker = %q, want 🎬", cfg.IndexMarker)
	}
	if cfg.IndexRefreshInterval != 0 {
		t.Errorf("IndexRefreshInterval = %v, want 0", cfg.IndexRefreshInterval)
	}
	if cfg.MaxConcurrentUpdates != 1 {
		t.Errorf("MaxConcurrentUpdates = %d, want 1", cfg.MaxConcurrentUpdates)
	}
	if cfg.DBDsn == "" || cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected defaults dsn=%q addr=%q", cfg.DBDsn, cfg.HTTPAddr)
	}
	if cfg.SourceChannelID != -1002654782182 || cfg.PublicChannelID != -1002796610784 {
		t.Errorf("unexpected channel ids %d %d", cfg.SourceChannelID, cfg.PublicChannelID)
	}
	if cfg.ServiceVersion != "dev" || cfg.TraceSampleRatio != 1 {
		t.Errorf("unexpected tracing defaults version=%q ratio=%g", cfg.ServiceVersion, cfg.TraceSampleRatio)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MATCH_THRESHOLD", "80")
	t.Setenv("RETENTION_WINDOW", "90m")
	t.Setenv("INDEX_REFRESH_INTERVAL", "1h")
	t.Setenv("MAX_CONCURRENT_UPDATES", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MatchThreshold != 80 || cfg.RetentionWindow != 90*time.Minute || cfg.IndexRefreshInterval != time.Hour || cfg.MaxConcurrentUpdates != 4 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SOURCE_CHANNEL_ID", "not-a-number"},
		{"MATCH_THRESHOLD", "sixty"},
		{"RETENTION_WINDOW", "3 hours"},
		{"OTEL_TRACE_SAMPLE_RATIO", "half"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("SOURCE_CHANNEL_ID", "")
	t.Setenv("PUBLIC_CHANNEL_ID", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error when required envs missing")
	}
	for _, want := range []string{"TELEGRAM_BOT_TOKEN", "SOURCE_CHANNEL_ID", "PUBLIC_CHANNEL_ID"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %s", err, want)
		}
	}
}

func TestValidateSameChannel(t *testing.T) {
	setRequired(t)
	t.Setenv("PUBLIC_CHANNEL_ID", "-1002654782182")
	cfg, _ := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when source and public channels are equal")
	}
}

func TestValidateSampleRatio(t *testing.T) {
	setRequired(t)
	t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "1.5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "OTEL_TRACE_SAMPLE_RATIO") {
		t.Errorf("Validate() error = %v, want sample ratio error", err)
	}
}
