package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/inboxintel/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != config.DefaultDatabaseURL {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, config.DefaultDatabaseURL)
	}
	if cfg.Classifier.Provider != config.ProviderOpenAI {
		t.Errorf("Classifier.Provider = %q, want openai", cfg.Classifier.Provider)
	}
	if cfg.Classifier.Model != "gpt-4-turbo" {
		t.Errorf("Classifier.Model = %q, want gpt-4-turbo", cfg.Classifier.Model)
	}
	if cfg.Polling.Interval != 5*time.Minute || cfg.Polling.Lookback != 10*time.Minute {
		t.Errorf("Polling = %+v, want 5m interval and 10m lookback", cfg.Polling)
	}
	if cfg.Worker.Interval != 30*time.Second {
		t.Errorf("Worker.Interval = %v, want 30s", cfg.Worker.Interval)
	}
	if cfg.Report.Hour != 7 {
		t.Errorf("Report.Hour = %d, want 7", cfg.Report.Hour)
	}
	if cfg.Alert.MinConfidence != 0.7 {
		t.Errorf("Alert.MinConfidence = %v, want 0.7", cfg.Alert.MinConfidence)
	}
	if len(cfg.Alert.Categories) != 4 {
		t.Errorf("Alert.Categories = %v, want 4 defaults", cfg.Alert.Categories)
	}
	if cfg.Backfill.Days != 365 {
		t.Errorf("Backfill.Days = %d, want 365", cfg.Backfill.Days)
	}
	if !cfg.Log.JSON() {
		t.Errorf("Log.JSON() = false, want true for default format")
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://inbox:secret@db:5432/inbox
classifier:
  provider: gemini
  temperature: 0.1
alert:
  categories: [early_checkin, " maintenance_issue "]
  min_confidence: 0.8
`)
	t.Setenv("INBOXINTEL_WORKER_INTERVAL", "1m")
	t.Setenv("INBOXINTEL_NOTIFY_PUSHOVER_TOKEN", "tok")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "postgres://inbox:secret@db:5432/inbox" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Classifier.Provider != config.ProviderGemini || cfg.Classifier.Model != "gemini-2.0-flash" {
		t.Errorf("Classifier = %s/%s, want gemini/gemini-2.0-flash", cfg.Classifier.Provider, cfg.Classifier.Model)
	}
	if cfg.Worker.Interval != time.Minute {
		t.Errorf("Worker.Interval = %v, want 1m from env", cfg.Worker.Interval)
	}
	if cfg.Notify.Pushover.Token != "tok" {
		t.Errorf("Notify.Pushover.Token = %q, want tok from env", cfg.Notify.Pushover.Token)
	}
	want := []string{"EARLY_CHECKIN", "MAINTENANCE_ISSUE"}
	if len(cfg.Alert.Categories) != len(want) {
		t.Fatalf("Alert.Categories = %v, want %v", cfg.Alert.Categories, want)
	}
	for i := range want {
		if cfg.Alert.Categories[i] != want[i] {
			t.Errorf("Alert.Categories[%d] = %q, want %q", i, cfg.Alert.Categories[i], want[i])
		}
	}
}

func TestLoadLegacyProviderString(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "classifier:\n  provider: \"ollama:mistral\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Classifier.Provider != config.ProviderOllama {
		t.Errorf("Provider = %q, want ollama", cfg.Classifier.Provider)
	}
	if cfg.Classifier.Model != "mistral" {
		t.Errorf("Model = %q, want mistral", cfg.Classifier.Model)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown provider", body: "classifier:\n  provider: anthropic\n"},
		{name: "lookback shorter than interval", body: "polling:\n  interval: 10m\n  lookback: 5m\n"},
		{name: "confidence above one", body: "alert:\n  min_confidence: 1.5\n"},
		{name: "unknown alert category", body: "alert:\n  categories: [REFUND]\n"},
		{name: "report hour out of range", body: "report:\n  hour: 24\n"},
		{name: "bad log level", body: "log:\n  level: verbose\n"},
		{name: "backfill days zero", body: "backfill:\n  days: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("Load() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("Load() error = %v, want ErrConfiguration", err)
	}
}

func TestParseProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw       string
		want      config.Provider
		wantModel string
		wantErr   bool
	}{
		{raw: "openai", want: config.ProviderOpenAI},
		{raw: "openai:gpt-4-turbo", want: config.ProviderOpenAI, wantModel: "gpt-4-turbo"},
		{raw: " Ollama:llama3 ", want: config.ProviderOllama, wantModel: "llama3"},
		{raw: "gemini", want: config.ProviderGemini},
		{raw: "", wantErr: true},
		{raw: "claude:opus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, model, err := config.ParseProvider(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProvider(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want || model != tt.wantModel {
				t.Errorf("ParseProvider(%q) = (%q, %q), want (%q, %q)", tt.raw, got, model, tt.want, tt.wantModel)
			}
		})
	}
}
