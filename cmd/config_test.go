package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckConfigTemplate(t *testing.T) {
	if err := checkConfigTemplate(initConfigTemplate); err != nil {
		t.Fatalf("expected starter template to parse: %v", err)
	}
	if err := checkConfigTemplate("server:\n  port: 1\n"); err == nil {
		t.Fatalf("expected missing sections to fail")
	}
}

func TestInitWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root := NewRootCmd()
	root.SetArgs([]string{"init", "--config", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if string(data) != initConfigTemplate {
		t.Fatalf("unexpected config contents")
	}

	root = NewRootCmd()
	root.SetArgs([]string{"init", "--config", path})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected existing config to be kept without --force")
	}
	root = NewRootCmd()
	root.SetArgs([]string{"init", "--config", path, "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "SETUP_SECRET", "META_PIXEL_ID", "META_ACCESS_TOKEN", "META_TEST_EVENT_CODE",
		"GA4_MEASUREMENT_ID", "GA4_API_SECRET", "GHL_API_KEY", "GHL_LOCATION_ID",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("GA4_MEASUREMENT_ID", "G-1")
	t.Setenv("GA4_API_SECRET", "secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(initConfigTemplate), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	report, err := validateConfig(path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Port != 3001 || report.SetupSecret {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Integrations["ga4"] || report.Integrations["meta_capi"] || report.Integrations["ghl"] {
		t.Fatalf("unexpected integrations: %v", report.Integrations)
	}
	if len(report.Telemetry) != 0 {
		t.Fatalf("expected telemetry disabled, got %v", report.Telemetry)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("telemetry:\n  driver: kafka\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := validateConfig(bad); err == nil {
		t.Fatalf("expected kafka without brokers to fail")
	}
}
