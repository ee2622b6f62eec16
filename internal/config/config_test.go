package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Auth.Enabled {
		t.Error("expected auth disabled by default")
	}
	if cfg.Analysis.WeightScheme != "co_execution" {
		t.Errorf("expected default weight scheme co_execution, got %s", cfg.Analysis.WeightScheme)
	}
	if cfg.Analysis.MaxWindow != 7*24*time.Hour {
		t.Errorf("expected default max window of 7 days, got %s", cfg.Analysis.MaxWindow)
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Analysis.Workers)
	}
	if cfg.Analysis.Penalty != 10 || cfg.Analysis.FleetPenalty != 3 {
		t.Errorf("unexpected penalties: %v, %v", cfg.Analysis.Penalty, cfg.Analysis.FleetPenalty)
	}
	if cfg.Jaeger.URL != "http://localhost:16686" {
		t.Errorf("unexpected Jaeger URL %s", cfg.Jaeger.URL)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address, got %s", cfg.Server.Address)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  address: ":9090"
  mode: release
analysis:
  weight_scheme: frequency
  penalty: 25
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("expected address :9090, got %s", cfg.Server.Address)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("expected release mode, got %s", cfg.Server.Mode)
	}
	if cfg.Analysis.WeightScheme != "frequency" {
		t.Errorf("expected frequency scheme, got %s", cfg.Analysis.WeightScheme)
	}
	if cfg.Analysis.Penalty != 25 {
		t.Errorf("expected penalty 25, got %v", cfg.Analysis.Penalty)
	}
	// Untouched keys keep their defaults.
	if cfg.Analysis.Workers != 8 {
		t.Errorf("expected default workers, got %d", cfg.Analysis.Workers)
	}
}
