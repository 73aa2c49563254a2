package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if len(cfg.Capture.Viewports) != 3 {
		t.Errorf("expected 3 default viewports, got %v", cfg.Capture.Viewports)
	}
	if cfg.Capture.Viewports[0] != "desktop:1920x1080" {
		t.Errorf("expected desktop:1920x1080 first, got %q", cfg.Capture.Viewports[0])
	}
	if cfg.Capture.MaxConcurrency != 4 {
		t.Errorf("expected max_concurrency 4, got %d", cfg.Capture.MaxConcurrency)
	}
	if cfg.Validation.Threshold != 0.85 {
		t.Errorf("expected threshold 0.85, got %v", cfg.Validation.Threshold)
	}
	if cfg.Store.MaxFiles != 50 {
		t.Errorf("expected max_files 50, got %d", cfg.Store.MaxFiles)
	}
	if cfg.Store.Dir != filepath.Join(".vizguard", "temp-screenshots") {
		t.Errorf("unexpected store dir %q", cfg.Store.Dir)
	}
	if cfg.Analyzer.Type != "heuristic" {
		t.Errorf("expected heuristic analyzer, got %q", cfg.Analyzer.Type)
	}
	if cfg.Automation.Propagator != "log" {
		t.Errorf("expected log propagator, got %q", cfg.Automation.Propagator)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
capture:
  viewports:
    - wide:2560x1440
    - phone:390x844
  max_concurrency: 2
  timeout: 90s
  stealth: true
validation:
  threshold: 0.9
store:
  max_files: 10
designs:
  dirs: [mockups]
analyzer:
  type: claude
  bedrock: true
  region: us-west-2
automation:
  auto_propagate: true
  propagator: kafka
  brokers: [localhost:9092]
anthropic:
  api_key: test-key
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	vps, err := cfg.ViewportSpecs()
	if err != nil {
		t.Fatalf("ViewportSpecs: %v", err)
	}
	if len(vps) != 2 || vps[0].Name != "wide" || vps[1].Width != 390 {
		t.Errorf("unexpected viewports %+v", vps)
	}
	if cfg.Capture.MaxConcurrency != 2 {
		t.Errorf("expected max_concurrency 2, got %d", cfg.Capture.MaxConcurrency)
	}
	if cfg.Capture.Timeout != 90*time.Second {
		t.Errorf("expected timeout 90s, got %v", cfg.Capture.Timeout)
	}
	if !cfg.Capture.Stealth {
		t.Error("expected stealth to be true")
	}
	if cfg.Capture.SettleDelay != 500*time.Millisecond {
		t.Errorf("expected default settle delay, got %v", cfg.Capture.SettleDelay)
	}
	if cfg.Validation.Threshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Validation.Threshold)
	}
	if cfg.Store.MaxFiles != 10 {
		t.Errorf("expected max_files 10, got %d", cfg.Store.MaxFiles)
	}
	if len(cfg.Designs.Dirs) != 1 || cfg.Designs.Dirs[0] != "mockups" {
		t.Errorf("unexpected design dirs %v", cfg.Designs.Dirs)
	}
	if cfg.Analyzer.Type != "claude" || !cfg.Analyzer.Bedrock || cfg.Analyzer.Region != "us-west-2" {
		t.Errorf("unexpected analyzer config %+v", cfg.Analyzer)
	}
	if !cfg.Automation.AutoPropagate || cfg.Automation.Propagator != "kafka" {
		t.Errorf("unexpected automation config %+v", cfg.Automation)
	}
	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("validation:\n  threshold: 0.9\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("VIZGUARD_VALIDATION_THRESHOLD", "0.75")
	t.Setenv("VIZGUARD_STORE_MAX_FILES", "7")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Validation.Threshold != 0.75 {
		t.Errorf("expected env threshold 0.75, got %v", cfg.Validation.Threshold)
	}
	if cfg.Store.MaxFiles != 7 {
		t.Errorf("expected env max_files 7, got %d", cfg.Store.MaxFiles)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := map[string]string{
		"threshold":            "validation:\n  threshold: 1.5\n",
		"analyzer":             "analyzer:\n  type: magic\n",
		"propagator":           "automation:\n  propagator: fax\n",
		"viewport":             "capture:\n  viewports: [watch]\n",
		"store fits":           "capture:\n  viewports: [desktop, tablet, mobile]\nstore:\n  max_files: 2\n",
		"max files":            "store:\n  max_files: 0\n",
		"pixel threshold zero": "compare:\n  pixel_threshold: 0\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("failed to write config file: %v", err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("validation.threshold", "0.95"); err != nil {
		t.Fatalf("Set threshold: %v", err)
	}
	if got, _ := cfg.Get("validation.threshold"); got != "0.95" {
		t.Errorf("Get threshold = %q", got)
	}

	if err := cfg.Set("capture.timeout", "2m"); err != nil {
		t.Fatalf("Set timeout: %v", err)
	}
	if got, _ := cfg.Get("capture.timeout"); got != "2m0s" {
		t.Errorf("Get timeout = %q", got)
	}

	if err := cfg.Set("designs.dirs", "a, b"); err != nil {
		t.Fatalf("Set dirs: %v", err)
	}
	if got, _ := cfg.Get("designs.dirs"); got != "a,b" {
		t.Errorf("Get dirs = %q", got)
	}

	if err := cfg.Set("capture.stealth", "maybe"); err == nil {
		t.Error("expected error for bad boolean")
	}
	if err := cfg.Set("analyzer.type", "oracle"); err == nil {
		t.Error("expected validation error for unknown analyzer")
	}
	if _, err := cfg.Get("no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}

	cfg.Anthropic.APIKey = "sk-ant-api03-abcdefghijkl"
	if got, _ := cfg.Get("anthropic.api_key"); got != "sk-ant-...ijkl" {
		t.Errorf("api key not masked: %q", got)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Store.MaxFiles = 12
	cfg.Capture.Timeout = 45 * time.Second
	cfg.Automation.Brokers = []string{"a:9092", "b:9092"}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Store.MaxFiles != 12 {
		t.Errorf("max_files = %d", loaded.Store.MaxFiles)
	}
	if loaded.Capture.Timeout != 45*time.Second {
		t.Errorf("timeout = %v", loaded.Capture.Timeout)
	}
	if len(loaded.Automation.Brokers) != 2 {
		t.Errorf("brokers = %v", loaded.Automation.Brokers)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := filepath.Join("/custom/config", "vizguard")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
