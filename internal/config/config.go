// Package config handles configuration loading and management for vizguard.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// StateDir is the project-local directory that holds vizguard state.
const StateDir = ".vizguard"

// ProjectConfigName is the project-level override file.
const ProjectConfigName = ".vizguard.yaml"

// Config holds all configuration for vizguard.
type Config struct {
	Capture    CaptureConfig    `mapstructure:"capture"`
	Validation ValidationConfig `mapstructure:"validation"`
	Store      StoreConfig      `mapstructure:"store"`
	Reports    ReportsConfig    `mapstructure:"reports"`
	Designs    DesignsConfig    `mapstructure:"designs"`
	Compare    CompareConfig    `mapstructure:"compare"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Automation AutomationConfig `mapstructure:"automation"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Log        LogConfig        `mapstructure:"log"`
}

// CaptureConfig holds browser capture settings.
type CaptureConfig struct {
	// Viewports are name:WxH entries or preset names captured when no --viewports flag is given.
	Viewports      []string      `mapstructure:"viewports"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	// RemoteURL connects to an existing Chrome DevTools endpoint instead of launching one.
	RemoteURL   string        `mapstructure:"remote_url"`
	BinPath     string        `mapstructure:"bin_path"`
	Stealth     bool          `mapstructure:"stealth"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// ValidationConfig holds scoring settings.
type ValidationConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// StoreConfig holds temp screenshot store settings.
type StoreConfig struct {
	Dir      string `mapstructure:"dir"`
	MaxFiles int    `mapstructure:"max_files"`
}

// ReportsConfig holds report output settings.
type ReportsConfig struct {
	Dir  string `mapstructure:"dir"`
	HTML bool   `mapstructure:"html"`
}

// DesignsConfig lists directories searched for reference designs.
type DesignsConfig struct {
	Dirs []string `mapstructure:"dirs"`
}

// CompareConfig holds comparison engine settings.
type CompareConfig struct {
	PixelThreshold float64 `mapstructure:"pixel_threshold"`
	DiffDir        string  `mapstructure:"diff_dir"`
}

// AnalyzerConfig selects how recommendations are categorized.
type AnalyzerConfig struct {
	// Type is "heuristic" or "claude".
	Type    string `mapstructure:"type"`
	Model   string `mapstructure:"model"`
	Bedrock bool   `mapstructure:"bedrock"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// AutomationConfig controls trigger propagation.
type AutomationConfig struct {
	AutoPropagate bool `mapstructure:"auto_propagate"`
	// Propagator is "log", "queue" or "kafka".
	Propagator string   `mapstructure:"propagator"`
	QueueDir   string   `mapstructure:"queue_dir"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LogConfig holds run log settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (VIZGUARD_*, ANTHROPIC_API_KEY)
// 2. Project config (.vizguard.yaml in current directory or parent)
// 3. User config (~/.config/vizguard/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VIZGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	viewports, err := c.ViewportSpecs()
	if err != nil {
		return fmt.Errorf("capture.viewports: %w", err)
	}
	if c.Capture.MaxConcurrency < 1 {
		return fmt.Errorf("capture.max_concurrency must be at least 1, got %d", c.Capture.MaxConcurrency)
	}
	if c.Capture.Timeout < 0 {
		return fmt.Errorf("capture.timeout must not be negative")
	}
	if c.Validation.Threshold <= 0 || c.Validation.Threshold > 1 {
		return fmt.Errorf("validation.threshold must be within (0,1], got %v", c.Validation.Threshold)
	}
	if c.Store.MaxFiles < 1 {
		return fmt.Errorf("store.max_files must be at least 1, got %d", c.Store.MaxFiles)
	}
	if c.Store.MaxFiles < len(viewports) {
		return fmt.Errorf("store.max_files (%d) must hold one run's %d viewports", c.Store.MaxFiles, len(viewports))
	}
	if c.Compare.PixelThreshold <= 0 || c.Compare.PixelThreshold > 1 {
		return fmt.Errorf("compare.pixel_threshold must be within (0,1], got %v", c.Compare.PixelThreshold)
	}
	switch c.Analyzer.Type {
	case "heuristic", "claude":
	default:
		return fmt.Errorf("analyzer.type must be heuristic or claude, got %q", c.Analyzer.Type)
	}
	switch c.Automation.Propagator {
	case "log", "queue", "kafka":
	default:
		return fmt.Errorf("automation.propagator must be log, queue or kafka, got %q", c.Automation.Propagator)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// ViewportSpecs parses Capture.Viewports.
func (c *Config) ViewportSpecs() ([]models.ViewportSpec, error) {
	return models.ParseViewports(strings.Join(c.Capture.Viewports, ","))
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	for _, f := range fields {
		v.Set(f.key, f.raw(cfg))
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for _, f := range fields {
		v.SetDefault(f.key, f.raw(d))
	}
}

// getUserConfigDir returns the XDG config directory for vizguard.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vizguard")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "vizguard")
	}
	return filepath.Join(home, ".config", "vizguard")
}

// findProjectConfig searches for .vizguard.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	viewports := models.DefaultViewports()
	specs := make([]string, len(viewports))
	for i, vp := range viewports {
		specs[i] = vp.String()
	}

	return &Config{
		Capture: CaptureConfig{
			Viewports:      specs,
			MaxConcurrency: 4,
			Timeout:        60 * time.Second,
			SettleDelay:    500 * time.Millisecond,
		},
		Validation: ValidationConfig{
			Threshold: models.DefaultThreshold,
		},
		Store: StoreConfig{
			Dir:      filepath.Join(StateDir, "temp-screenshots"),
			MaxFiles: 50,
		},
		Reports: ReportsConfig{
			Dir:  filepath.Join(StateDir, "reports"),
			HTML: true,
		},
		Designs: DesignsConfig{
			Dirs: []string{"designs", filepath.Join(StateDir, "designs")},
		},
		Compare: CompareConfig{
			PixelThreshold: 0.1,
			DiffDir:        filepath.Join(StateDir, "diffs"),
		},
		Analyzer: AnalyzerConfig{
			Type: "heuristic",
		},
		Automation: AutomationConfig{
			Propagator: "log",
			QueueDir:   filepath.Join(StateDir, "queue"),
			Topic:      "vizguard.triggers",
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(StateDir, "logs", "vizguard.log"),
		},
	}
}
