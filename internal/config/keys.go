package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the Claude analyzer is selected without credentials.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// KeySource represents where analyzer credentials come from.
type KeySource string

const (
	KeySourceEnv     KeySource = "environment"
	KeySourceConfig  KeySource = "config_file"
	KeySourceBedrock KeySource = "aws_bedrock"
	KeySourceNone    KeySource = "none"
)

// GetAPIKey returns the Anthropic API key, checking the environment before
// the config file. Unexpanded ${VAR} references count as unset.
func GetAPIKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if cfg != nil {
		if key := os.ExpandEnv(cfg.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}
	return "", ErrNoAPIKey
}

// GetAPIKeySource reports where the analyzer will get its credentials.
func GetAPIKeySource(cfg *Config) KeySource {
	if cfg != nil && cfg.Analyzer.Bedrock {
		return KeySourceBedrock
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}
	if _, err := GetAPIKey(cfg); err == nil {
		return KeySourceConfig
	}
	return KeySourceNone
}

// ValidateAPIKey performs a format check without calling the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
