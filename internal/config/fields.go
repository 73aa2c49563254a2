package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field maps a dot-notation key onto a Config value.
type field struct {
	key string
	// raw returns the value in the form viper stores it.
	raw func(c *Config) any
	// set parses s into the Config.
	set func(c *Config, s string) error
}

func stringField(key string, p func(c *Config) *string) field {
	return field{
		key: key,
		raw: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error { *p(c) = s; return nil },
	}
}

func intField(key string, p func(c *Config) *int) field {
	return field{
		key: key,
		raw: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid integer for %s: %w", key, err)
			}
			*p(c) = n
			return nil
		},
	}
}

func floatField(key string, p func(c *Config) *float64) field {
	return field{
		key: key,
		raw: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid number for %s: %w", key, err)
			}
			*p(c) = f
			return nil
		},
	}
}

func boolField(key string, p func(c *Config) *bool) field {
	return field{
		key: key,
		raw: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("invalid boolean for %s: %w", key, err)
			}
			*p(c) = b
			return nil
		},
	}
}

func durationField(key string, p func(c *Config) *time.Duration) field {
	return field{
		key: key,
		raw: func(c *Config) any { return p(c).String() },
		set: func(c *Config, s string) error {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid duration for %s: %w", key, err)
			}
			*p(c) = d
			return nil
		},
	}
}

// listField accepts comma-separated values.
func listField(key string, p func(c *Config) *[]string) field {
	return field{
		key: key,
		raw: func(c *Config) any { return *p(c) },
		set: func(c *Config, s string) error {
			var out []string
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			*p(c) = out
			return nil
		},
	}
}

var fields = []field{
	listField("capture.viewports", func(c *Config) *[]string { return &c.Capture.Viewports }),
	intField("capture.max_concurrency", func(c *Config) *int { return &c.Capture.MaxConcurrency }),
	durationField("capture.timeout", func(c *Config) *time.Duration { return &c.Capture.Timeout }),
	stringField("capture.remote_url", func(c *Config) *string { return &c.Capture.RemoteURL }),
	stringField("capture.bin_path", func(c *Config) *string { return &c.Capture.BinPath }),
	boolField("capture.stealth", func(c *Config) *bool { return &c.Capture.Stealth }),
	durationField("capture.settle_delay", func(c *Config) *time.Duration { return &c.Capture.SettleDelay }),
	floatField("validation.threshold", func(c *Config) *float64 { return &c.Validation.Threshold }),
	stringField("store.dir", func(c *Config) *string { return &c.Store.Dir }),
	intField("store.max_files", func(c *Config) *int { return &c.Store.MaxFiles }),
	stringField("reports.dir", func(c *Config) *string { return &c.Reports.Dir }),
	boolField("reports.html", func(c *Config) *bool { return &c.Reports.HTML }),
	listField("designs.dirs", func(c *Config) *[]string { return &c.Designs.Dirs }),
	floatField("compare.pixel_threshold", func(c *Config) *float64 { return &c.Compare.PixelThreshold }),
	stringField("compare.diff_dir", func(c *Config) *string { return &c.Compare.DiffDir }),
	stringField("analyzer.type", func(c *Config) *string { return &c.Analyzer.Type }),
	stringField("analyzer.model", func(c *Config) *string { return &c.Analyzer.Model }),
	boolField("analyzer.bedrock", func(c *Config) *bool { return &c.Analyzer.Bedrock }),
	stringField("analyzer.region", func(c *Config) *string { return &c.Analyzer.Region }),
	stringField("analyzer.profile", func(c *Config) *string { return &c.Analyzer.Profile }),
	boolField("automation.auto_propagate", func(c *Config) *bool { return &c.Automation.AutoPropagate }),
	stringField("automation.propagator", func(c *Config) *string { return &c.Automation.Propagator }),
	stringField("automation.queue_dir", func(c *Config) *string { return &c.Automation.QueueDir }),
	listField("automation.brokers", func(c *Config) *[]string { return &c.Automation.Brokers }),
	stringField("automation.topic", func(c *Config) *string { return &c.Automation.Topic }),
	stringField("anthropic.api_key", func(c *Config) *string { return &c.Anthropic.APIKey }),
	stringField("log.level", func(c *Config) *string { return &c.Log.Level }),
	stringField("log.file", func(c *Config) *string { return &c.Log.File }),
}

func lookup(key string) (field, bool) {
	key = strings.ToLower(key)
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Keys returns every configuration key in display order.
func Keys() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.key
	}
	return out
}

// Get returns the display value of a dot-notation key. The API key is masked.
func (c *Config) Get(key string) (string, error) {
	f, ok := lookup(key)
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	if f.key == "anthropic.api_key" {
		return MaskAPIKey(c.Anthropic.APIKey), nil
	}
	switch v := f.raw(c).(type) {
	case []string:
		return strings.Join(v, ","), nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Set parses value into the field named by key and revalidates.
func (c *Config) Set(key, value string) error {
	f, ok := lookup(key)
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err := f.set(c, value); err != nil {
		return err
	}
	return c.Validate()
}
