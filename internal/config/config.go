package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/calorie-analyzer/pkg/processing"
	"github.com/menta2k/calorie-analyzer/pkg/readiness"
)

// Supported provider names
const (
	ProviderGemini    = "gemini"
	ProviderGeminiSDK = "gemini-sdk"
	ProviderOllama    = "ollama"
	ProviderLlamaCpp  = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Provider   ProviderConfig   `json:"provider" yaml:"provider"`
	Normalizer NormalizerConfig `json:"normalizer" yaml:"normalizer"`
	Readiness  ReadinessConfig  `json:"readiness" yaml:"readiness"`
	Prompt     string           `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Debug      bool             `json:"debug" yaml:"debug"`
}

// ProviderConfig selects and configures the vision backend
type ProviderConfig struct {
	Name           string `json:"name" yaml:"name"`
	Model          string `json:"model" yaml:"model"` // empty selects the provider default
	URL            string `json:"url,omitempty" yaml:"url,omitempty"`
	APIKey         string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// NormalizerConfig holds the image bounds sent to the model
type NormalizerConfig struct {
	MaxWidth      int `json:"max_width" yaml:"max_width"`
	MaxHeight     int `json:"max_height" yaml:"max_height"`
	Quality       int `json:"quality" yaml:"quality"`
	MaxFileSizeMB int `json:"max_file_size_mb" yaml:"max_file_size_mb"`
}

// ReadinessConfig bounds the wait for the API key
type ReadinessConfig struct {
	PollIntervalMS int `json:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxAttempts    int `json:"max_attempts" yaml:"max_attempts"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:           ProviderGemini,
			APIKey:         readiness.PlaceholderCredential,
			TimeoutSeconds: 60,
		},
		Normalizer: NormalizerConfig{
			MaxWidth:      processing.DefaultMaxWidth,
			MaxHeight:     processing.DefaultMaxHeight,
			Quality:       processing.DefaultQuality,
			MaxFileSizeMB: processing.DefaultMaxFileSize >> 20,
		},
		Readiness: ReadinessConfig{
			PollIntervalMS: int(readiness.DefaultInterval / time.Millisecond),
			MaxAttempts:    readiness.DefaultMaxAttempts,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields missing
// from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename, or the default path when empty, then applies .env and
// environment overrides. A missing file is not an error: defaults are used and
// loaded is false.
func Load(filename string) (config *Config, loaded bool, err error) {
	if filename == "" {
		filename = GetConfigPath()
	}

	config, err = LoadFromFile(filename)
	switch {
	case err == nil:
		loaded = true
	case errors.Is(err, fs.ErrNotExist):
		config = Default()
	default:
		return nil, false, err
	}

	// Load .env file if present (ignore errors)
	_ = godotenv.Load()
	config.ApplyEnv()
	return config, loaded, nil
}

// ApplyEnv overlays values from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CALORIE_PROVIDER"); v != "" {
		c.Provider.Name = v
	}

	c.ApplyProviderEnv()

	if v := os.Getenv("DEBUG_MODE"); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			c.Debug = debug
		}
	}
}

// ApplyProviderEnv overlays the environment variables of the selected provider
func (c *Config) ApplyProviderEnv() {
	switch c.Provider.Name {
	case ProviderGemini, ProviderGeminiSDK:
		if v := os.Getenv("GEMINI_MODEL"); v != "" {
			c.Provider.Model = v
		}
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Provider.APIKey = v
		}
	case ProviderOllama:
		if v := os.Getenv("OLLAMA_URL"); v != "" {
			c.Provider.URL = v
		}
	case ProviderLlamaCpp:
		if v := os.Getenv("LLAMACPP_URL"); v != "" {
			c.Provider.URL = v
		}
		if v := os.Getenv("LLAMACPP_API_KEY"); v != "" {
			c.Provider.APIKey = v
		}
	}
}

// SaveToFile saves configuration as JSON or YAML depending on the extension
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// the file may hold an API key
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid. A missing API key is not a
// validation error; it surfaces from the readiness wait.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderGemini, ProviderGeminiSDK, ProviderOllama, ProviderLlamaCpp:
	default:
		return fmt.Errorf("provider.name must be one of %s, %s, %s, %s",
			ProviderGemini, ProviderGeminiSDK, ProviderOllama, ProviderLlamaCpp)
	}

	if c.Provider.TimeoutSeconds < 0 {
		return fmt.Errorf("provider.timeout_seconds must not be negative")
	}

	if c.Normalizer.MaxWidth < 1 || c.Normalizer.MaxHeight < 1 {
		return fmt.Errorf("normalizer.max_width and normalizer.max_height must be positive")
	}

	if c.Normalizer.Quality < 1 || c.Normalizer.Quality > 100 {
		return fmt.Errorf("normalizer.quality must be between 1 and 100")
	}

	if c.Normalizer.MaxFileSizeMB < 1 {
		return fmt.Errorf("normalizer.max_file_size_mb must be positive")
	}

	if c.Readiness.PollIntervalMS < 1 || c.Readiness.MaxAttempts < 1 {
		return fmt.Errorf("readiness.poll_interval_ms and readiness.max_attempts must be positive")
	}

	return nil
}

// NeedsCredential reports whether the provider requires an API key
func (c *Config) NeedsCredential() bool {
	return c.Provider.Name == ProviderGemini || c.Provider.Name == ProviderGeminiSDK
}

// NormalizerSettings converts the file settings to normalizer bounds
func (c *Config) NormalizerSettings() processing.Config {
	return processing.Config{
		MaxWidth:    c.Normalizer.MaxWidth,
		MaxHeight:   c.Normalizer.MaxHeight,
		Quality:     c.Normalizer.Quality,
		MaxFileSize: int64(c.Normalizer.MaxFileSizeMB) << 20,
	}
}

// ReadinessSettings converts the file settings to gate bounds
func (c *Config) ReadinessSettings() readiness.Config {
	return readiness.Config{
		Interval:    time.Duration(c.Readiness.PollIntervalMS) * time.Millisecond,
		MaxAttempts: c.Readiness.MaxAttempts,
	}
}

// Timeout returns the provider request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if key := out.Provider.APIKey; key != "" && key != readiness.PlaceholderCredential {
		if len(key) > 8 {
			out.Provider.APIKey = "****" + key[len(key)-4:]
		} else {
			out.Provider.APIKey = "****"
		}
	}
	return &out
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "calorie-analyzer", "config.yaml")
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}
