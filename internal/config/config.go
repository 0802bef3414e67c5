package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the config file name inside the data directory.
const ConfigFile = "config.yaml"

// Config holds all configuration for a scan.
type Config struct {
	DataDir  string         `yaml:"data_dir" validate:"required"`
	Models   ModelsConfig   `yaml:"models"`
	Collect  CollectConfig  `yaml:"collect"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelsConfig configures the narrative providers.
type ModelsConfig struct {
	Claude    ModelSettings `yaml:"claude"`
	OpenAI    ModelSettings `yaml:"openai"`
	Preferred string        `yaml:"preferred" validate:"omitempty,oneof=claude openai"`
}

// ModelSettings holds settings for a single provider.
type ModelSettings struct {
	Enabled  bool   `yaml:"enabled"`
	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	Model    string `yaml:"model,omitempty"`
	Priority int    `yaml:"priority" validate:"gte=0"`
}

// CollectConfig configures the collectors and their shared call budget.
type CollectConfig struct {
	Sources         []string `yaml:"sources" validate:"dive,oneof=news jobs propublica fec"`
	MaxAPICalls     int      `yaml:"max_api_calls" validate:"gte=1,lte=500"`
	RequestTimeout  int      `yaml:"request_timeout_seconds" validate:"gte=1,lte=300"`
	MinCallInterval int      `yaml:"min_call_interval_ms" validate:"gte=0,lte=60000"`
	MaxRetries      int      `yaml:"max_retries" validate:"gte=0,lte=10"`
	NewsEndpoint    string   `yaml:"news_endpoint,omitempty" validate:"omitempty,url"`
	NewsQueries     []string `yaml:"news_queries,omitempty"`
	RemotiveFeeds   []string `yaml:"remotive_feeds,omitempty" validate:"dive,url"`
	USAJobsKey      string   `yaml:"usajobs_api_key,omitempty"`
	USAJobsEmail    string   `yaml:"usajobs_email,omitempty" validate:"omitempty,email"`
	FECKey          string   `yaml:"fec_api_key,omitempty"`
}

// AnalysisConfig configures scoring and the narrative step.
type AnalysisConfig struct {
	Narrative          bool     `yaml:"narrative"`
	NarrativeTimeout   int      `yaml:"narrative_timeout_seconds" validate:"gte=1,lte=600"`
	NarrativeMaxTokens int      `yaml:"narrative_max_tokens" validate:"gte=256,lte=8192"`
	ShellJurisdictions []string `yaml:"shell_jurisdictions" validate:"dive,len=2,uppercase"`
	MetricsFile        string   `yaml:"metrics_file,omitempty"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	ToFile bool   `yaml:"to_file"`
}

var validate = validator.New()

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Models: ModelsConfig{
			Claude: ModelSettings{
				Enabled:  true,
				Model:    "claude-3-haiku-20240307",
				Priority: 1,
			},
			OpenAI: ModelSettings{
				Enabled:  true,
				Model:    "gpt-4o-mini",
				Priority: 2,
			},
		},
		Collect: CollectConfig{
			Sources:         []string{"news", "jobs", "propublica", "fec"},
			MaxAPICalls:     50,
			RequestTimeout:  15,
			MinCallInterval: 250,
			MaxRetries:      2,
		},
		Analysis: AnalysisConfig{
			Narrative:          true,
			NarrativeTimeout:   60,
			NarrativeMaxTokens: 1500,
			ShellJurisdictions: []string{"DE", "WY", "NV"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			ToFile: true,
		},
	}
}

// DefaultDataDir returns ~/.astroscan, or ./.astroscan when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".astroscan"
	}
	return filepath.Join(home, ".astroscan")
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, ConfigFile)
}

// Load reads the config at path, layering it over defaults. A missing file
// yields defaults. Environment keys are applied and the result validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.AutoPopulateFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks field constraints and reports every failing field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// AutoPopulateFromEnv fills keys that are unset in the file from the
// environment. Keys in the file win.
func (c *Config) AutoPopulateFromEnv() {
	setIfEmpty := func(dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, n := range names {
			if v := os.Getenv(n); v != "" {
				*dst = v
				return
			}
		}
	}
	setIfEmpty(&c.Models.Claude.APIKey, "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	setIfEmpty(&c.Models.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&c.Models.OpenAI.Endpoint, "OPENAI_BASE_URL")
	setIfEmpty(&c.Collect.FECKey, "FEC_API_KEY")
	setIfEmpty(&c.Collect.USAJobsKey, "USAJOBS_API_KEY")
	setIfEmpty(&c.Collect.USAJobsEmail, "USAJOBS_EMAIL")
}

// LoadKeysFromFile loads KEY=value pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadKeysFromFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SourceEnabled reports whether the named collector should run.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.Collect.Sources {
		if s == name {
			return true
		}
	}
	return false
}

// RequestTimeoutDuration returns the per-request HTTP timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.Collect.RequestTimeout) * time.Second
}

// MinCallIntervalDuration returns the spacing between collector calls.
func (c *Config) MinCallIntervalDuration() time.Duration {
	return time.Duration(c.Collect.MinCallInterval) * time.Millisecond
}

// NarrativeTimeoutDuration returns the narrative step timeout.
func (c *Config) NarrativeTimeoutDuration() time.Duration {
	return time.Duration(c.Analysis.NarrativeTimeout) * time.Second
}

// EnabledModel names a provider that is enabled and has a key.
type EnabledModel struct {
	Name     string
	Settings ModelSettings
}

// GetEnabledModels returns enabled providers with keys, lowest priority
// first, with the preferred provider moved to the front.
func (c *Config) GetEnabledModels() []EnabledModel {
	var models []EnabledModel
	if c.Models.Claude.Enabled && c.Models.Claude.APIKey != "" {
		models = append(models, EnabledModel{Name: "claude", Settings: c.Models.Claude})
	}
	if c.Models.OpenAI.Enabled && c.Models.OpenAI.APIKey != "" {
		models = append(models, EnabledModel{Name: "openai", Settings: c.Models.OpenAI})
	}
	sort.SliceStable(models, func(i, j int) bool {
		pi, pj := models[i].Name == c.Models.Preferred, models[j].Name == c.Models.Preferred
		if pi != pj {
			return pi
		}
		return models[i].Settings.Priority < models[j].Settings.Priority
	})
	return models
}
