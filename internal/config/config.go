package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "NEWS_SCANNER_CONFIG"
	databaseDriver   = "DATABASE_DRIVER"
	databaseDSNEnv   = "DATABASE_DSN"
	httpAddrEnv      = "HTTP_ADDR"
	logLevelEnv      = "LOG_LEVEL"
	mlProviderEnv    = "ML_PROVIDER"
	mlEndpointEnv    = "ML_ENDPOINT"
	mlAPIKeyEnv      = "ML_API_KEY"
	chatGPTAPIKeyEnv = "CHATGPT_API_KEY"
	chatGPTModelEnv  = "CHATGPT_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	ML        MLConfig        `yaml:"ml"`
	ChatGPT   ChatGPTConfig   `yaml:"chatgpt"`
	HTTP      HTTPConfig      `yaml:"http"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// LoggingConfig selects verbosity and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the article store backend ("sqlite" or "postgres").
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines how often sources are polled.
// CronExpression, when set, wins over Interval.
type SchedulerConfig struct {
	Interval             Duration       `yaml:"interval"`
	CronExpression       string         `yaml:"cronExpression"`
	Timezone             string         `yaml:"timezone"`
	SourceTimeout        Duration       `yaml:"sourceTimeout"`
	MaxConcurrentSources int            `yaml:"maxConcurrentSources"`
	ShutdownTimeout      Duration       `yaml:"shutdownTimeout"`
	location             *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Spec returns the cron schedule driving poll cycles.
func (s SchedulerConfig) Spec() string {
	if s.CronExpression != "" {
		return s.CronExpression
	}
	return "@every " + s.Interval.Duration().String()
}

// ScoringConfig carries the label set and recency settings.
type ScoringConfig struct {
	HalfLife  Duration      `yaml:"halfLife"`
	Threshold float64       `yaml:"threshold"`
	Labels    []LabelConfig `yaml:"labels"`
}

// LabelConfig is one weighted category. Keywords feed the keyword model only.
type LabelConfig struct {
	Name       string   `yaml:"name"`
	Hypothesis string   `yaml:"hypothesis"`
	Weight     float64  `yaml:"weight"`
	Keywords   []string `yaml:"keywords"`
}

// MLConfig describes the label model provider: "keyword", "http" or "chatgpt".
type MLConfig struct {
	Provider          string   `yaml:"provider"`
	InferenceURL      string   `yaml:"inferenceUrl"`
	APIKey            string   `yaml:"apiKey"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	DefaultLabel      string   `yaml:"defaultLabel"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible chat API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SourceConfig describes one upstream. Kind is "rss" (default) or "html".
type SourceConfig struct {
	Name       string          `yaml:"name"`
	Kind       string          `yaml:"kind"`
	URL        string          `yaml:"url"`
	Enabled    *bool           `yaml:"enabled"`
	DatePolicy string          `yaml:"datePolicy"`
	Selectors  SelectorsConfig `yaml:"selectors"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// SelectorsConfig holds CSS selectors for html sources.
type SelectorsConfig struct {
	Item       string `yaml:"item"`
	Title      string `yaml:"title"`
	Link       string `yaml:"link"`
	Summary    string `yaml:"summary"`
	Date       string `yaml:"date"`
	DateLayout string `yaml:"dateLayout"`
}

// Duration accepts Go duration strings such as "5m" in YAML.
type Duration time.Duration

// Duration converts back to time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if fileCfg, err := Parse(raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, err
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriver); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(mlProviderEnv); v != "" {
		c.ML.Provider = v
	}

	if v := os.Getenv(mlEndpointEnv); v != "" {
		c.ML.InferenceURL = v
	}

	if v := os.Getenv(mlAPIKeyEnv); v != "" {
		c.ML.APIKey = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.SourceTimeout > 0 {
		base.Scheduler.SourceTimeout = override.Scheduler.SourceTimeout
	}
	if override.Scheduler.MaxConcurrentSources > 0 {
		base.Scheduler.MaxConcurrentSources = override.Scheduler.MaxConcurrentSources
	}
	if override.Scheduler.ShutdownTimeout > 0 {
		base.Scheduler.ShutdownTimeout = override.Scheduler.ShutdownTimeout
	}

	if override.Scoring.HalfLife > 0 {
		base.Scoring.HalfLife = override.Scoring.HalfLife
	}
	if override.Scoring.Threshold > 0 {
		base.Scoring.Threshold = override.Scoring.Threshold
	}
	if len(override.Scoring.Labels) > 0 {
		base.Scoring.Labels = override.Scoring.Labels
	}

	if override.ML.Provider != "" {
		base.ML.Provider = override.ML.Provider
	}
	if override.ML.InferenceURL != "" {
		base.ML.InferenceURL = override.ML.InferenceURL
	}
	if override.ML.APIKey != "" {
		base.ML.APIKey = override.ML.APIKey
	}
	if override.ML.Timeout > 0 {
		base.ML.Timeout = override.ML.Timeout
	}
	if override.ML.RequestsPerSecond > 0 {
		base.ML.RequestsPerSecond = override.ML.RequestsPerSecond
	}
	if override.ML.DefaultLabel != "" {
		base.ML.DefaultLabel = override.ML.DefaultLabel
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}
	if override.ChatGPT.SystemPrompt != "" {
		base.ChatGPT.SystemPrompt = override.ChatGPT.SystemPrompt
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/news.db"},
		Scheduler: SchedulerConfig{
			Interval:             Duration(5 * time.Minute),
			Timezone:             defaultTimezone,
			SourceTimeout:        Duration(2 * time.Minute),
			MaxConcurrentSources: 4,
			ShutdownTimeout:      Duration(30 * time.Second),
			location:             tz,
		},
		Scoring: ScoringConfig{
			HalfLife:  Duration(48 * time.Hour),
			Threshold: 0.5,
			Labels: []LabelConfig{
				{
					Name: "cybersecurity", Hypothesis: "cybersecurity incident or data breach", Weight: 1.0,
					Keywords: []string{"breach", "ransomware", "hack", "attack", "malware", "phishing", "leak", "exploit"},
				},
				{
					Name: "outage", Hypothesis: "system outage or service disruption", Weight: 1.0,
					Keywords: []string{"outage", "down", "disruption", "offline", "unavailable", "degraded"},
				},
				{
					Name: "bug", Hypothesis: "critical software bug or vulnerability", Weight: 0.9,
					Keywords: []string{"vulnerability", "cve", "zero-day", "bug", "flaw", "critical"},
				},
				{
					Name: "release", Hypothesis: "software release or patch", Weight: 0.5,
					Keywords: []string{"release", "released", "patch", "update", "version", "launch"},
				},
				{
					Name: "general", Hypothesis: "general technology news", Weight: 0.2,
				},
			},
		},
		ML: MLConfig{
			Provider:          "keyword",
			InferenceURL:      "http://localhost:8000",
			Timeout:           Duration(15 * time.Second),
			RequestsPerSecond: 5,
			DefaultLabel:      "general",
		},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			SystemPrompt: "You classify IT news headlines. Reply with a JSON object mapping every " +
				"candidate label to a probability; probabilities must sum to 1.",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Sources: []SourceConfig{
			{Name: "reddit-sysadmin", Kind: "rss", URL: "https://www.reddit.com/r/sysadmin.rss"},
			{Name: "ars-technica", Kind: "rss", URL: "https://feeds.arstechnica.com/arstechnica/technology-lab"},
			{Name: "the-hacker-news", Kind: "rss", URL: "https://feeds.feedburner.com/TheHackersNews"},
			{Name: "toms-hardware", Kind: "rss", URL: "https://www.tomshardware.com/feeds/all"},
		},
	}
}
