package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.WithField("component", "config")

const configPathEnv = "MEETING_INSIGHTS_CONFIG"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Guard     GuardConfig     `yaml:"guard"`
	Deadlines DeadlineConfig  `yaml:"deadlines"`
	Directory DirectoryConfig `yaml:"directory"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// OracleConfig points at an OpenAI-compatible chat completions gateway.
type OracleConfig struct {
	GatewayURL string  `yaml:"gatewayUrl"`
	APIKey     string  `yaml:"apiKey"`
	Model      string  `yaml:"model"`
	UseMock    bool    `yaml:"useMock"`
	RateLimit  float64 `yaml:"rateLimit"`
	Burst      int     `yaml:"burst"`
}

type PipelineConfig struct {
	MaxChunkSize       int           `yaml:"maxChunkSize"`
	ChunkTimeout       time.Duration `yaml:"chunkTimeout"`
	MaxRetries         int           `yaml:"maxRetries"`
	MinTextLength      int           `yaml:"minTextLength"`
	ResolveConcurrency int           `yaml:"resolveConcurrency"`
}

type GuardConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

type DeadlineConfig struct {
	WindowDays int    `yaml:"windowDays"`
	Timezone   string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to UTC.
func (d DeadlineConfig) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		log.WithField("timezone", d.Timezone).Warn("unknown timezone, using UTC")
		return time.UTC
	}
	return loc
}

type DirectoryConfig struct {
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	NATSURL       string `yaml:"natsUrl"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info", Environment: "local"},
		Oracle: OracleConfig{
			Model:     "gpt-4o-mini",
			RateLimit: 2,
			Burst:     1,
		},
		Pipeline: PipelineConfig{
			MaxChunkSize:       15000,
			ChunkTimeout:       60 * time.Second,
			MaxRetries:         2,
			MinTextLength:      20,
			ResolveConcurrency: 8,
		},
		Guard:     GuardConfig{Cooldown: 60 * time.Second},
		Deadlines: DeadlineConfig{WindowDays: 14, Timezone: "UTC"},
		Notify:    NotifyConfig{SubjectPrefix: "analyses"},
	}
}

// Load reads the optional YAML file named by MEETING_INSIGHTS_CONFIG and then
// applies environment overrides on top of the defaults.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("cannot read config file, using defaults")
		} else if fileCfg, err := Parse(raw); err != nil {
			log.WithFields(logrus.Fields{"path": path, "error": err.Error()}).Warn("cannot parse config file, using defaults")
		} else {
			cfg = merge(cfg, fileCfg)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.sanitize()
	return cfg
}

// Parse decodes a YAML document into a Config without applying defaults.
func Parse(raw []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				log.WithFields(logrus.Fields{"key": key, "value": v}).Warn("not an integer, ignoring")
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				log.WithFields(logrus.Fields{"key": key, "value": v}).Warn("not a duration, ignoring")
				return
			}
			*dst = d
		}
	}

	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Logging.Level)
	str("ENVIRONMENT", &c.Logging.Environment)

	str("LLM_GATEWAY_URL", &c.Oracle.GatewayURL)
	str("LLM_API_KEY", &c.Oracle.APIKey)
	str("LLM_MODEL", &c.Oracle.Model)
	if v := getenv("USE_MOCK_LLM"); v != "" {
		c.Oracle.UseMock = v == "true" || v == "1"
	}
	if v := strings.TrimSpace(getenv("LLM_RATE_LIMIT")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Oracle.RateLimit = f
		} else {
			log.WithFields(logrus.Fields{"key": "LLM_RATE_LIMIT", "value": v}).Warn("not a number, ignoring")
		}
	}
	integer("LLM_BURST", &c.Oracle.Burst)

	integer("MAX_CHUNK_SIZE", &c.Pipeline.MaxChunkSize)
	duration("CHUNK_TIMEOUT", &c.Pipeline.ChunkTimeout)
	integer("ORACLE_MAX_RETRIES", &c.Pipeline.MaxRetries)
	integer("MIN_TEXT_LENGTH", &c.Pipeline.MinTextLength)
	integer("RESOLVE_CONCURRENCY", &c.Pipeline.ResolveConcurrency)

	duration("RUN_COOLDOWN", &c.Guard.Cooldown)

	integer("DEADLINE_WINDOW_DAYS", &c.Deadlines.WindowDays)
	str("TIMEZONE", &c.Deadlines.Timezone)

	str("DIRECTORY_PATH", &c.Directory.Path)

	str("NATS_URL", &c.Notify.NATSURL)
	str("NATS_SUBJECT_PREFIX", &c.Notify.SubjectPrefix)
}

// sanitize replaces out-of-range values with defaults.
func (c *Config) sanitize() {
	def := Default()
	if c.Pipeline.MaxChunkSize <= 0 {
		c.Pipeline.MaxChunkSize = def.Pipeline.MaxChunkSize
	}
	if c.Pipeline.ChunkTimeout <= 0 {
		c.Pipeline.ChunkTimeout = def.Pipeline.ChunkTimeout
	}
	if c.Pipeline.MaxRetries < 0 {
		c.Pipeline.MaxRetries = 0
	}
	if c.Pipeline.MinTextLength < 0 {
		c.Pipeline.MinTextLength = 0
	}
	if c.Pipeline.ResolveConcurrency <= 0 {
		c.Pipeline.ResolveConcurrency = def.Pipeline.ResolveConcurrency
	}
	if c.Guard.Cooldown <= 0 {
		c.Guard.Cooldown = def.Guard.Cooldown
	}
	if c.Deadlines.WindowDays <= 0 {
		c.Deadlines.WindowDays = def.Deadlines.WindowDays
	}
	if c.Oracle.RateLimit <= 0 {
		c.Oracle.RateLimit = def.Oracle.RateLimit
	}
	if c.Oracle.Burst <= 0 {
		c.Oracle.Burst = def.Oracle.Burst
	}
	if c.Notify.SubjectPrefix == "" {
		c.Notify.SubjectPrefix = def.Notify.SubjectPrefix
	}
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
}

func merge(base, override Config) Config {
	if override.Server.Port != "" {
		base.Server.Port = override.Server.Port
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Environment != "" {
		base.Logging.Environment = override.Logging.Environment
	}

	if override.Oracle.GatewayURL != "" {
		base.Oracle.GatewayURL = override.Oracle.GatewayURL
	}
	if override.Oracle.APIKey != "" {
		base.Oracle.APIKey = override.Oracle.APIKey
	}
	if override.Oracle.Model != "" {
		base.Oracle.Model = override.Oracle.Model
	}
	if override.Oracle.UseMock {
		base.Oracle.UseMock = true
	}
	if override.Oracle.RateLimit > 0 {
		base.Oracle.RateLimit = override.Oracle.RateLimit
	}
	if override.Oracle.Burst > 0 {
		base.Oracle.Burst = override.Oracle.Burst
	}

	if override.Pipeline.MaxChunkSize > 0 {
		base.Pipeline.MaxChunkSize = override.Pipeline.MaxChunkSize
	}
	if override.Pipeline.ChunkTimeout > 0 {
		base.Pipeline.ChunkTimeout = override.Pipeline.ChunkTimeout
	}
	if override.Pipeline.MaxRetries > 0 {
		base.Pipeline.MaxRetries = override.Pipeline.MaxRetries
	}
	if override.Pipeline.MinTextLength > 0 {
		base.Pipeline.MinTextLength = override.Pipeline.MinTextLength
	}
	if override.Pipeline.ResolveConcurrency > 0 {
		base.Pipeline.ResolveConcurrency = override.Pipeline.ResolveConcurrency
	}

	if override.Guard.Cooldown > 0 {
		base.Guard.Cooldown = override.Guard.Cooldown
	}

	if override.Deadlines.WindowDays > 0 {
		base.Deadlines.WindowDays = override.Deadlines.WindowDays
	}
	if override.Deadlines.Timezone != "" {
		base.Deadlines.Timezone = override.Deadlines.Timezone
	}

	if override.Directory.Path != "" {
		base.Directory.Path = override.Directory.Path
	}

	if override.Notify.NATSURL != "" {
		base.Notify.NATSURL = override.Notify.NATSURL
	}
	if override.Notify.SubjectPrefix != "" {
		base.Notify.SubjectPrefix = override.Notify.SubjectPrefix
	}

	return base
}
