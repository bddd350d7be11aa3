// File: internal/config/config.go
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // requisition read-through cache
}

type PipelineConfig struct {
	Workers         int           `yaml:"workers"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	LivenessTimeout time.Duration `yaml:"liveness_timeout"`
	ReclaimInterval time.Duration `yaml:"reclaim_interval"`
	ReclaimBatch    int           `yaml:"reclaim_batch"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	SyncLookback    time.Duration `yaml:"sync_lookback"`
	MaxAttempts     int           `yaml:"max_attempts"`
	DefaultPriority int           `yaml:"default_priority"`

	// BackoffBase is the first retry delay; BackoffByType overrides it per job type.
	BackoffBase   time.Duration            `yaml:"backoff_base"`
	BackoffByType map[string]time.Duration `yaml:"backoff_by_type"`
}

// TimeoutConfig bounds each external collaborator independently.
type TimeoutConfig struct {
	TMS       time.Duration `yaml:"tms"`
	AI        time.Duration `yaml:"ai"`
	Email     time.Duration `yaml:"email"`
	Artifacts time.Duration `yaml:"artifacts"`
}

type TMSConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxInputTokens  int    `yaml:"max_input_tokens"`
	CallsPerMinute  int    `yaml:"calls_per_minute"` // shared across all workers via redis
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls per process
}

type EmailConfig struct {
	APIURL    string `yaml:"api_url"`
	APIKey    string `yaml:"api_key"`
	From      string `yaml:"from"`
	Interview struct {
		BaseURL string `yaml:"base_url"` // candidate-facing interview link prefix
		Subject string `yaml:"subject"`
	} `yaml:"interview"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// SecurityConfig holds the at-rest artifact key, base64 encoded. Empty disables encryption.
type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// Key decodes EncryptionKey. It returns nil when no key is configured.
func (s SecurityConfig) Key() ([]byte, error) {
	if strings.TrimSpace(s.EncryptionKey) == "" {
		return nil, nil
	}
	k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("security.encryption_key: %w", err)
	}
	switch len(k) {
	case 16, 24, 32:
		return k, nil
	}
	return nil, fmt.Errorf("security.encryption_key: decoded key is %d bytes, want 16, 24 or 32", len(k))
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	TMS      TMSConfig      `yaml:"tms"`
	AI       AIConfig       `yaml:"ai"`
	Email    EmailConfig    `yaml:"email"`
	Telegram TelegramConfig `yaml:"telegram"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path. ${VAR} references are expanded from the environment
// so secrets can stay out of the file.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes, defaults and validates a config document.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 8080
	}
	if c.Admin.SessionTTL <= 0 {
		c.Admin.SessionTTL = 30 * time.Minute
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = 5 * time.Minute
	}

	p := &c.Pipeline
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.PollInterval <= 0 {
		p.PollInterval = time.Second
	}
	if p.LivenessTimeout <= 0 {
		p.LivenessTimeout = 15 * time.Minute
	}
	if p.ReclaimInterval <= 0 {
		p.ReclaimInterval = time.Minute
	}
	if p.ReclaimBatch <= 0 {
		p.ReclaimBatch = 100
	}
	if p.SyncInterval <= 0 {
		p.SyncInterval = 15 * time.Minute
	}
	if p.SyncLookback <= 0 {
		p.SyncLookback = 7 * 24 * time.Hour
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 30 * time.Second
	}

	t := &c.Timeouts
	if t.TMS <= 0 {
		t.TMS = 30 * time.Second
	}
	if t.AI <= 0 {
		t.AI = 2 * time.Minute
	}
	if t.Email <= 0 {
		t.Email = 15 * time.Second
	}
	if t.Artifacts <= 0 {
		t.Artifacts = 10 * time.Second
	}

	if c.AI.DefaultModel == "" {
		c.AI.DefaultModel = "gpt-4o-mini"
	}
	if c.AI.MaxInputTokens <= 0 {
		c.AI.MaxInputTokens = 12000
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 8
	}
	if c.Email.Interview.Subject == "" {
		c.Email.Interview.Subject = "Your interview invitation"
	}
}

func (c *Config) validate() error {
	// Minimal validation
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	p := c.Pipeline
	runBudget := c.Timeouts.TMS + c.Timeouts.AI + c.Timeouts.Email + c.Timeouts.Artifacts
	if p.LivenessTimeout <= runBudget {
		return fmt.Errorf("pipeline.liveness_timeout (%s) must exceed the sum of collaborator timeouts (%s)", p.LivenessTimeout, runBudget)
	}
	if _, err := c.Security.Key(); err != nil {
		return err
	}
	for name := range p.BackoffByType {
		if !knownJobType(name) {
			return fmt.Errorf("pipeline.backoff_by_type: unknown job type %q", name)
		}
	}
	return nil
}

// RunTimeout bounds a single handler execution so it always finishes before the reclaim sweep
// would consider the job stale.
func (p PipelineConfig) RunTimeout() time.Duration {
	return p.LivenessTimeout - p.LivenessTimeout/10
}

// kept local to avoid importing the domain model into config
func knownJobType(s string) bool {
	switch strings.TrimSpace(s) {
	case "sync", "analyze", "send_interview", "evaluate", "generate_report", "upload_report":
		return true
	}
	return false
}
