// Package config loads skill verifier settings from a YAML file, the
// environment and defaults, and validates them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/skill-verifier/internal/github"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/server/ratelimit"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SKILL_VERIFIER_SERVER_PORT
	EnvPrefix = "SKILL_VERIFIER"
	// DefaultConfigName is looked up in the working directory when no file is given
	DefaultConfigName = "skill_verifier"
)

// Config is the full application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	AI        AIConfig        `mapstructure:"ai"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Integrity IntegrityConfig `mapstructure:"integrity"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"min=1,max=65535"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" validate:"min=1024"`
	CORSOrigins    []string `mapstructure:"cors_origins" validate:"dive,url"`
}

// DatabaseConfig configures the record store. An empty URL keeps records in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig configures the shared cache. An empty URL uses an in-process cache.
type RedisConfig struct {
	URL    string `mapstructure:"url" validate:"omitempty,url"`
	Prefix string `mapstructure:"prefix"`
}

// CacheConfig sets entry lifetimes
type CacheConfig struct {
	ProfileTTL      time.Duration `mapstructure:"profile_ttl" validate:"min=0"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl" validate:"min=0"`
}

// AIConfig selects the AI backend
type AIConfig struct {
	Provider          string        `mapstructure:"provider" validate:"oneof=gemini openrouter"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=0"`
	ExtractionTimeout time.Duration `mapstructure:"extraction_timeout" validate:"min=0"`
}

// GitHubConfig configures profile aggregation
type GitHubConfig struct {
	Token          string        `mapstructure:"token"`
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxRepos       int           `mapstructure:"max_repos" validate:"min=1,max=100"`
	Concurrency    int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	CommitsPerRepo int           `mapstructure:"commits_per_repo" validate:"min=1,max=100"`
}

// IntegrityConfig holds the hashing secret. Commands that hash fail without it.
type IntegrityConfig struct {
	Secret string `mapstructure:"secret" validate:"omitempty,min=16"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// RateLimitConfig configures per-client request limits
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultLimit  int           `mapstructure:"default_limit" validate:"min=0"`
	DefaultWindow time.Duration `mapstructure:"default_window" validate:"min=0"`
	Whitelist     string        `mapstructure:"whitelist"`
	Blacklist     string        `mapstructure:"blacklist"`
}

// legacyEnv maps keys to unprefixed variable names also honoured, first set wins
var legacyEnv = map[string][]string{
	"ai.api_key":       {"OPENROUTER_API_KEY", "DEEPSEEK_API_KEY", "GEMINI_API_KEY"},
	"github.token":     {"GITHUB_TOKEN"},
	"database.url":     {"DATABASE_URL"},
	"redis.url":        {"REDIS_URL"},
	"integrity.secret": {"SECRET_KEY"},
	"server.port":      {"PORT"},
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.prefix", "skillverifier:")

	v.SetDefault("cache.profile_ttl", 30*time.Minute)
	v.SetDefault("cache.verification_ttl", time.Hour)

	v.SetDefault("ai.provider", string(llm.ProviderOpenRouter))
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 45*time.Second)
	v.SetDefault("ai.extraction_timeout", 30*time.Second)

	v.SetDefault("github.token", "")
	v.SetDefault("github.base_url", github.DefaultBaseURL)
	v.SetDefault("github.timeout", github.DefaultTimeout)
	v.SetDefault("github.max_repos", 5)
	v.SetDefault("github.concurrency", 4)
	v.SetDefault("github.commits_per_repo", 10)

	v.SetDefault("integrity.secret", "")

	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default_limit", 1000)
	v.SetDefault("ratelimit.default_window", time.Minute)
	v.SetDefault("ratelimit.whitelist", "")
	v.SetDefault("ratelimit.blacklist", "")
}

// New returns a viper instance with defaults and environment bindings applied
func New() (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}
	return v, nil
}

// ReadFile reads path into v. An empty path looks for skill_verifier.yaml in
// the working directory and tolerates its absence.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.AddConfigPath(".")
	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Decode unmarshals and validates the settings held by v
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads defaults, the optional config file at path and the environment
func Load(path string) (*Config, error) {
	v, err := New()
	if err != nil {
		return nil, err
	}
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

var validate = validator.New()

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("'%s' failed '%s'", configKey(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// configKey turns a validator namespace like Config.GitHub.MaxRepos into github.maxrepos
func configKey(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return strings.ToLower(namespace)
	}
	return strings.ToLower(rest)
}

// LLM returns the provider configuration, with the model override applied to every tier
func (c *Config) LLM() *llm.Config {
	cfg := llm.ConfigFor(c.AI.Provider)
	if c.AI.Model != "" {
		cfg = cfg.WithAllModels(c.AI.Model)
	}
	if c.AI.BaseURL != "" {
		cfg.BaseURL = c.AI.BaseURL
	}
	return cfg
}

// GitHubOptions returns the aggregator settings
func (c *Config) GitHubOptions() github.Options {
	return github.Options{
		MaxRepos:       c.GitHub.MaxRepos,
		Concurrency:    c.GitHub.Concurrency,
		CommitsPerRepo: c.GitHub.CommitsPerRepo,
		TTL:            c.Cache.ProfileTTL,
	}
}

// RateLimiter returns the limiter settings with the standard endpoint tiers
func (c *Config) RateLimiter() *ratelimit.Config {
	rl := ratelimit.DefaultConfig()
	rl.Enabled = c.RateLimit.Enabled
	rl.DefaultLimit = c.RateLimit.DefaultLimit
	rl.DefaultWindow = c.RateLimit.DefaultWindow
	rl.Whitelist = ratelimit.ParseIPList(c.RateLimit.Whitelist)
	rl.Blacklist = ratelimit.ParseIPList(c.RateLimit.Blacklist)
	return rl
}
