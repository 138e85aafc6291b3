package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mikey/phish-guard/internal/heuristics"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from file, or from the standard search path
// when file is empty.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/phish-guard/")
		v.AddConfigPath("$HOME/.phish-guard")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("PHISHGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Scan defaults
	v.SetDefault("scan.interval", "5s")

	// Source defaults
	v.SetDefault("source.type", "maildir")
	v.SetDefault("source.maildir.path", "$HOME/Maildir")
	v.SetDefault("source.mbox.path", "/var/mail/$USER")
	v.SetDefault("source.imap.host", "localhost")
	v.SetDefault("source.imap.port", 993)
	v.SetDefault("source.imap.username", "")
	v.SetDefault("source.imap.password", "")
	v.SetDefault("source.imap.use_tls", true)
	v.SetDefault("source.imap.insecure_skip_verify", false)
	v.SetDefault("source.imap.mailbox", "INBOX")
	v.SetDefault("source.imap.poll_interval", "30s")
	v.SetDefault("source.smtp.listen_address", "127.0.0.1:2525")
	v.SetDefault("source.smtp.domain", "localhost")
	v.SetDefault("source.smtp.max_messages", 500)
	v.SetDefault("source.smtp.max_message_bytes", 30*1024*1024)

	// Classifier client defaults
	v.SetDefault("classifier.endpoint", "http://127.0.0.1:5002/api/detect-phishing")
	v.SetDefault("classifier.timeout", "15s")

	// Event sink defaults
	v.SetDefault("events.redis.enabled", false)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", "phishguard:events")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_address", "127.0.0.1:9464")

	// Classifier service defaults
	v.SetDefault("server.listen_address", "0.0.0.0:5002")
	v.SetDefault("server.max_request_bytes", 10*1024*1024)
	v.SetDefault("assessment.whitelisted_domains", []string{})

	// LLM provider defaults
	v.SetDefault("llm.provider", "gemini")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/phish_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/phish_guard")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// GetExtraRules returns the user-defined heuristic rules appended to the defaults
func (c *Config) GetExtraRules() ([]heuristics.RuleDefinition, error) {
	var defs []heuristics.RuleDefinition
	if err := c.v.UnmarshalKey("heuristics.extra_rules", &defs); err != nil {
		return nil, fmt.Errorf("invalid heuristics.extra_rules: %w", err)
	}
	return defs, nil
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
