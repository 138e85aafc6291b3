package config

import (
	"os"
	"time"
)

// ScanConfig configures the scan orchestrator
type ScanConfig struct {
	Interval time.Duration
}

// SourceConfig selects and configures the message source
type SourceConfig struct {
	Type        string
	MaildirPath string
	MboxPath    string
	IMAP        IMAPConfig
	SMTP        SMTPConfig
}

// IMAPConfig represents the configuration for an IMAP mailbox source
type IMAPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	UseTLS             bool
	InsecureSkipVerify bool
	Mailbox            string
	PollInterval       time.Duration
}

// SMTPConfig represents the configuration for the SMTP inbox source
type SMTPConfig struct {
	ListenAddr      string
	Domain          string
	MaxMessages     int
	MaxMessageBytes int64
}

// ClassifierConfig configures the remote classifier client
type ClassifierConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// EventsConfig configures the event bus subscribers
type EventsConfig struct {
	RedisEnabled   bool
	RedisAddress   string
	RedisPassword  string
	RedisDB        int
	RedisChannel   string
	MetricsEnabled bool
	MetricsAddress string
}

// ServerConfig represents the configuration for the classifier service
type ServerConfig struct {
	ListenAddr         string
	MaxRequestBytes    int64
	WhitelistedDomains []string
}

// CacheConfig represents the assessment cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetScan returns the scan configuration
func (c *Config) GetScan() (ScanConfig, error) {
	interval, err := c.GetDuration("scan.interval")
	if err != nil {
		return ScanConfig{}, err
	}
	return ScanConfig{Interval: interval}, nil
}

// GetSource returns the message source configuration
func (c *Config) GetSource() (SourceConfig, error) {
	poll, err := c.GetDuration("source.imap.poll_interval")
	if err != nil {
		return SourceConfig{}, err
	}
	return SourceConfig{
		Type:        c.GetString("source.type"),
		MaildirPath: os.ExpandEnv(c.GetString("source.maildir.path")),
		MboxPath:    os.ExpandEnv(c.GetString("source.mbox.path")),
		IMAP: IMAPConfig{
			Host:               c.GetString("source.imap.host"),
			Port:               c.GetInt("source.imap.port"),
			Username:           c.GetString("source.imap.username"),
			Password:           c.GetString("source.imap.password"),
			UseTLS:             c.GetBool("source.imap.use_tls"),
			InsecureSkipVerify: c.GetBool("source.imap.insecure_skip_verify"),
			Mailbox:            c.GetString("source.imap.mailbox"),
			PollInterval:       poll,
		},
		SMTP: SMTPConfig{
			ListenAddr:      c.GetString("source.smtp.listen_address"),
			Domain:          c.GetString("source.smtp.domain"),
			MaxMessages:     c.GetInt("source.smtp.max_messages"),
			MaxMessageBytes: c.v.GetInt64("source.smtp.max_message_bytes"),
		},
	}, nil
}

// GetClassifier returns the remote classifier client configuration
func (c *Config) GetClassifier() (ClassifierConfig, error) {
	timeout, err := c.GetDuration("classifier.timeout")
	if err != nil {
		return ClassifierConfig{}, err
	}
	return ClassifierConfig{
		Endpoint: c.GetString("classifier.endpoint"),
		Timeout:  timeout,
	}, nil
}

// GetEvents returns the event subscriber configuration
func (c *Config) GetEvents() EventsConfig {
	return EventsConfig{
		RedisEnabled:   c.GetBool("events.redis.enabled"),
		RedisAddress:   c.GetString("events.redis.address"),
		RedisPassword:  c.GetString("events.redis.password"),
		RedisDB:        c.GetInt("events.redis.db"),
		RedisChannel:   c.GetString("events.redis.channel"),
		MetricsEnabled: c.GetBool("metrics.enabled"),
		MetricsAddress: c.GetString("metrics.listen_address"),
	}
}

// GetServer returns the classifier service configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddr:         c.GetString("server.listen_address"),
		MaxRequestBytes:    c.v.GetInt64("server.max_request_bytes"),
		WhitelistedDomains: c.GetStringSlice("assessment.whitelisted_domains"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, err
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, err
	}
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
	}, nil
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
