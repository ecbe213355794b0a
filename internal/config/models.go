package config

import (
	"fmt"
	"time"
)

// AnalyzerConfig represents the configuration of the feature extraction and decision
type AnalyzerConfig struct {
	WordlistPath            string
	Strategy                string
	ModelPath               string
	Concurrency             int
	ForbiddenWordsThreshold float64
	UppercaseRatio          float64
	ScoreCutoff             float64
	VerifyDKIM              bool
}

// DNSConfig represents the configuration of the resolver
type DNSConfig struct {
	Servers     []string
	Timeout     time.Duration
	MaxInFlight int
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider  string
	Threshold float64
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region        string
	ModelID       string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey        string
	ModelName     string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey        string
	ModelName     string
	MaxTokens     int
	Temperature   float32
	TopP          float32
	MaxPromptSize int
}

// CacheConfig represents the configuration of the verdict cache
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
}

// HeadersConfig names the headers added to filtered mail
type HeadersConfig struct {
	Spam    string
	Score   string
	Reason  string
	Verdict string
}

// PostfixConfig is where filtered mail is re-injected
type PostfixConfig struct {
	Enabled bool
	Address string
	Port    int
}

// ServerConfig represents the configuration of the content filter daemon
type ServerConfig struct {
	FilterType     string
	ListenAddress  string
	BlockSpam      bool
	ModifySubject  bool
	SubjectPrefix  string
	MetricsAddress string
	Headers        HeadersConfig
	Postfix        PostfixConfig
}

// GetAnalyzer returns the analyzer configuration
func (c *Config) GetAnalyzer() AnalyzerConfig {
	return AnalyzerConfig{
		WordlistPath:            c.GetString("analyzer.wordlist_path"),
		Strategy:                c.GetString("analyzer.strategy"),
		ModelPath:               c.GetString("analyzer.model_path"),
		Concurrency:             c.GetInt("analyzer.concurrency"),
		ForbiddenWordsThreshold: c.GetFloat64("analyzer.forbidden_words_threshold"),
		UppercaseRatio:          c.GetFloat64("analyzer.uppercase_ratio"),
		ScoreCutoff:             c.GetFloat64("analyzer.score_cutoff"),
		VerifyDKIM:              c.GetBool("analyzer.verify_dkim"),
	}
}

// GetDNS returns the resolver configuration
func (c *Config) GetDNS() (DNSConfig, error) {
	timeout, err := c.GetDuration("dns.timeout")
	if err != nil {
		return DNSConfig{}, fmt.Errorf("invalid dns.timeout: %w", err)
	}
	return DNSConfig{
		Servers:     c.GetStringSlice("dns.servers"),
		Timeout:     timeout,
		MaxInFlight: c.GetInt("dns.max_in_flight"),
	}, nil
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:  c.GetString("llm.provider"),
		Threshold: c.GetFloat64("llm.threshold"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:        c.GetString("bedrock.region"),
		ModelID:       c.GetString("bedrock.model_id"),
		MaxTokens:     c.GetInt("bedrock.max_tokens"),
		Temperature:   float32(c.GetFloat64("bedrock.temperature")),
		TopP:          float32(c.GetFloat64("bedrock.top_p")),
		MaxPromptSize: c.GetInt("bedrock.max_prompt_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:        c.GetString("gemini.api_key"),
		ModelName:     c.GetString("gemini.model_name"),
		MaxTokens:     c.GetInt("gemini.max_tokens"),
		Temperature:   float32(c.GetFloat64("gemini.temperature")),
		TopP:          float32(c.GetFloat64("gemini.top_p")),
		MaxPromptSize: c.GetInt("gemini.max_prompt_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:        c.GetString("openai.api_key"),
		ModelName:     c.GetString("openai.model_name"),
		MaxTokens:     c.GetInt("openai.max_tokens"),
		Temperature:   float32(c.GetFloat64("openai.temperature")),
		TopP:          float32(c.GetFloat64("openai.top_p")),
		MaxPromptSize: c.GetInt("openai.max_prompt_size"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	ttl, err := c.GetDuration("cache.ttl")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache.ttl: %w", err)
	}
	cleanup, err := c.GetDuration("cache.cleanup_frequency")
	if err != nil {
		return CacheConfig{}, fmt.Errorf("invalid cache.cleanup_frequency: %w", err)
	}
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             c.GetString("cache.type"),
		TTL:              ttl,
		CleanupFrequency: cleanup,
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
	}, nil
}

// GetServer returns the content filter configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:     c.GetString("server.filter_type"),
		ListenAddress:  c.GetString("server.listen_address"),
		BlockSpam:      c.GetBool("server.block_spam"),
		ModifySubject:  c.GetBool("server.modify_subject"),
		SubjectPrefix:  c.GetString("server.subject_prefix"),
		MetricsAddress: c.GetString("server.metrics_address"),
		Headers: HeadersConfig{
			Spam:    c.GetString("server.headers.spam"),
			Score:   c.GetString("server.headers.score"),
			Reason:  c.GetString("server.headers.reason"),
			Verdict: c.GetString("server.headers.verdict"),
		},
		Postfix: PostfixConfig{
			Enabled: c.GetBool("server.postfix.enabled"),
			Address: c.GetString("server.postfix.address"),
			Port:    c.GetInt("server.postfix.port"),
		},
	}
}
