package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the service.
type Config struct {
	Env    string       `mapstructure:"env"`
	Server ServerConfig `mapstructure:"server"`

	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Related   RelatedConfig   `mapstructure:"related"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// RedisAddr switches the fingerprint store to redis when set.
	RedisAddr string `mapstructure:"redis_addr"`
}

type RateLimitConfig struct {
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type UpstreamConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	RetryMax int           `mapstructure:"retry_max"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PolicyConfig holds the heuristic knobs for response validation. The
// placeholder-domain list and the redirect URL shape are best-effort
// heuristics, so they stay configurable rather than hard-coded.
type PolicyConfig struct {
	PlaceholderDomains []string `mapstructure:"placeholder_domains"`
	RedirectHostSuffix string   `mapstructure:"redirect_host_suffix"`
	RedirectPathPrefix string   `mapstructure:"redirect_path_prefix"`
	MaxRelated         int      `mapstructure:"max_related"`
	MaxDefinitions     int      `mapstructure:"max_definitions"`
	MaxArguments       int      `mapstructure:"max_arguments"`
}

type ExtractConfig struct {
	MaxChars  int    `mapstructure:"max_chars"`
	MinChars  int    `mapstructure:"min_chars"`
	UserAgent string `mapstructure:"user_agent"`
}

type RelatedConfig struct {
	// Feeds lists RSS/Atom feed URLs used as an offline related-article
	// source when no upstream searcher is available.
	Feeds []string `mapstructure:"feeds"`
	Max   int      `mapstructure:"max"`
}

// Load reads configuration from the given file (optional) plus DEEPDIVE_*
// environment overrides, falling back to defaults for everything unset.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 15*time.Second)

	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.redis_addr", "")

	v.SetDefault("rate_limit.max_requests", 10)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.sweep_interval", 5*time.Minute)

	v.SetDefault("upstream.endpoint", "https://generativelanguage.googleapis.com")
	v.SetDefault("upstream.model", "gemini-2.0-flash")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.retry_max", 2)
	v.SetDefault("upstream.timeout", 30*time.Second)

	v.SetDefault("policy.placeholder_domains", []string{
		"example.com", "example.org", "example.net", "example-site.com",
		"yoursite.com", "placeholder.com", "test.com", "domain.com",
		"website.com", "sample.com", "localhost",
	})
	v.SetDefault("policy.redirect_host_suffix", "vertexaisearch.cloud.google.com")
	v.SetDefault("policy.redirect_path_prefix", "/grounding-api-redirect/")
	v.SetDefault("policy.max_related", 10)
	v.SetDefault("policy.max_definitions", 20)
	v.SetDefault("policy.max_arguments", 20)

	v.SetDefault("extract.max_chars", 60000)
	v.SetDefault("extract.min_chars", 100)
	v.SetDefault("extract.user_agent", "Mozilla/5.0 (compatible; DeepDiveBot/1.0)")

	v.SetDefault("related.feeds", []string{})
	v.SetDefault("related.max", 10)

	v.SetEnvPrefix("DEEPDIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
