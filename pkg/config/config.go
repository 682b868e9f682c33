package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN builds a postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	QueueKey   string        `mapstructure:"queue_key"`
	PopTimeout time.Duration `mapstructure:"pop_timeout"`
}

type FetcherConfig struct {
	Backend           string        `mapstructure:"backend"` // "scrapeapi" or "chromedp"
	Timeout           time.Duration `mapstructure:"timeout"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	UserAgent         string        `mapstructure:"user_agent"`
	ContentType       string        `mapstructure:"content_type"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	ChromePath        string        `mapstructure:"chrome_path"`
}

type CrawlerConfig struct {
	MaxInFlight    int `mapstructure:"max_in_flight"`
	RecrawlWorkers int `mapstructure:"recrawl_workers"`
}

type ReconcilerConfig struct {
	CrawlTTL      time.Duration `mapstructure:"crawl_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RequeueStuck  bool          `mapstructure:"requeue_stuck"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "crawler")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 24*time.Hour)
	v.SetDefault("redis.queue_key", "crawler:recrawl")
	v.SetDefault("redis.pop_timeout", 5*time.Second)

	v.SetDefault("fetcher.backend", "scrapeapi")
	v.SetDefault("fetcher.timeout", 60*time.Second)
	v.SetDefault("fetcher.base_url", "http://localhost:3002")
	v.SetDefault("fetcher.api_key", "")
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")
	v.SetDefault("fetcher.content_type", "text/html; charset=utf-8")
	v.SetDefault("fetcher.requests_per_second", 2.0)
	v.SetDefault("fetcher.chrome_path", "")

	v.SetDefault("crawler.max_in_flight", 10)
	v.SetDefault("crawler.recrawl_workers", 2)

	v.SetDefault("reconciler.crawl_ttl", 10*time.Minute)
	v.SetDefault("reconciler.sweep_interval", time.Minute)
	v.SetDefault("reconciler.requeue_stuck", false)
}

// Load reads configuration from an optional config file and the environment.
// An empty path searches for config.yaml in the working directory and ./config.
// Environment variables override file values, e.g. DATABASE_HOST or FETCHER_TIMEOUT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults and env vars still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Fetcher.Timeout <= 0:
		return errors.New("config: fetcher.timeout must be positive")
	case c.Crawler.MaxInFlight < 1:
		return errors.New("config: crawler.max_in_flight must be at least 1")
	case c.Crawler.RecrawlWorkers < 0:
		return errors.New("config: crawler.recrawl_workers must not be negative")
	case c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Fetcher.Timeout:
		return errors.New("config: server.write_timeout must exceed fetcher.timeout")
	case c.Reconciler.CrawlTTL <= c.Fetcher.Timeout:
		return errors.New("config: reconciler.crawl_ttl must exceed fetcher.timeout")
	case c.Reconciler.SweepInterval <= 0:
		return errors.New("config: reconciler.sweep_interval must be positive")
	}
	switch c.Fetcher.Backend {
	case "scrapeapi", "chromedp":
	default:
		return fmt.Errorf("config: unknown fetcher.backend %q", c.Fetcher.Backend)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
