package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Analyzer AnalyzerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	RateLimitMin   time.Duration
	RateLimitMax   time.Duration
	MaxRetries     int
	MaxScrolls     int
	ScrollDelay    time.Duration
	ElementTimeout time.Duration
	ReviewsWait    time.Duration
	MaxReviews     int
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type AnalyzerConfig struct {
	SentimentURL  string
	SummarizerURL string
	Timeout       time.Duration
	DataDir       string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			RateLimitMin:   getDurationOrDefault("SCRAPER_RATE_LIMIT_MIN", 5*time.Second),
			RateLimitMax:   getDurationOrDefault("SCRAPER_RATE_LIMIT_MAX", 30*time.Second),
			MaxRetries:     getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			MaxScrolls:     getIntOrDefault("SCRAPER_MAX_SCROLLS", 15),
			ScrollDelay:    getDurationOrDefault("SCRAPER_SCROLL_DELAY", 500*time.Millisecond),
			ElementTimeout: getDurationOrDefault("SCRAPER_ELEMENT_TIMEOUT", 15*time.Second),
			ReviewsWait:    getDurationOrDefault("SCRAPER_REVIEWS_WAIT", 15*time.Second),
			MaxReviews:     getIntOrDefault("SCRAPER_MAX_REVIEWS", 50),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Moscow"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "ru-RU"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "wb_reviews"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			TTL:      getDurationOrDefault("REDIS_BUNDLE_TTL", 6*time.Hour),
		},
		Analyzer: AnalyzerConfig{
			SentimentURL:  getEnvOrDefault("ANALYZER_SENTIMENT_URL", "http://localhost:8091"),
			SummarizerURL: getEnvOrDefault("ANALYZER_SUMMARIZER_URL", "http://localhost:8092"),
			Timeout:       getDurationOrDefault("ANALYZER_TIMEOUT", 60*time.Second),
			DataDir:       getEnvOrDefault("ANALYZER_DATA_DIR", "data"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.RateLimitMin > c.Scraper.RateLimitMax {
		return fmt.Errorf("SCRAPER_RATE_LIMIT_MIN cannot be greater than SCRAPER_RATE_LIMIT_MAX")
	}

	if c.Scraper.MaxScrolls < 1 {
		return fmt.Errorf("SCRAPER_MAX_SCROLLS must be at least 1")
	}

	if c.Scraper.MaxReviews < 1 {
		return fmt.Errorf("SCRAPER_MAX_REVIEWS must be at least 1")
	}

	if !strings.HasPrefix(c.Analyzer.SentimentURL, "http") {
		return fmt.Errorf("ANALYZER_SENTIMENT_URL must be an http(s) URL")
	}

	if !strings.HasPrefix(c.Analyzer.SummarizerURL, "http") {
		return fmt.Errorf("ANALYZER_SUMMARIZER_URL must be an http(s) URL")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
