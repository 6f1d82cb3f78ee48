package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Matching MatchingConfig `mapstructure:"matching"`
	Capture  CaptureConfig  `mapstructure:"capture"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	DSN             string        `mapstructure:"dsn"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type BrowserConfig struct {
	Headless       bool `mapstructure:"headless"`
	ViewportWidth  int  `mapstructure:"viewport_width"`
	ViewportHeight int  `mapstructure:"viewport_height"`
	NavTimeoutSec  int  `mapstructure:"nav_timeout_sec"`
}

type WorkerConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
	AutoAttachTopK int `mapstructure:"auto_attach_top_k"`
}

type MatchingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	MinScore     float64 `mapstructure:"min_score"`
	ScrollPasses int     `mapstructure:"scroll_passes"`
}

type CaptureConfig struct {
	JPEGQuality  int `mapstructure:"jpeg_quality"`
	RetryDelayMs int `mapstructure:"retry_delay_ms"`
}

// PollInterval returns the dispatch poll interval as a duration.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

// RetryDelay returns the screenshot retry delay as a duration.
func (c CaptureConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// NavTimeout returns the navigation timeout as a duration.
func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutSec) * time.Second
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/comphawk.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "comp-evidence")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.nav_timeout_sec", 20)
	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.poll_interval_ms", 3000)
	v.SetDefault("worker.auto_attach_top_k", 3)
	v.SetDefault("matching.enabled", false)
	v.SetDefault("matching.min_score", 0.7)
	v.SetDefault("matching.scroll_passes", 6)
	v.SetDefault("capture.jpeg_quality", 70)
	v.SetDefault("capture.retry_delay_ms", 1500)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	v.BindEnv("worker.poll_interval_ms", "WORKER_POLL_INTERVAL_MS")
	v.BindEnv("browser.headless", "BROWSER_HEADLESS")
	v.BindEnv("matching.enabled", "MATCHING_ENABLED")
	v.BindEnv("matching.min_score", "MATCHING_MIN_SCORE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Matching.MinScore < 0 || c.Matching.MinScore > 1 {
		return fmt.Errorf("matching.min_score must be in [0,1], got %v", c.Matching.MinScore)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}
	return nil
}
