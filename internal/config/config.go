package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

const envPrefix = "DASHBOARD"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Logger   LoggerConfig   `yaml:"logger"`
	Security SecurityConfig `yaml:"security"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Display  DisplayConfig  `yaml:"display"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type DatasetConfig struct {
	CSVFile         string        `yaml:"csv_file" split_words:"true"`
	DateLayouts     []string      `yaml:"date_layouts" split_words:"true"`
	SkipInvalidRows bool          `yaml:"skip_invalid_rows" split_words:"true"`
	LoadTimeout     time.Duration `yaml:"load_timeout" split_words:"true"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"enable_rate_limit" split_words:"true"`
	RateLimitRPS    int      `yaml:"rate_limit_rps" split_words:"true"`
	RateLimitBurst  int      `yaml:"rate_limit_burst" split_words:"true"`
	AllowedOrigins  []string `yaml:"allowed_origins" split_words:"true"`
	TrustedProxies  []string `yaml:"trusted_proxies" split_words:"true"`
}

type TracingConfig struct {
	Exporter    string  `yaml:"exporter"`
	ServiceName string  `yaml:"service_name" split_words:"true"`
	SampleRatio float64 `yaml:"sample_ratio" split_words:"true"`
}

type DisplayConfig struct {
	Title     string `yaml:"title"`
	Locale    string `yaml:"locale"`
	Currency  string `yaml:"currency"`
	TableRows int    `yaml:"table_rows" split_words:"true"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			CSVFile:     "datasets/train.csv",
			DateLayouts: []string{"02/01/2006", "2006-01-02"},
			LoadTimeout: 30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "superstore-dashboard",
			SampleRatio: 1,
		},
		Display: DisplayConfig{
			Title:     "Superstore Sales Analysis",
			Locale:    "pt-BR",
			Currency:  "R$",
			TableRows: 50,
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// named by DASHBOARD_CONFIG_FILE, then DASHBOARD_* environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv(envPrefix + "_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.CSVFile == "" {
		return fmt.Errorf("CSV file path cannot be empty")
	}

	if len(c.Dataset.DateLayouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}

	if c.Dataset.LoadTimeout <= 0 {
		return fmt.Errorf("dataset load timeout must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	validExporters := []string{"none", "stdout"}
	if !slices.Contains(validExporters, c.Tracing.Exporter) {
		return fmt.Errorf("invalid trace exporter %q, must be one of: %s", c.Tracing.Exporter, strings.Join(validExporters, ", "))
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}

	if _, err := language.Parse(c.Display.Locale); err != nil {
		return fmt.Errorf("invalid display locale %q: %w", c.Display.Locale, err)
	}

	if c.Display.TableRows <= 0 {
		return fmt.Errorf("display table rows must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
