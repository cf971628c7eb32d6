package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/drallgood/bookfinder/internal/logger"
)

// Storage drivers understood by the storage package
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// DefaultEnvFile is loaded (if present) before environment variables are read
const DefaultEnvFile = ".env.local"

// Config holds all configuration for the application
type Config struct {
	// Logging configuration
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Open Library catalog
	Catalog struct {
		BaseURL   string        `yaml:"base_url"`
		CoversURL string        `yaml:"covers_url"`
		PageSize  int           `yaml:"page_size"`
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"user_agent"`
		RateLimit float64       `yaml:"rate_limit"` // requests per second
	} `yaml:"catalog"`

	// Durable local storage for favorites and the session
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	// Mock login flow
	Auth struct {
		LoginDelay  time.Duration `yaml:"login_delay"`
		DefaultName string        `yaml:"default_name"`
	} `yaml:"auth"`

	// Application settings
	App struct {
		DarkMode bool `yaml:"dark_mode"`
	} `yaml:"app"`
}

// Default returns a configuration populated with defaults only
func Default() *Config {
	cfg := &Config{}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Catalog.BaseURL = "https://openlibrary.org"
	cfg.Catalog.CoversURL = "https://covers.openlibrary.org"
	cfg.Catalog.PageSize = 20
	cfg.Catalog.Timeout = 15 * time.Second
	cfg.Catalog.UserAgent = "bookfinder/dev (+https://openlibrary.org/developers/api)"
	cfg.Catalog.RateLimit = 5
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.Path = "./data/bookfinder.db"
	cfg.Auth.LoginDelay = time.Second
	cfg.Auth.DefaultName = "Alex Johnson"
	return cfg
}

// Load loads configuration from a file (if specified) and environment variables.
// Priority: 1) environment variables (including .env.local), 2) config file, 3) defaults.
// Command line flags are applied on top by the caller.
func Load(configFile string) (*Config, error) {
	log := logger.Get()
	cfg := Default()

	if configFile != "" {
		fileCfg, err := LoadFromFile(configFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Warn("Config file not found, using defaults", map[string]interface{}{
					"path": configFile,
				})
			} else {
				return nil, err
			}
		} else {
			mergeConfigs(cfg, fileCfg)
		}
	}

	if err := godotenv.Load(DefaultEnvFile); err == nil {
		log.Debug("Loaded environment file", map[string]interface{}{
			"path": DefaultEnvFile,
		})
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug("Configuration loaded", map[string]interface{}{
		"catalog_base_url": cfg.Catalog.BaseURL,
		"page_size":        cfg.Catalog.PageSize,
		"storage_driver":   cfg.Storage.Driver,
		"storage_path":     cfg.Storage.Path,
	})
	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
		if c.Storage.Path == "" {
			return &ConfigError{Field: "storage.path", Msg: "is required for the " + c.Storage.Driver + " driver"}
		}
	case DriverMemory:
	default:
		return &ConfigError{Field: "storage.driver", Msg: fmt.Sprintf("unsupported driver %q", c.Storage.Driver)}
	}

	if c.Catalog.PageSize <= 0 {
		return &ConfigError{Field: "catalog.page_size", Msg: "must be positive"}
	}
	if c.Catalog.RateLimit < 0 {
		return &ConfigError{Field: "catalog.rate_limit", Msg: "must not be negative"}
	}
	if c.Catalog.Timeout < 0 {
		return &ConfigError{Field: "catalog.timeout", Msg: "must not be negative"}
	}
	for field, raw := range map[string]string{
		"catalog.base_url":   c.Catalog.BaseURL,
		"catalog.covers_url": c.Catalog.CoversURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: field, Msg: "must be an absolute URL"}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBoolFromEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			logger.Get().Warnf("Failed to parse bool from env var %s: %v", key, err)
			return fallback
		}
		return b
	}
	return fallback
}

func getIntFromEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		i, err := strconv.Atoi(value)
		if err != nil {
			logger.Get().Warnf("Failed to parse int from env var %s: %v", key, err)
			return fallback
		}
		return i
	}
	return fallback
}

func getFloat64FromEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			logger.Get().Warnf("Failed to parse float from env var %s: %v", key, err)
			return fallback
		}
		return f
	}
	return fallback
}

func getDurationFromEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			logger.Get().Warnf("Failed to parse duration from env var %s: %v", key, err)
			return fallback
		}
		return d
	}
	return fallback
}

// loadFromEnv overrides cfg with any environment variables that are set
func loadFromEnv(cfg *Config) {
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Catalog.BaseURL = strings.TrimSuffix(getEnv("CATALOG_BASE_URL", cfg.Catalog.BaseURL), "/")
	cfg.Catalog.CoversURL = strings.TrimSuffix(getEnv("CATALOG_COVERS_URL", cfg.Catalog.CoversURL), "/")
	cfg.Catalog.PageSize = getIntFromEnv("CATALOG_PAGE_SIZE", cfg.Catalog.PageSize)
	cfg.Catalog.Timeout = getDurationFromEnv("CATALOG_TIMEOUT", cfg.Catalog.Timeout)
	cfg.Catalog.UserAgent = getEnv("CATALOG_USER_AGENT", cfg.Catalog.UserAgent)
	cfg.Catalog.RateLimit = getFloat64FromEnv("CATALOG_RATE_LIMIT", cfg.Catalog.RateLimit)

	cfg.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)

	cfg.Auth.LoginDelay = getDurationFromEnv("AUTH_LOGIN_DELAY", cfg.Auth.LoginDelay)
	cfg.Auth.DefaultName = getEnv("AUTH_DEFAULT_NAME", cfg.Auth.DefaultName)

	cfg.App.DarkMode = getBoolFromEnv("DARK_MODE", cfg.App.DarkMode)
}

// mergeConfigs copies non-zero values from src into dst, section by section
func mergeConfigs(dst, src *Config) {
	mergeStruct(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func mergeStruct(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		dstField := dst.Field(i)
		srcField := src.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Struct:
			mergeStruct(dstField, srcField)
		case reflect.String:
			if srcField.String() != "" {
				dstField.SetString(srcField.String())
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			// time.Duration lands here too
			if srcField.Int() != 0 {
				dstField.SetInt(srcField.Int())
			}
		case reflect.Float32, reflect.Float64:
			if srcField.Float() != 0 {
				dstField.SetFloat(srcField.Float())
			}
		case reflect.Bool:
			if srcField.Bool() {
				dstField.SetBool(true)
			}
		}
	}
}
