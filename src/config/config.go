package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse decodes YAML bytes on top of the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to parse config from YAML", err)
	}

	config := &Config{MConfig: modelConfig}
	if err := config.Validate(); err != nil {
		return nil, helpers.NewConfigurationError("config validation failed", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Defaults returns the built-in settings of the service
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "masterlink_ta",
		Prefix:   "ml_",
		Host:     "0.0.0.0",
		Port:     8000,
		LogLevel: "INFO",
		GrpcPort: 50051,
		Timezone: "Asia/Taipei",
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "ed_fetcher.db",
			DBName: "ed_fetcher",
			Schemas: models.MSchemasConfig{
				Config: "config",
				OHLC:   "ml_ohlc",
				OHLCD:  "ml_ohlc_D",
				Tick:   "ml_tickhist",
			},
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			MaxRetries:     3,
			UserAgent:      "ta-fetcher/1.0",
		},
		Vendor: models.MVendorConfig{
			Type:         "simulated",
			LoginTimeout: 30,
		},
		Catalog: models.MCatalogConfig{
			Type: "static",
		},
		Bridge: models.MBridgeConfig{
			Workers:   4,
			QueueSize: 256,
			CacheBars: 500,
		},
		OHLC: models.MOHLCConfig{
			IndicatorType:       "SMA",
			BarInterval:         "K_1m",
			StartDateOffsetDays: 7,
			VendorWaitAttempts:  10,
			VendorWaitInterval:  1000,
		},
		Tick: models.MTickConfig{
			Concurrency:         2,
			StartDateOffsetDays: 7,
		},
		Market: models.MMarketConfig{
			MIC: "xtai",
		},
		Endpoint: models.MEndpointConfig{
			Prefix:        "/ta",
			Snapshot:      "/snapshot",
			Shutdown:      "/shutdown",
			Restart:       "/restart",
			Info:          "/info",
			Service:       "/service",
			Subscription:  "/sub",
			Subscriptions: "/subs",
			OHLC:          "/ohlc",
			OHLCD:         "/ohlcd",
			Tick:          "/tick",
		},
	}
}

// -----------------------------------------------------------------------------

// Model exposes the underlying models.MConfig
func (c *Config) Model() *models.MConfig {
	return c.MConfig
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		// Connection string may come from SQL_URI at runtime.
	default:
		return fmt.Errorf("unsupported database type %q", c.Storage.DBType)
	}
	if c.Storage.Schemas.Config == "" || c.Storage.Schemas.OHLC == "" || c.Storage.Schemas.Tick == "" {
		return fmt.Errorf("storage schemas cannot be empty")
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Vendor
	switch c.Vendor.Type {
	case "simulated":
	case "gateway":
		if c.Vendor.BaseURL == "" || c.Vendor.StreamURL == "" {
			return fmt.Errorf("gateway vendor requires base_url and stream_url")
		}
	default:
		return fmt.Errorf("unsupported vendor type %q", c.Vendor.Type)
	}

	// Catalog
	switch c.Catalog.Type {
	case "static":
		if len(c.Catalog.Symbols) == 0 {
			return fmt.Errorf("static catalog must list at least one symbol")
		}
	case "http":
		if c.Catalog.URL == "" {
			return fmt.Errorf("http catalog requires a url")
		}
	case "table":
		if c.Catalog.Table == "" || c.Catalog.Field == "" {
			return fmt.Errorf("table catalog requires table and field")
		}
	default:
		return fmt.Errorf("unsupported catalog type %q", c.Catalog.Type)
	}

	// Bridge
	if c.Bridge.Workers <= 0 {
		return fmt.Errorf("bridge workers must be greater than 0")
	}
	if c.Bridge.QueueSize <= 0 {
		return fmt.Errorf("bridge queue size must be greater than 0")
	}

	// OHLC runtime
	if _, err := models.ParseIndicatorKind(c.OHLC.IndicatorType); err != nil {
		return err
	}
	if _, err := models.ParseBarKind(c.OHLC.BarInterval); err != nil {
		return err
	}
	if c.OHLC.StartDateOffsetDays < 0 || c.Tick.StartDateOffsetDays < 0 {
		return fmt.Errorf("start date offset cannot be negative")
	}
	if c.OHLC.VendorWaitAttempts <= 0 {
		return fmt.Errorf("vendor wait attempts must be greater than 0")
	}
	if c.OHLC.SymbolTimeout < 0 {
		return fmt.Errorf("symbol timeout cannot be negative")
	}
	if c.Tick.Concurrency <= 0 {
		return fmt.Errorf("tick concurrency must be greater than 0")
	}

	// Market hours
	for _, h := range []string{c.Market.OpenHour, c.Market.CloseHour} {
		if h == "" {
			continue
		}
		if _, err := time.Parse("15:04", h); err != nil {
			return fmt.Errorf("invalid market hour %q (want HH:MM)", h)
		}
	}

	if !strings.HasPrefix(c.Endpoint.Prefix, "/") {
		return fmt.Errorf("endpoint prefix must start with '/'")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Location returns the exchange timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
