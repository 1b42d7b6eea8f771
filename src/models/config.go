package models

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Prefix   string          `yaml:"prefix"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Timezone string          `yaml:"timezone"`
	Logging  MLoggingConfig  `yaml:"logging"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Vendor   MVendorConfig   `yaml:"vendor"`
	Catalog  MCatalogConfig  `yaml:"catalog"`
	Bridge   MBridgeConfig   `yaml:"bridge"`
	OHLC     MOHLCConfig     `yaml:"ohlc"`
	Tick     MTickConfig     `yaml:"tick"`
	Market   MMarketConfig   `yaml:"market"`
	Endpoint MEndpointConfig `yaml:"endpoints"`

	// Loaded from .env / process environment, never written back to YAML.
	Secrets MSecrets `yaml:"-"`
}

type MLoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type MStorageConfig struct {
	DBType             string         `yaml:"db_type"`
	DBPath             string         `yaml:"db_path"`
	DBName             string         `yaml:"db_name"`
	DBConnectionString string         `yaml:"db_connection_string"`
	Schemas            MSchemasConfig `yaml:"schemas"`
}

type MSchemasConfig struct {
	Config string `yaml:"config"`
	OHLC   string `yaml:"ohlc"`
	OHLCD  string `yaml:"ohlc_d"`
	Tick   string `yaml:"tick"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MVendorConfig struct {
	Type         string `yaml:"type"` // gateway | simulated
	BaseURL      string `yaml:"base_url"`
	StreamURL    string `yaml:"stream_url"`
	LoginTimeout int    `yaml:"login_timeout_seconds"`
}

type MCatalogConfig struct {
	Type    string   `yaml:"type"` // static | table | http
	Symbols []string `yaml:"symbols"`
	URL     string   `yaml:"url"`
	Schema  string   `yaml:"schema"`
	Table   string   `yaml:"table"`
	Field   string   `yaml:"field"`
}

type MBridgeConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	CacheBars int `yaml:"cache_bars"`
}

type MOHLCConfig struct {
	IndicatorType       string `yaml:"indicator_type"`
	BarInterval         string `yaml:"bar_interval"`
	StartDateOffsetDays int    `yaml:"startdate_offset_days"`
	VendorWaitAttempts  int    `yaml:"vendor_wait_attempts"`
	VendorWaitInterval  int    `yaml:"vendor_wait_interval_ms"`
	SymbolTimeout       int    `yaml:"symbol_timeout_seconds"` // 0 waits until stopped
	AutoStartAfterClose bool   `yaml:"auto_start_after_close"`
}

type MTickConfig struct {
	Concurrency         int `yaml:"concurrency"`
	StartDateOffsetDays int `yaml:"startdate_offset_days"`
}

type MMarketConfig struct {
	MIC       string `yaml:"mic"`
	OpenHour  string `yaml:"open_hour"`  // HH:MM, optional
	CloseHour string `yaml:"close_hour"` // HH:MM, optional
}

type MEndpointConfig struct {
	Prefix        string `yaml:"prefix"`
	Snapshot      string `yaml:"snapshot"`
	Shutdown      string `yaml:"shutdown"`
	Restart       string `yaml:"restart"`
	Info          string `yaml:"info"`
	Service       string `yaml:"service"`
	Subscription  string `yaml:"subscription"`
	Subscriptions string `yaml:"subscriptions"`
	OHLC          string `yaml:"ohlc"`
	OHLCD         string `yaml:"ohlc_d"`
	Tick          string `yaml:"tick"`
}

type MSecrets struct {
	APIUsername string
	APIPassword string
	SQLURI      string
}
