package core

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default provider endpoints.
const (
	DefaultMetaBaseURL    = "https://graph.facebook.com"
	DefaultMetaAPIVersion = "v21.0"
	DefaultGA4Endpoint    = "https://www.google-analytics.com/mp/collect"
	DefaultGHLBaseURL     = "https://services.leadconnectorhq.com"
	DefaultGHLAPIVersion  = "2021-07-28"
	DefaultTelemetryTopic = "funnel.dispatch"
)

// Config represents the main application configuration.
type Config struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int      `yaml:"port"`
		ReadTimeoutMS  int64    `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64    `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64    `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64    `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
		DebugEvents    bool     `yaml:"debug_events"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		SetupSecret    string   `yaml:"setup_secret"`
	} `yaml:"server"`
	// Providers holds credentials for each downstream provider.
	Providers ProvidersConfig `yaml:"providers"`
	// Telemetry configures the dispatch outcome publisher.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProvidersConfig groups the per-provider credentials.
type ProvidersConfig struct {
	Meta             AdConversionConfig `yaml:"meta"`
	GA4              WebAnalyticsConfig `yaml:"ga4"`
	GHL              CrmContactConfig   `yaml:"ghl"`
	RequestTimeoutMS int64              `yaml:"request_timeout_ms"`
}

// AdConversionConfig holds Meta Conversions API credentials.
type AdConversionConfig struct {
	PixelID       string `yaml:"pixel_id"`
	AccessToken   string `yaml:"access_token"`
	TestEventCode string `yaml:"test_event_code"`
	BaseURL       string `yaml:"base_url"`
	APIVersion    string `yaml:"api_version"`
}

// WebAnalyticsConfig holds GA4 Measurement Protocol credentials.
type WebAnalyticsConfig struct {
	MeasurementID string `yaml:"measurement_id"`
	APISecret     string `yaml:"api_secret"`
	Endpoint      string `yaml:"endpoint"`
}

// CrmContactConfig holds GoHighLevel credentials.
type CrmContactConfig struct {
	APIKey     string `yaml:"api_key"`
	LocationID string `yaml:"location_id"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
}

// TelemetryConfig holds the configuration for the watermill outcome publisher.
type TelemetryConfig struct {
	Driver    string          `yaml:"driver"`
	Drivers   []string        `yaml:"drivers"`
	Topic     string          `yaml:"topic"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	NATS      NATSConfig      `yaml:"nats"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	SQL       SQLConfig       `yaml:"sql"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer int64 `yaml:"output_buffer"`
	Persistent          bool  `yaml:"persistent"`
}

// KafkaConfig holds configuration for the Kafka publisher.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumer_group"`
}

// NATSConfig holds configuration for the NATS streaming publisher.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
	Durable   string `yaml:"durable"`
}

// AMQPConfig holds configuration for the AMQP publisher.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL publisher.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
	ConsumerGroup        string `yaml:"consumer_group"`
}

// HTTPConfig holds configuration for the HTTP publisher.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// LoadConfig loads the configuration from a YAML file, expanding ${VAR}
// references, then overlays the process environment and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing file,
// in which case the configuration comes from the environment alone.
func LoadConfigOptional(path string) (Config, error) {
	if strings.TrimSpace(path) != "" {
		cfg, err := LoadConfig(path)
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}
	var cfg Config
	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return cfg, nil
}

// applyEnv overlays the environment variables understood by the original
// tracking server. Non-empty variables win over file values.
func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			*dst = value
		}
	}
	if port, err := strconv.Atoi(strings.TrimSpace(getenv("PORT"))); err == nil && port > 0 {
		cfg.Server.Port = port
	}
	if origins := splitList(getenv("ALLOWED_ORIGINS")); len(origins) > 0 {
		cfg.Server.AllowedOrigins = origins
	}
	set(&cfg.Server.SetupSecret, "SETUP_SECRET")
	set(&cfg.Providers.Meta.PixelID, "META_PIXEL_ID")
	set(&cfg.Providers.Meta.AccessToken, "META_ACCESS_TOKEN")
	set(&cfg.Providers.Meta.TestEventCode, "META_TEST_EVENT_CODE")
	set(&cfg.Providers.GA4.MeasurementID, "GA4_MEASUREMENT_ID")
	set(&cfg.Providers.GA4.APISecret, "GA4_API_SECRET")
	set(&cfg.Providers.GHL.APIKey, "GHL_API_KEY")
	set(&cfg.Providers.GHL.LocationID, "GHL_LOCATION_ID")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 30000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	cfg.Server.AllowedOrigins = splitList(strings.Join(cfg.Server.AllowedOrigins, ","))
	if cfg.Providers.RequestTimeoutMS == 0 {
		cfg.Providers.RequestTimeoutMS = 10000
	}
	if cfg.Providers.Meta.BaseURL == "" {
		cfg.Providers.Meta.BaseURL = DefaultMetaBaseURL
	}
	if cfg.Providers.Meta.APIVersion == "" {
		cfg.Providers.Meta.APIVersion = DefaultMetaAPIVersion
	}
	if cfg.Providers.GA4.Endpoint == "" {
		cfg.Providers.GA4.Endpoint = DefaultGA4Endpoint
	}
	if cfg.Providers.GHL.BaseURL == "" {
		cfg.Providers.GHL.BaseURL = DefaultGHLBaseURL
	}
	if cfg.Providers.GHL.APIVersion == "" {
		cfg.Providers.GHL.APIVersion = DefaultGHLAPIVersion
	}
	if cfg.Telemetry.Topic == "" {
		cfg.Telemetry.Topic = DefaultTelemetryTopic
	}
	if cfg.Telemetry.GoChannel.OutputChannelBuffer == 0 {
		cfg.Telemetry.GoChannel.OutputChannelBuffer = 64
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Configured reports whether the pixel id and access token are both set.
func (c AdConversionConfig) Configured() bool {
	return strings.TrimSpace(c.PixelID) != "" && strings.TrimSpace(c.AccessToken) != ""
}

// Configured reports whether the measurement id and api secret are both set.
func (c WebAnalyticsConfig) Configured() bool {
	return strings.TrimSpace(c.MeasurementID) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Configured reports whether the api key and location id are both set.
func (c CrmContactConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.LocationID) != ""
}

// ActiveAdConversion returns the Meta credentials, or nil when the provider is disabled.
func (p ProvidersConfig) ActiveAdConversion() *AdConversionConfig {
	if !p.Meta.Configured() {
		return nil
	}
	cfg := p.Meta
	return &cfg
}

// ActiveWebAnalytics returns the GA4 credentials, or nil when the provider is disabled.
func (p ProvidersConfig) ActiveWebAnalytics() *WebAnalyticsConfig {
	if !p.GA4.Configured() {
		return nil
	}
	cfg := p.GA4
	return &cfg
}

// ActiveCrmContact returns the GHL credentials, or nil when the provider is disabled.
func (p ProvidersConfig) ActiveCrmContact() *CrmContactConfig {
	if !p.GHL.Configured() {
		return nil
	}
	cfg := p.GHL
	return &cfg
}

// Integrations reports which providers are configured, keyed the way /health exposes them.
func (p ProvidersConfig) Integrations() map[string]bool {
	return map[string]bool{
		"meta_capi": p.Meta.Configured(),
		"ga4":       p.GA4.Configured(),
		"ghl":       p.GHL.Configured(),
	}
}

// ActiveDrivers returns the configured outcome publisher drivers.
func (c TelemetryConfig) ActiveDrivers() []string {
	drivers := c.Drivers
	if len(drivers) == 0 && strings.TrimSpace(c.Driver) != "" {
		drivers = []string{c.Driver}
	}
	out := make([]string, 0, len(drivers))
	for _, driver := range drivers {
		if trimmed := strings.ToLower(strings.TrimSpace(driver)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
