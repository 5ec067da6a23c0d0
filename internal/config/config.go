package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigFileName is the config file looked up in the config directory.
const ConfigFileName = "markermap.cfg.json"

// ServerConfig holds the HTTP/websocket listener settings.
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
	ClientBuffer    int           `json:"clientBuffer" mapstructure:"clientBuffer"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps
// the database in memory and dumps it to DumpPath every DumpInterval.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// DSN builds the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=%s`,
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type          string         `json:"type" mapstructure:"type"` // none, memory, sqlite, postgres
	FlushInterval time.Duration  `json:"flushInterval" mapstructure:"flushInterval"`
	Restore       bool           `json:"restore" mapstructure:"restore"`
	Memory        MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// HostConfig selects how marker selections reach the host application.
type HostConfig struct {
	Type    string        `json:"type" mapstructure:"type"` // none, websocket, http, nats
	URL     string        `json:"url" mapstructure:"url"`
	Secret  string        `json:"secret" mapstructure:"secret"`
	Subject string        `json:"subject" mapstructure:"subject"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB v2 settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns the server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF output settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// MapConfig holds map view settings.
type MapConfig struct {
	ReferenceZoom int     `json:"referenceZoom" mapstructure:"referenceZoom"`
	CenterLat     float64 `json:"centerLat" mapstructure:"centerLat"`
	CenterLon     float64 `json:"centerLon" mapstructure:"centerLon"`
	TileURL       string  `json:"tileUrl" mapstructure:"tileUrl"`
	SeedFile      string  `json:"seedFile" mapstructure:"seedFile"`
}

// MonitorConfig holds the periodic registry monitor settings.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./markermaplogs")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.clientBuffer", 256)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.restore", true)
	viper.SetDefault("storage.memory.outputDir", "./exports")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./markermap.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "markermap")
	viper.SetDefault("storage.postgres.sslMode", "disable")

	viper.SetDefault("host.type", "none")
	viper.SetDefault("host.url", "")
	viper.SetDefault("host.secret", "")
	viper.SetDefault("host.subject", "markermap.selected")
	viper.SetDefault("host.timeout", "10s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "markermap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "markermap")
	viper.SetDefault("influx.bucket", "markermap")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("map.referenceZoom", 8)
	viper.SetDefault("map.centerLat", 38.0)
	viper.SetDefault("map.centerLon", 23.7)
	viper.SetDefault("map.tileUrl", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	viper.SetDefault("map.seedFile", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1m")
}

// Load reads configuration from the JSON file and environment and sets
// default values. configDir is the directory containing the config file and
// an optional .env file. Values from MARKERMAP_* environment variables
// override the file (MARKERMAP_STORAGE_TYPE -> storage.type).
//
// A missing config file is returned as ErrNoConfigFile; defaults and the
// environment still apply.
func Load(configDir string) error {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	setDefaults()

	viper.SetEnvPrefix("MARKERMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %v", ErrNoConfigFile, err)
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// ErrNoConfigFile is returned by Load when no config file exists.
var ErrNoConfigFile = errors.New("config file not found")

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetServerConfig returns the listener configuration.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            viper.GetString("server.addr"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
		ClientBuffer:    viper.GetInt("server.clientBuffer"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Restore:       viper.GetBool("storage.restore"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
	}
}

// GetHostConfig returns the host notifier configuration.
func GetHostConfig() HostConfig {
	return HostConfig{
		Type:    viper.GetString("host.type"),
		URL:     viper.GetString("host.url"),
		Secret:  viper.GetString("host.secret"),
		Subject: viper.GetString("host.subject"),
		Timeout: viper.GetDuration("host.timeout"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF output configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetMapConfig returns the map view configuration.
func GetMapConfig() MapConfig {
	return MapConfig{
		ReferenceZoom: viper.GetInt("map.referenceZoom"),
		CenterLat:     viper.GetFloat64("map.centerLat"),
		CenterLon:     viper.GetFloat64("map.centerLon"),
		TileURL:       viper.GetString("map.tileUrl"),
		SeedFile:      viper.GetString("map.seedFile"),
	}
}

// GetMonitorConfig returns the registry monitor configuration.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
