package config

import "time"

// Config represents the complete bot configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Bot      BotConfig      `toml:"bot"`
	Trigger  TriggerConfig  `toml:"trigger"`
	Cooldown CooldownConfig `toml:"cooldown"`
	Actuator ActuatorConfig `toml:"actuator"`
	Limits   LimitsConfig   `toml:"limits"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// ServerConfig contains IRC server connection settings
type ServerConfig struct {
	Address          string   `toml:"address"`
	Port             int      `toml:"port"`
	TLS              bool     `toml:"tls"`
	Nickname         string   `toml:"nickname"`
	AltNicknames     []string `toml:"alt_nicknames"`
	Username         string   `toml:"username"`
	Realname         string   `toml:"realname"`
	MaxMessageLength int      `toml:"max_message_length"`
}

// AuthConfig contains authentication credentials
type AuthConfig struct {
	SASLUsername     string `toml:"sasl_username"`
	SASLPassword     string `toml:"sasl_password"`
	NickServPassword string `toml:"nickserv_password"`
}

// BotConfig contains bot behavior settings
type BotConfig struct {
	CommandPrefix     string   `toml:"command_prefix"`
	Channels          []string `toml:"channels"`
	Operators         []string `toml:"operators"`
	TestMode          bool     `toml:"test_mode"`
	AdminPasswordHash string   `toml:"admin_password_hash"`
	NotifyOnFailure   bool     `toml:"notify_on_failure"`
	HandlerTimeout    int      `toml:"handler_timeout"`
}

// TriggerConfig contains the words that make a message a fire request
type TriggerConfig struct {
	Words []string `toml:"words"`
}

// Tracker key modes
const (
	KeyByNick     = "nick"
	KeyByHostmask = "hostmask"
)

// CooldownConfig contains the per-user fire window settings
type CooldownConfig struct {
	WindowSeconds     int    `toml:"window_seconds"`
	MaxFiresPerWindow int    `toml:"max_fires_per_window"`
	KeyBy             string `toml:"key_by"`
	CleanupInterval   int    `toml:"cleanup_interval"`
}

// ActuatorConfig contains PiShock API settings
type ActuatorConfig struct {
	Endpoint                string `toml:"endpoint"`
	Username                string `toml:"username"`
	APIKey                  string `toml:"api_key"`
	ShareCode               string `toml:"share_code"`
	Name                    string `toml:"name"`
	Operation               string `toml:"operation"`
	Intensity               int    `toml:"intensity"`
	DurationSeconds         int    `toml:"duration_seconds"`
	Timeout                 int    `toml:"timeout"`
	CircuitBreakerThreshold int    `toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   int    `toml:"circuit_breaker_timeout"`
	MaxRetries              int    `toml:"max_retries"`
	RetryBackoffMS          int    `toml:"retry_backoff_ms"`
}

// LimitsConfig contains outbound rate limiting and backoff settings
type LimitsConfig struct {
	RateLimitMessages int `toml:"rate_limit_messages"`
	RateLimitWindow   int `toml:"rate_limit_window"`
	MaxMessageQueue   int `toml:"max_message_queue"`
	ReconnectDelayMin int `toml:"reconnect_delay_min"`
	ReconnectDelayMax int `toml:"reconnect_delay_max"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path               string `toml:"path"`
	WALMode            bool   `toml:"wal_mode"`
	VacuumInterval     int    `toml:"vacuum_interval"`
	EventRetentionDays int    `toml:"event_retention_days"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Debug         bool   `toml:"debug"`
	ErrorLogPath  string `toml:"error_log_path"`
	MaxLogSizeMB  int    `toml:"max_log_size_mb"`
	MaxLogFiles   int    `toml:"max_log_files"`
	MaxLogAgeDays int    `toml:"max_log_age_days"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// GetHandlerTimeoutDuration returns the per-message handling timeout
func (c *BotConfig) GetHandlerTimeoutDuration() time.Duration {
	return time.Duration(c.HandlerTimeout) * time.Second
}

// GetWindowDuration returns the fire window as a time.Duration
func (c *CooldownConfig) GetWindowDuration() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// GetCleanupIntervalDuration returns how often elapsed windows are evicted
func (c *CooldownConfig) GetCleanupIntervalDuration() time.Duration {
	return time.Duration(c.CleanupInterval) * time.Second
}

// GetDuration returns the actuation duration as a time.Duration
func (c *ActuatorConfig) GetDuration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// GetTimeoutDuration returns the HTTP timeout as a time.Duration
func (c *ActuatorConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetCircuitBreakerTimeoutDuration returns the circuit breaker timeout as a time.Duration
func (c *ActuatorConfig) GetCircuitBreakerTimeoutDuration() time.Duration {
	return time.Duration(c.CircuitBreakerTimeout) * time.Second
}

// GetRetryBackoffDuration returns the initial retry backoff as a time.Duration
func (c *ActuatorConfig) GetRetryBackoffDuration() time.Duration {
	return time.Duration(c.RetryBackoffMS) * time.Millisecond
}

// GetReconnectDelayMinDuration returns the minimum reconnect delay as a time.Duration
func (c *LimitsConfig) GetReconnectDelayMinDuration() time.Duration {
	return time.Duration(c.ReconnectDelayMin) * time.Second
}

// GetReconnectDelayMaxDuration returns the maximum reconnect delay as a time.Duration
func (c *LimitsConfig) GetReconnectDelayMaxDuration() time.Duration {
	return time.Duration(c.ReconnectDelayMax) * time.Second
}

// GetVacuumIntervalDuration returns the vacuum interval as a time.Duration
func (c *DatabaseConfig) GetVacuumIntervalDuration() time.Duration {
	return time.Duration(c.VacuumInterval) * time.Second
}

// GetEventRetention returns how long fire events are kept
func (c *DatabaseConfig) GetEventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}
