package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/yourusername/jolt/internal/trigger"
)

const (
	defaultConfigPath = "config/bot.toml"
	defaultEnvFile    = ".env"

	maxIntensity       = 100
	maxDurationSeconds = 15
)

// Operations accepted by actuator.operation
var validOperations = map[string]bool{
	"shock":   true,
	"vibrate": true,
	"beep":    true,
}

// secretOverrides are read from the environment after the TOML file so
// credentials do not have to live in bot.toml
type secretOverrides struct {
	ActuatorAPIKey    string `env:"JOLT_ACTUATOR_API_KEY"`
	SASLPassword      string `env:"JOLT_SASL_PASSWORD"`
	NickServPassword  string `env:"JOLT_NICKSERV_PASSWORD"`
	AdminPasswordHash string `env:"JOLT_ADMIN_PASSWORD_HASH"`
}

// Load reads and parses the configuration file from the specified path.
// If path is empty, it uses the default path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found at %s", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	fillDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrCreate attempts to load the configuration file, and if it doesn't exist,
// creates a default configuration file and returns the default config.
func LoadOrCreate(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("Configuration file not found. Creating default configuration at %s\n", path)

		defaultCfg := DefaultConfig()
		if err := CreateDefault(path, defaultCfg); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}

		if err := applyEnvOverrides(defaultCfg); err != nil {
			return nil, err
		}
		return defaultCfg, nil
	}

	return Load(path)
}

// CreateDefault creates a default configuration file at the specified path
func CreateDefault(path string, cfg *Config) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults for Libera.Chat.
// Test mode is on so a fresh install never reaches a real device.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          "irc.libera.chat",
			Port:             6697,
			TLS:              true,
			Nickname:         "Jolt",
			AltNicknames:     []string{"Jolt_", "Jolt__"},
			Username:         "jolt",
			Realname:         "Jolt actuator bot",
			MaxMessageLength: 400,
		},
		Auth: AuthConfig{
			SASLUsername: "Jolt",
		},
		Bot: BotConfig{
			CommandPrefix:   "!",
			Channels:        []string{"#yourchannel"},
			Operators:       []string{},
			TestMode:        true,
			NotifyOnFailure: false,
			HandlerTimeout:  30,
		},
		Trigger: TriggerConfig{
			Words: []string{"zap", "shock"},
		},
		Cooldown: CooldownConfig{
			WindowSeconds:     60,
			MaxFiresPerWindow: 2,
			KeyBy:             KeyByNick,
			CleanupInterval:   300,
		},
		Actuator: ActuatorConfig{
			Endpoint:                "https://do.pishock.com/api/apioperate/",
			Name:                    "jolt",
			Operation:               "shock",
			Intensity:               40,
			DurationSeconds:         1,
			Timeout:                 10,
			CircuitBreakerThreshold: 5,  // consecutive failures before opening
			CircuitBreakerTimeout:   30, // seconds before a probe is allowed
			MaxRetries:              2,
			RetryBackoffMS:          250, // doubles each retry
		},
		Limits: LimitsConfig{
			RateLimitMessages: 1,
			RateLimitWindow:   1,
			MaxMessageQueue:   100,
			ReconnectDelayMin: 5,
			ReconnectDelayMax: 300,
		},
		Database: DatabaseConfig{
			Path:               "data/jolt.db",
			WALMode:            true,
			VacuumInterval:     86400, // 24 hours in seconds
			EventRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Debug:         false,
			ErrorLogPath:  "data/error.log",
			MaxLogSizeMB:  10,
			MaxLogFiles:   5,
			MaxLogAgeDays: 28,
		},
		Metrics: MetricsConfig{
			ListenAddress: "127.0.0.1:9464",
		},
	}
}

// fillDefaults sets optional keys a hand-written file may leave out
func fillDefaults(cfg *Config) {
	if cfg.Cooldown.KeyBy == "" {
		cfg.Cooldown.KeyBy = KeyByNick
	}
}

// dotenvSource looks keys up in the process environment first, then in .env
type dotenvSource map[string]string

func (s dotenvSource) LookupEnv(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	value, ok := s[key]
	return value, ok
}

// applyEnvOverrides replaces credentials with non-empty values from the
// environment or the .env file in the working directory
func applyEnvOverrides(cfg *Config) error {
	dotenv, err := godotenv.Read(defaultEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", defaultEnvFile, err)
	}

	var secrets secretOverrides
	if err := env.Load(&secrets, &env.Options{Source: dotenvSource(dotenv)}); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if secrets.ActuatorAPIKey != "" {
		cfg.Actuator.APIKey = secrets.ActuatorAPIKey
	}
	if secrets.SASLPassword != "" {
		cfg.Auth.SASLPassword = secrets.SASLPassword
	}
	if secrets.NickServPassword != "" {
		cfg.Auth.NickServPassword = secrets.NickServPassword
	}
	if secrets.AdminPasswordHash != "" {
		cfg.Bot.AdminPasswordHash = secrets.AdminPasswordHash
	}

	return nil
}

// TriggerConfig builds the immutable evaluator configuration
func (c *Config) TriggerConfig() *trigger.Config {
	return trigger.NewConfig(c.Bot.Operators, c.Trigger.Words)
}

// Validate checks an already loaded configuration
func (c *Config) Validate() error {
	return validate(c)
}

// validate checks that all required configuration fields are present and valid
func validate(cfg *Config) error {
	// Server
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.Nickname == "" {
		return fmt.Errorf("server.nickname is required")
	}
	if cfg.Server.Username == "" {
		return fmt.Errorf("server.username is required")
	}
	if cfg.Server.Realname == "" {
		return fmt.Errorf("server.realname is required")
	}
	if cfg.Server.MaxMessageLength <= 0 {
		return fmt.Errorf("server.max_message_length must be positive, got %d", cfg.Server.MaxMessageLength)
	}

	// Bot
	if cfg.Bot.CommandPrefix == "" {
		return fmt.Errorf("bot.command_prefix is required")
	}
	if cfg.Bot.HandlerTimeout <= 0 {
		return fmt.Errorf("bot.handler_timeout must be positive, got %d", cfg.Bot.HandlerTimeout)
	}
	for _, op := range cfg.Bot.Operators {
		if strings.TrimSpace(op) == "" {
			return fmt.Errorf("bot.operators must not contain empty entries")
		}
	}

	// Trigger
	for _, word := range cfg.Trigger.Words {
		if !trigger.IsWord(strings.TrimSpace(word)) {
			return fmt.Errorf("trigger.words entry %q must be a single word of letters, digits or underscores", word)
		}
	}

	// Cooldown
	if cfg.Cooldown.WindowSeconds <= 0 {
		return fmt.Errorf("cooldown.window_seconds must be positive, got %d", cfg.Cooldown.WindowSeconds)
	}
	if cfg.Cooldown.MaxFiresPerWindow < 0 {
		return fmt.Errorf("cooldown.max_fires_per_window must be non-negative, got %d", cfg.Cooldown.MaxFiresPerWindow)
	}
	if cfg.Cooldown.KeyBy != KeyByNick && cfg.Cooldown.KeyBy != KeyByHostmask {
		return fmt.Errorf("cooldown.key_by must be %q or %q, got %q", KeyByNick, KeyByHostmask, cfg.Cooldown.KeyBy)
	}
	if cfg.Cooldown.CleanupInterval <= 0 {
		return fmt.Errorf("cooldown.cleanup_interval must be positive, got %d", cfg.Cooldown.CleanupInterval)
	}

	// Actuator
	if !validOperations[cfg.Actuator.Operation] {
		return fmt.Errorf("actuator.operation must be shock, vibrate or beep, got %q", cfg.Actuator.Operation)
	}
	if cfg.Actuator.Intensity < 1 || cfg.Actuator.Intensity > maxIntensity {
		return fmt.Errorf("actuator.intensity must be between 1 and %d, got %d", maxIntensity, cfg.Actuator.Intensity)
	}
	if cfg.Actuator.DurationSeconds < 1 || cfg.Actuator.DurationSeconds > maxDurationSeconds {
		return fmt.Errorf("actuator.duration_seconds must be between 1 and %d, got %d", maxDurationSeconds, cfg.Actuator.DurationSeconds)
	}
	if cfg.Actuator.Timeout <= 0 {
		return fmt.Errorf("actuator.timeout must be positive, got %d", cfg.Actuator.Timeout)
	}
	if cfg.Actuator.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("actuator.circuit_breaker_threshold must be positive, got %d", cfg.Actuator.CircuitBreakerThreshold)
	}
	if cfg.Actuator.CircuitBreakerTimeout <= 0 {
		return fmt.Errorf("actuator.circuit_breaker_timeout must be positive, got %d", cfg.Actuator.CircuitBreakerTimeout)
	}
	if cfg.Actuator.MaxRetries < 0 {
		return fmt.Errorf("actuator.max_retries must be non-negative, got %d", cfg.Actuator.MaxRetries)
	}
	if cfg.Actuator.RetryBackoffMS <= 0 {
		return fmt.Errorf("actuator.retry_backoff_ms must be positive, got %d", cfg.Actuator.RetryBackoffMS)
	}
	if !cfg.Bot.TestMode {
		if cfg.Actuator.Endpoint == "" {
			return fmt.Errorf("actuator.endpoint is required")
		}
		if cfg.Actuator.Username == "" {
			return fmt.Errorf("actuator.username is required unless bot.test_mode is set")
		}
		if cfg.Actuator.APIKey == "" {
			return fmt.Errorf("actuator.api_key is required unless bot.test_mode is set")
		}
		if cfg.Actuator.ShareCode == "" {
			return fmt.Errorf("actuator.share_code is required unless bot.test_mode is set")
		}
	}

	// Limits
	if cfg.Limits.RateLimitMessages <= 0 {
		return fmt.Errorf("limits.rate_limit_messages must be positive, got %d", cfg.Limits.RateLimitMessages)
	}
	if cfg.Limits.RateLimitWindow <= 0 {
		return fmt.Errorf("limits.rate_limit_window must be positive, got %d", cfg.Limits.RateLimitWindow)
	}
	if cfg.Limits.MaxMessageQueue <= 0 {
		return fmt.Errorf("limits.max_message_queue must be positive, got %d", cfg.Limits.MaxMessageQueue)
	}
	if cfg.Limits.ReconnectDelayMin <= 0 {
		return fmt.Errorf("limits.reconnect_delay_min must be positive, got %d", cfg.Limits.ReconnectDelayMin)
	}
	if cfg.Limits.ReconnectDelayMax <= 0 {
		return fmt.Errorf("limits.reconnect_delay_max must be positive, got %d", cfg.Limits.ReconnectDelayMax)
	}
	if cfg.Limits.ReconnectDelayMin > cfg.Limits.ReconnectDelayMax {
		return fmt.Errorf("limits.reconnect_delay_min (%d) cannot be greater than reconnect_delay_max (%d)",
			cfg.Limits.ReconnectDelayMin, cfg.Limits.ReconnectDelayMax)
	}

	// Database
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Database.VacuumInterval <= 0 {
		return fmt.Errorf("database.vacuum_interval must be positive, got %d", cfg.Database.VacuumInterval)
	}
	if cfg.Database.EventRetentionDays <= 0 {
		return fmt.Errorf("database.event_retention_days must be positive, got %d", cfg.Database.EventRetentionDays)
	}

	// Logging
	if cfg.Logging.ErrorLogPath == "" {
		return fmt.Errorf("logging.error_log_path is required")
	}
	if cfg.Logging.MaxLogSizeMB <= 0 {
		return fmt.Errorf("logging.max_log_size_mb must be positive, got %d", cfg.Logging.MaxLogSizeMB)
	}
	if cfg.Logging.MaxLogFiles <= 0 {
		return fmt.Errorf("logging.max_log_files must be positive, got %d", cfg.Logging.MaxLogFiles)
	}
	if cfg.Logging.MaxLogAgeDays < 0 {
		return fmt.Errorf("logging.max_log_age_days must be non-negative, got %d", cfg.Logging.MaxLogAgeDays)
	}

	return nil
}
