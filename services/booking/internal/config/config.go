package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, relative to the working directory.
const ConfigPath = "config.yaml"

const (
	defaultStartHour = 9
	defaultEndHour   = 21
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
	BackendAMQP   = "amqp"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                      string   `yaml:"port"`
	LogLevel                  string   `yaml:"logLevel"`
	Env                       string   `yaml:"env"`
	Timezone                  string   `yaml:"timezone"`
	BookingStartHour          *int     `yaml:"bookingStartHour"`
	BookingEndHour            *int     `yaml:"bookingEndHour"`
	DaysInAdvance             int      `yaml:"daysInAdvance"`
	AdminIDs                  []string `yaml:"adminIds"`
	AdminPassword             string   `yaml:"adminPassword"`
	AdminPasswordHash         string   `yaml:"adminPasswordHash"`
	AdminSessionTTL           string   `yaml:"adminSessionTTL"`
	AdminTokenSecret          string   `yaml:"adminTokenSecret"`
	ConversationTTL           string   `yaml:"conversationTTL"`
	ConversationSweepInterval string   `yaml:"conversationSweepInterval"`
	ConversationBackend       string   `yaml:"conversationBackend"`
	RedisAddr                 string   `yaml:"redisAddr"`
	RedisPassword             string   `yaml:"redisPassword"`
	PasswordAttemptsPerMinute int      `yaml:"passwordAttemptsPerMinute"`
	ActionsPerMinute          int      `yaml:"actionsPerMinute"`
	AdapterToken              string   `yaml:"adapterToken"`
	TrustedProxyCIDRs         []string `yaml:"trustedProxyCidrs"`
	EventsBackend             string   `yaml:"eventsBackend"`
	EventsStream              string   `yaml:"eventsStream"`
	AMQPURL                   string   `yaml:"amqpURL"`
	AMQPExchange              string   `yaml:"amqpExchange"`
}

// Path returns the config file location, honoring SLOTBOT_CONFIG.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("SLOTBOT_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// Load reads config from path (defaults to config.yaml), applies environment
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setString("PORT", &cfg.Port)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("APP_ENV", &cfg.Env)
	setString("BOOKING_TIMEZONE", &cfg.Timezone)
	setHour := func(key string, dst **int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = &n
			}
		}
	}
	setHour("BOOKING_START_HOUR", &cfg.BookingStartHour)
	setHour("BOOKING_END_HOUR", &cfg.BookingEndHour)
	setInt("DAYS_IN_ADVANCE", &cfg.DaysInAdvance)
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		cfg.AdminIDs = splitCSV(v)
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	setString("ADMIN_PASSWORD_HASH", &cfg.AdminPasswordHash)
	setString("ADMIN_SESSION_TTL", &cfg.AdminSessionTTL)
	setString("ADMIN_TOKEN_SECRET", &cfg.AdminTokenSecret)
	setString("CONVERSATION_TTL", &cfg.ConversationTTL)
	setString("CONVERSATION_SWEEP_INTERVAL", &cfg.ConversationSweepInterval)
	setString("CONVERSATION_BACKEND", &cfg.ConversationBackend)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setInt("ADMIN_PASSWORD_RATE_LIMIT_PER_MINUTE", &cfg.PasswordAttemptsPerMinute)
	setInt("ACTION_RATE_LIMIT_PER_MINUTE", &cfg.ActionsPerMinute)
	setString("ADAPTER_TOKEN", &cfg.AdapterToken)
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	setString("EVENTS_BACKEND", &cfg.EventsBackend)
	setString("EVENTS_STREAM", &cfg.EventsStream)
	setString("AMQP_URL", &cfg.AMQPURL)
	setString("AMQP_EXCHANGE", &cfg.AMQPExchange)
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	// Hour 0 is a valid start, so an unset bound is nil rather than zero.
	if cfg.BookingStartHour == nil {
		cfg.BookingStartHour = intPtr(defaultStartHour)
	}
	if cfg.BookingEndHour == nil {
		cfg.BookingEndHour = intPtr(defaultEndHour)
	}
	if cfg.DaysInAdvance == 0 {
		cfg.DaysInAdvance = 7
	}
	if cfg.AdminSessionTTL == "" {
		cfg.AdminSessionTTL = "12h"
	}
	if cfg.ConversationTTL == "" {
		cfg.ConversationTTL = "30m"
	}
	if cfg.ConversationSweepInterval == "" {
		cfg.ConversationSweepInterval = "1m"
	}
	cfg.ConversationBackend = strings.ToLower(cfg.ConversationBackend)
	if cfg.ConversationBackend == "" {
		cfg.ConversationBackend = BackendMemory
	}
	if cfg.PasswordAttemptsPerMinute == 0 {
		cfg.PasswordAttemptsPerMinute = 5
	}
	if cfg.ActionsPerMinute == 0 {
		cfg.ActionsPerMinute = 60
	}
	cfg.EventsBackend = strings.ToLower(cfg.EventsBackend)
	if cfg.EventsBackend == "" {
		cfg.EventsBackend = BackendNone
	}
	if cfg.EventsStream == "" {
		cfg.EventsStream = "slotbot:events"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "slotbot.events"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return fmt.Errorf("config: env must be %q or %q", EnvDevelopment, EnvProduction)
	}
	if start, end := cfg.StartHour(), cfg.EndHour(); start < 0 || end > 24 || start >= end {
		return errors.New("config: booking hours must satisfy 0 <= bookingStartHour < bookingEndHour <= 24")
	}
	if cfg.DaysInAdvance < 1 {
		return errors.New("config: daysInAdvance must be >= 1")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("config: invalid timezone %q: %w", cfg.Timezone, err)
	}
	for name, value := range map[string]string{
		"adminSessionTTL":           cfg.AdminSessionTTL,
		"conversationTTL":           cfg.ConversationTTL,
		"conversationSweepInterval": cfg.ConversationSweepInterval,
	} {
		if _, err := ParseDuration(name, value); err != nil {
			return err
		}
	}
	if cfg.PasswordAttemptsPerMinute < 0 || cfg.ActionsPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	switch cfg.ConversationBackend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis conversation backend")
		}
	default:
		return fmt.Errorf("config: unknown conversationBackend %q", cfg.ConversationBackend)
	}
	switch cfg.EventsBackend {
	case BackendNone:
	case BackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis events backend")
		}
	case BackendAMQP:
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for the amqp events backend (set in config.yaml or AMQP_URL)")
		}
	default:
		return fmt.Errorf("config: unknown eventsBackend %q", cfg.EventsBackend)
	}
	if secret := cfg.AdminTokenSecret; secret != "" && len(secret) < 32 {
		return errors.New("config: adminTokenSecret must be at least 32 bytes")
	}
	if cfg.Env == EnvProduction {
		if cfg.UsesDefaultPassword() {
			return errors.New("config: adminPassword or adminPasswordHash must be set to a non-default value in production")
		}
		if strings.TrimSpace(cfg.AdapterToken) == "" {
			return errors.New("config: adapterToken is required in production (set in config.yaml or ADAPTER_TOKEN)")
		}
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseDuration parses a duration setting and rejects non-positive values.
func ParseDuration(name, value string) (time.Duration, error) {
	dur, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", name)
	}
	return dur, nil
}

// UsesDefaultPassword reports whether the admin password falls back to "admin".
func (c FileConfig) UsesDefaultPassword() bool {
	return c.AdminPasswordHash == "" && (c.AdminPassword == "" || c.AdminPassword == "admin")
}

// StartHour returns the first bookable hour, or the default before Load fills it.
func (c FileConfig) StartHour() int {
	if c.BookingStartHour == nil {
		return defaultStartHour
	}
	return *c.BookingStartHour
}

// EndHour returns the hour the last slot ends.
func (c FileConfig) EndHour() int {
	if c.BookingEndHour == nil {
		return defaultEndHour
	}
	return *c.BookingEndHour
}

func intPtr(v int) *int { return &v }
