package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `json:"app"`
	Ingest   IngestConfig   `json:"ingest"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Env              string        `json:"env"`               // runtime environment: local / prod
	LogLevel         string        `json:"log_level"`         // debug / info / warn / error
	HTTPAddr         string        `json:"http_addr"`         // API listen address
	ScheduleInterval time.Duration `json:"schedule_interval"` // time between ingestion runs (e.g. "6h")
	FetchTimeout     time.Duration `json:"fetch_timeout"`     // per-source feed download timeout
	RunLockTTL       time.Duration `json:"run_lock_ttl"`      // ingestion lease lifetime
}

// IngestConfig holds feed ingestion settings.
type IngestConfig struct {
	Sources         string `json:"sources"`          // feed URLs or file paths, comma or semicolon separated
	DefaultCategory string `json:"default_category"` // category applied when a feed row has none
	NotifyEmail     string `json:"notify_email"`     // recipient for run reports, empty disables
	SeedDemoData    bool   `json:"seed_demo_data"`   // populate the demo catalog on startup
}

// SourceList splits Sources on commas and semicolons, dropping blanks.
func (c IngestConfig) SourceList() []string {
	fields := strings.FieldsFunc(c.Sources, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// MySQLConfig holds the database settings.
type MySQLConfig struct {
	DSN string `json:"dsn"` // connection string
}

// RedisConfig holds the cache settings.
type RedisConfig struct {
	Addr     string `json:"addr"`     // host:port, empty disables redis
	Password string `json:"password"`
}

// EmailConfig holds SMTP settings for run reports.
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig holds access control settings.
type SecurityConfig struct {
	AdminKey string `json:"admin_key"` // shared key for admin endpoints, empty disables them
}

// Load reads configuration from a JSON file.
//
// It tries configs/config.json by default and falls back to built-in
// defaults when the file does not exist. Environment variables override
// values from the file.
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault loads configuration, returning defaults on any error.
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// Save writes the configuration to a JSON file.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:              "local",
			LogLevel:         "info",
			HTTPAddr:         ":8080",
			ScheduleInterval: 6 * time.Hour,
			FetchTimeout:     30 * time.Second,
			RunLockTTL:       30 * time.Minute,
		},
		Ingest: IngestConfig{
			Sources:         "",
			DefaultCategory: "skis-all-mountain",
			NotifyEmail:     "",
			SeedDemoData:    false,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/pricehound?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			AdminKey: "",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.ScheduleInterval == 0 {
		cfg.App.ScheduleInterval = defaults.App.ScheduleInterval
	}
	if cfg.App.FetchTimeout == 0 {
		cfg.App.FetchTimeout = defaults.App.FetchTimeout
	}
	if cfg.App.RunLockTTL == 0 {
		cfg.App.RunLockTTL = defaults.App.RunLockTTL
	}
	if cfg.Ingest.DefaultCategory == "" {
		cfg.Ingest.DefaultCategory = defaults.Ingest.DefaultCategory
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("admin_key", "ADMIN_KEY")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_SCHEDULE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.ScheduleInterval = d
		}
	}
	if v := os.Getenv("APP_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FetchTimeout = d
		}
	}
	if v := os.Getenv("APP_RUN_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RunLockTTL = d
		}
	}

	if v := os.Getenv("INGEST_SOURCES"); v != "" {
		cfg.Ingest.Sources = v
	}
	if v := os.Getenv("INGEST_DEFAULT_CATEGORY"); v != "" {
		cfg.Ingest.DefaultCategory = v
	}
	if v := os.Getenv("INGEST_NOTIFY_EMAIL"); v != "" {
		cfg.Ingest.NotifyEmail = v
	}
	if v := os.Getenv("INGEST_SEED_DEMO_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ingest.SeedDemoData = b
		}
	}

	if v := viper.GetString("admin_key"); v != "" {
		cfg.Security.AdminKey = v
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "pricehound",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON accepts durations written as strings, e.g. "6h".
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		ScheduleInterval string `json:"schedule_interval"`
		FetchTimeout     string `json:"fetch_timeout"`
		RunLockTTL       string `json:"run_lock_ttl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.ScheduleInterval != "" {
		duration, err := time.ParseDuration(aux.ScheduleInterval)
		if err != nil {
			return fmt.Errorf("invalid schedule_interval format: %w", err)
		}
		a.ScheduleInterval = duration
	}
	if aux.FetchTimeout != "" {
		duration, err := time.ParseDuration(aux.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout format: %w", err)
		}
		a.FetchTimeout = duration
	}
	if aux.RunLockTTL != "" {
		duration, err := time.ParseDuration(aux.RunLockTTL)
		if err != nil {
			return fmt.Errorf("invalid run_lock_ttl format: %w", err)
		}
		a.RunLockTTL = duration
	}

	return nil
}

// MarshalJSON renders durations as strings.
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		ScheduleInterval string `json:"schedule_interval"`
		FetchTimeout     string `json:"fetch_timeout"`
		RunLockTTL       string `json:"run_lock_ttl"`
		*Alias
	}{
		ScheduleInterval: a.ScheduleInterval.String(),
		FetchTimeout:     a.FetchTimeout.String(),
		RunLockTTL:       a.RunLockTTL.String(),
		Alias:            (*Alias)(&a),
	})
}
