package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	BaasURL        string `yaml:"-"`
	BaasAnonKey    string `yaml:"-"`
	BaasServiceKey string `yaml:"-"`
	BaasJWTSecret  string `yaml:"-"`

	DatabaseURL  string `yaml:"-"`
	EnsureSchema bool   `yaml:"ensure_schema"`

	RedisAddr     string `yaml:"redis_addr"`
	SessionCookie string `yaml:"session_cookie"`
	AppURL        string `yaml:"app_url"`
	AuthRateLimit int    `yaml:"auth_rate_limit"`

	Log  LogConfig  `yaml:"log"`
	SMTP SMTPConfig `yaml:"-"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
	File  string `yaml:"file"`
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether every SMTP field is set.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != "" && s.Username != "" && s.Password != "" && s.From != ""
}

// Load reads .env (if present), the environment and the optional YAML overlay named by LOCALFIX_CONFIG.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:           get("PORT", "8080"),
		BaasURL:        strings.TrimRight(get("BAAS_URL", ""), "/"),
		BaasAnonKey:    get("BAAS_ANON_KEY", ""),
		BaasServiceKey: get("BAAS_SERVICE_KEY", ""),
		BaasJWTSecret:  get("BAAS_JWT_SECRET", ""),
		DatabaseURL:    databaseURL(),
		EnsureSchema:   getBool("ENSURE_SCHEMA", true),
		RedisAddr:      get("REDIS_ADDR", ""),
		SessionCookie:  get("SESSION_COOKIE", "sb-access-token"),
		AppURL:         strings.TrimRight(get("APP_URL", "http://localhost:3000"), "/"),
		AuthRateLimit:  getInt("AUTH_RATE_LIMIT", 20),
		Log: LogConfig{
			Level: get("LOG_LEVEL", ""),
			Dev:   os.Getenv("LOG_DEV") == "1",
			File:  get("LOG_FILE", ""),
		},
		SMTP: SMTPConfig{
			Host:     get("SMTP_HOST", ""),
			Port:     get("SMTP_PORT", ""),
			Username: get("SMTP_USERNAME", ""),
			Password: get("SMTP_PASSWORD", ""),
			From:     get("SMTP_FROM", ""),
		},
	}

	if path := os.Getenv("LOCALFIX_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config overlay: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config overlay %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the required settings that are missing.
func (c Config) Validate() error {
	var missing []string
	if c.BaasURL == "" {
		missing = append(missing, "BAAS_URL")
	}
	if c.BaasAnonKey == "" {
		missing = append(missing, "BAAS_ANON_KEY")
	}
	if c.BaasServiceKey == "" {
		missing = append(missing, "BAAS_SERVICE_KEY")
	}
	if c.BaasJWTSecret == "" {
		missing = append(missing, "BAAS_JWT_SECRET")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		get("DB_PORT", "5432"),
		os.Getenv("DB_NAME"),
	)
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

func getBool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}
