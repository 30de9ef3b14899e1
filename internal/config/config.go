package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string

	LogLevel  string
	LogFormat string

	TickInterval  time.Duration
	EngineIdleTTL time.Duration
	HistoryLimit  int

	Alerts AlertConfig
}

// AlertConfig holds the alert thresholds. Zero values fall back to the
// scheduler defaults.
type AlertConfig struct {
	FallbackEstimate time.Duration
	LongSession      time.Duration
	ContinuedSession time.Duration
	MilestoneEvery   int
}

const envPrefix = "MINDEASE"

// bare names kept for deployments that predate the prefixed variables
var bareEnv = map[string]string{
	"port":            "PORT",
	"db_path":         "DB_PATH",
	"jwt_secret":      "JWT_SECRET",
	"token_ttl_hours": "TOKEN_TTL_HOURS",
	"cors_origins":    "CORS_ORIGINS",
	"migrations_dir":  "MIGRATIONS_DIR",
	"log_level":       "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./data/mindease.db")
	v.SetDefault("jwt_secret", "change-this-secret")
	v.SetDefault("token_ttl_hours", 72)
	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("migrations_dir", "./migrations")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("tick_interval", time.Second)
	v.SetDefault("engine_idle_ttl", 30*time.Minute)
	v.SetDefault("history_limit", 20)
	v.SetDefault("alerts.fallback_estimate", 25*time.Minute)
	v.SetDefault("alerts.long_session", 30*time.Minute)
	v.SetDefault("alerts.continued_session", 30*time.Minute)
	v.SetDefault("alerts.milestone_every", 4)
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. An empty path looks for
// config.yaml in the working directory and ./config, and tolerates its
// absence.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, bare := range bareEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(key)
		if err := v.BindEnv(key, prefixed, bare); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:          v.GetString("port"),
		DBPath:        v.GetString("db_path"),
		JWTSecret:     v.GetString("jwt_secret"),
		TokenTTL:      time.Duration(v.GetInt("token_ttl_hours")) * time.Hour,
		CORSOrigins:   stringList(v.Get("cors_origins")),
		MigrationsDir: v.GetString("migrations_dir"),
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		TickInterval:  v.GetDuration("tick_interval"),
		EngineIdleTTL: v.GetDuration("engine_idle_ttl"),
		HistoryLimit:  v.GetInt("history_limit"),
		Alerts: AlertConfig{
			FallbackEstimate: v.GetDuration("alerts.fallback_estimate"),
			LongSession:      v.GetDuration("alerts.long_session"),
			ContinuedSession: v.GetDuration("alerts.continued_session"),
			MilestoneEvery:   v.GetInt("alerts.milestone_every"),
		},
	}

	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("token_ttl_hours must be positive")
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("tick_interval must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return cfg, nil
}

// stringList accepts either a YAML list or a comma separated env value.
func stringList(raw interface{}) []string {
	var parts []string
	switch value := raw.(type) {
	case string:
		parts = strings.Split(value, ",")
	case []string:
		parts = value
	case []interface{}:
		for _, item := range value {
			parts = append(parts, fmt.Sprint(item))
		}
	}

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
