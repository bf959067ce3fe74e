package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceConfig holds all configuration for the planner service.
type ServiceConfig struct {
	Port   string
	AppEnv string
	DB     DatabaseConfig
	Kafka  KafkaConfig
	OSRM   OSRMConfig
	Search SearchConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the key=value connection string for the database.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// DatabaseURL returns the URL form of the connection string.
func (c DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// KafkaConfig holds event publishing settings. Publishing is disabled when
// no brokers are configured.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Enabled reports whether event publishing is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// OSRMConfig holds settings for the external routing service.
type OSRMConfig struct {
	BaseURL string
	Profile string
	Timeout time.Duration
}

// SearchConfig holds tuning parameters for the loop search and the pace
// constant used for duration estimates.
type SearchConfig struct {
	Trials       int
	TuneSteps    int
	ToleranceKm  float64
	PaceMinPerKm float64
}

// Load reads configuration from PLANNER_-prefixed environment variables,
// falling back to defaults suitable for local development.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", ":8080")
	v.SetDefault("app_env", "development")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "planner")
	v.SetDefault("db.password", "planner")
	v.SetDefault("db.name", "planner")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "route.events")

	v.SetDefault("osrm.base_url", "https://router.project-osrm.org")
	v.SetDefault("osrm.profile", "foot")
	v.SetDefault("osrm.timeout", 10*time.Second)

	v.SetDefault("search.trials", 8)
	v.SetDefault("search.tune_steps", 6)
	v.SetDefault("search.tolerance_km", 0.5)
	v.SetDefault("search.pace_min_per_km", 12.0)

	cfg := &ServiceConfig{
		Port:   v.GetString("port"),
		AppEnv: v.GetString("app_env"),
		DB: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers: splitBrokers(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		OSRM: OSRMConfig{
			BaseURL: v.GetString("osrm.base_url"),
			Profile: v.GetString("osrm.profile"),
			Timeout: v.GetDuration("osrm.timeout"),
		},
		Search: SearchConfig{
			Trials:       v.GetInt("search.trials"),
			TuneSteps:    v.GetInt("search.tune_steps"),
			ToleranceKm:  v.GetFloat64("search.tolerance_km"),
			PaceMinPerKm: v.GetFloat64("search.pace_min_per_km"),
		},
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.Search.Trials <= 0 {
		return nil, fmt.Errorf("search.trials must be positive, got %d", cfg.Search.Trials)
	}
	if cfg.Search.TuneSteps <= 0 {
		return nil, fmt.Errorf("search.tune_steps must be positive, got %d", cfg.Search.TuneSteps)
	}
	if cfg.Search.PaceMinPerKm <= 0 {
		return nil, fmt.Errorf("search.pace_min_per_km must be positive, got %f", cfg.Search.PaceMinPerKm)
	}

	return cfg, nil
}

func splitBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
