package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds connection settings for the trip store.
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// DSN returns the driver-specific data source name.
func (c DatabaseConfig) DSN() string {
	if c.Driver == "sqlite" {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the postgres URL form used by the migration runner.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers      []string
	GroupPrefix  string
	SamplesTopic string
	TripTopic    string
	PublishTries uint64
}

// ShareConfig controls public share links.
type ShareConfig struct {
	LinkTTL   time.Duration
	PurgeCron string
}

// SampleConfig throttles live sample ingestion over HTTP.
type SampleConfig struct {
	RatePerSecond float64
	Burst         int
}

// ServiceConfig holds all configuration for the trips service.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	DBConfig     DatabaseConfig
	JWTConfig    JWTConfig
	KafkaConfig  KafkaConfig
	ShareConfig  ShareConfig
	SampleConfig SampleConfig
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*ServiceConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "trips")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "trips.db")

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_EXPIRY", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRY", "168h")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "trips")
	v.SetDefault("KAFKA_SAMPLES_TOPIC", "location-samples")
	v.SetDefault("KAFKA_TRIP_TOPIC", "trip-events")
	v.SetDefault("KAFKA_PUBLISH_TRIES", 3)

	v.SetDefault("SHARE_LINK_TTL", "24h")
	v.SetDefault("SHARE_PURGE_CRON", "@every 1h")

	v.SetDefault("SAMPLES_RATE_PER_SECOND", 5)
	v.SetDefault("SAMPLES_RATE_BURST", 20)
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	driver := v.GetString("DB_DRIVER")
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	jwtSecret := v.GetString("JWT_SECRET")
	appEnv := v.GetString("APP_ENV")
	if jwtSecret == "" {
		if appEnv != "development" && appEnv != "test" {
			return nil, fmt.Errorf("JWT_SECRET is required in %s", appEnv)
		}
		jwtSecret = "local-dev-secret"
	}

	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:   port,
		AppEnv: appEnv,
		DBConfig: DatabaseConfig{
			Driver:     driver,
			Host:       v.GetString("DB_HOST"),
			Port:       v.GetInt("DB_PORT"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			DBName:     v.GetString("DB_NAME"),
			SSLMode:    v.GetString("DB_SSLMODE"),
			SQLitePath: v.GetString("DB_SQLITE_PATH"),
		},
		JWTConfig: JWTConfig{
			Secret:        jwtSecret,
			AccessExpiry:  durationOr(v, "JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: durationOr(v, "JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		KafkaConfig: KafkaConfig{
			Brokers:      splitList(v.GetString("KAFKA_BROKERS")),
			GroupPrefix:  v.GetString("KAFKA_GROUP_PREFIX"),
			SamplesTopic: v.GetString("KAFKA_SAMPLES_TOPIC"),
			TripTopic:    v.GetString("KAFKA_TRIP_TOPIC"),
			PublishTries: v.GetUint64("KAFKA_PUBLISH_TRIES"),
		},
		ShareConfig: ShareConfig{
			LinkTTL:   durationOr(v, "SHARE_LINK_TTL", 24*time.Hour),
			PurgeCron: v.GetString("SHARE_PURGE_CRON"),
		},
		SampleConfig: SampleConfig{
			RatePerSecond: v.GetFloat64("SAMPLES_RATE_PER_SECOND"),
			Burst:         v.GetInt("SAMPLES_RATE_BURST"),
		},
	}, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
