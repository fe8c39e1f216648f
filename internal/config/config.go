package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendRedis  = "redis"
	BackendSpaces = "spaces"
	BackendLocal  = "local"
)

// Config holds environment-based settings
type Config struct {
	Environment   string
	ServerAddress string
	JWTSecret     string
	LogLevel      string

	// empty selects the in-memory store
	DatabaseURL    string
	MigrationsPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	RemoteBackend string
	DocumentsDir  string

	SpacesEndpoint  string
	SpacesRegion    string
	SpacesBucket    string
	SpacesAccessKey string
	SpacesSecretKey string

	MQTTBrokerURL string
	MQTTClientID  string

	AdminEmail        string
	AdminPasswordHash string
	AllowTokenIssue   bool

	// identifies this process on the cache relay channel
	InstanceID string
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from environment variables, after loading .env
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	// replicas may share a hostname; the relay and the broker both need
	// a distinct id per process
	hostname, _ := os.Hostname()
	instance := getenv("INSTANCE_ID", hostname+"-"+uuid.NewString()[:8])

	cfg := &Config{
		Environment:   getenv("APP_ENV", "production"),
		ServerAddress: getenv("SERVER_ADDRESS", ":8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "./migrations"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		RemoteBackend: strings.ToLower(getenv("REMOTE_BACKEND", BackendRedis)),
		DocumentsDir:  getenv("DOCUMENTS_DIR", "./documents"),

		SpacesEndpoint:  os.Getenv("SPACES_ENDPOINT"),
		SpacesRegion:    os.Getenv("SPACES_REGION"),
		SpacesBucket:    os.Getenv("SPACES_BUCKET"),
		SpacesAccessKey: os.Getenv("SPACES_ACCESS_KEY"),
		SpacesSecretKey: os.Getenv("SPACES_SECRET_KEY"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "routine-"+instance),

		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		InstanceID: instance,
	}

	if raw := os.Getenv("ALLOW_TOKEN_ISSUE"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("ALLOW_TOKEN_ISSUE: %w", err)
		}
		cfg.AllowTokenIssue = allow
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.RemoteBackend {
	case BackendRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when REMOTE_BACKEND=redis")
		}
	case BackendSpaces:
		if c.SpacesEndpoint == "" || c.SpacesBucket == "" || c.SpacesAccessKey == "" || c.SpacesSecretKey == "" {
			return fmt.Errorf("SPACES_ENDPOINT, SPACES_BUCKET, SPACES_ACCESS_KEY and SPACES_SECRET_KEY are required when REMOTE_BACKEND=spaces")
		}
	case BackendLocal:
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.RemoteBackend)
	}

	if (c.AdminEmail == "") != (c.AdminPasswordHash == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be set together")
	}
	return nil
}
