package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Database Configuration (message store)
	Database DatabaseConfig `json:"database"`

	// MongoDB Configuration (attachment store)
	MongoDB MongoDBConfig `json:"mongodb"`

	// Session Configuration
	Session SessionConfig `json:"session"`

	// Engine Configuration (client-side conversation engine)
	Engine EngineConfig `json:"engine"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	Environment  string `json:"environment"` // development, staging, production

	// TypingRatePerSecond bounds how many typing signals one user may push.
	TypingRatePerSecond float64 `json:"typing_rate_per_second"`
	TypingRateBurst     int     `json:"typing_rate_burst"`

	// HubWorkers and HubQueueSize size the event fan-out pool.
	HubWorkers   int `json:"hub_workers"`
	HubQueueSize int `json:"hub_queue_size"`
}

// DatabaseConfig contains MySQL connection configuration
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// MongoDBConfig contains the attachment store connection configuration
type MongoDBConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// SessionConfig contains JWT session configuration
type SessionConfig struct {
	Secret   string `json:"-"`
	Issuer   string `json:"issuer"`
	TTLHours int    `json:"ttl_hours"`
}

// EngineConfig tunes the conversation engine.
type EngineConfig struct {
	// TypingStaleness is the window after which a remote typing signal is
	// treated as "stopped" even without an explicit stop event.
	TypingStaleness time.Duration `json:"typing_staleness"`

	// ReconcileWindow bounds how old an optimistic placeholder may be and
	// still be replaced in place by its confirmed echo.
	ReconcileWindow time.Duration `json:"reconcile_window"`

	// EventBuffer is the per-subscription channel buffer size.
	EventBuffer int `json:"event_buffer"`

	// BaseURL and WebSocketURL point the backend client at the messaging
	// service.
	BaseURL      string `json:"base_url"`
	WebSocketURL string `json:"websocket_url"`
}

// LoadConfig reads .env when present and builds the configuration from the
// environment with development defaults.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using system env variables")
	}

	return &Config{
		Server: ServerConfig{
			Host:                getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                getEnv("SERVER_PORT", "7005"),
			ReadTimeout:         getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:        getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			Environment:         getEnv("ENVIRONMENT", "development"),
			TypingRatePerSecond: getEnvFloat("TYPING_RATE_PER_SECOND", 2),
			TypingRateBurst:     getEnvInt("TYPING_RATE_BURST", 4),
			HubWorkers:          getEnvInt("HUB_WORKERS", 4),
			HubQueueSize:        getEnvInt("HUB_QUEUE_SIZE", 1000),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "marketchat"),
			Password:     getEnv("DB_PASSWORD", "marketchat123"),
			DatabaseName: getEnv("DB_NAME", "marketchat"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		MongoDB: MongoDBConfig{
			Host:     getEnv("MONGO_HOST", "localhost"),
			Port:     getEnv("MONGO_PORT", "27017"),
			Username: getEnv("MONGO_USER", "admin"),
			Password: getEnv("MONGO_PASSWORD", "admin123"),
			Database: getEnv("MONGO_DB", "marketchat"),
		},
		Session: SessionConfig{
			Secret:   getEnv("SESSION_SECRET", "dev-secret-change-in-production"),
			Issuer:   getEnv("SESSION_ISSUER", "marketchat"),
			TTLHours: getEnvInt("SESSION_TTL_HOURS", 24),
		},
		Engine: EngineConfig{
			TypingStaleness: getEnvDuration("TYPING_STALENESS", 3*time.Second),
			ReconcileWindow: getEnvDuration("RECONCILE_WINDOW", 30*time.Second),
			EventBuffer:     getEnvInt("EVENT_BUFFER", 64),
			BaseURL:         getEnv("CHAT_BASE_URL", "http://localhost:7005"),
			WebSocketURL:    getEnv("CHAT_WS_URL", "ws://localhost:7005"),
		},
	}
}

// DSN builds the MySQL connection string from the database section.
func (cfg *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

// MongoURI builds the MongoDB connection string.
func (cfg *Config) MongoURI() string {
	if cfg.MongoDB.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s", cfg.MongoDB.Host, cfg.MongoDB.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s",
		cfg.MongoDB.Username,
		cfg.MongoDB.Password,
		cfg.MongoDB.Host,
		cfg.MongoDB.Port,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %d", value, key, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %v", value, key, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("invalid value %q for %s, using default %v", value, key, defaultValue)
		return defaultValue
	}
	return parsed
}
