package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Kafka configuration
	Kafka KafkaConfig

	// JWT configuration (optional bearer identity)
	JWT JWTConfig

	// Reservation engine configuration
	Reservation ReservationConfig

	// Queue (Path B) configuration
	Queue QueueConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string
}

// KafkaConfig holds Kafka configuration for the notification event pipeline
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// ReservationConfig holds the timing knobs of the reservation engine
type ReservationConfig struct {
	HoldTimeout        time.Duration // RESERVATION_TIMEOUT_SECONDS
	MaxSeatsPerBooking int           // MAX_SEATS_PER_BOOKING
	LockTimeout        time.Duration // LOCK_TIMEOUT_SECONDS
	LockMaxWait        time.Duration
	LockRetryInterval  time.Duration
	SweeperInterval    time.Duration // SWEEPER_INTERVAL_SECONDS
	SweeperBatchSize   int
}

// QueueConfig holds the Path B queue configuration
type QueueConfig struct {
	StatusTTL       time.Duration // REQUEST_STATUS_TTL
	ReclaimIdle     time.Duration // PEL_RECLAIM_IDLE_MS
	ReclaimInterval time.Duration
	MaxDeliveries   int // MAX_DELIVERIES
	WorkerCount     int
	ReadBlock       time.Duration
	WSIdleTimeout   time.Duration // CONNECTION_IDLE_TIMEOUT
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "ticketing_db"),
			User:     getEnv("DB_USER", "ticketing_user"),
			Password: getEnv("DB_PASSWORD", "ticketing_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},

		// Kafka configuration
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "ticketing-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "ticketing-notifications"),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},

		// Reservation engine configuration
		Reservation: ReservationConfig{
			HoldTimeout:        getDurationEnvSeconds("RESERVATION_TIMEOUT_SECONDS", 600*time.Second),
			MaxSeatsPerBooking: getIntEnv("MAX_SEATS_PER_BOOKING", 10),
			LockTimeout:        getDurationEnvSeconds("LOCK_TIMEOUT_SECONDS", 30*time.Second),
			LockMaxWait:        getDurationEnv("LOCK_MAX_WAIT", 5*time.Second),
			LockRetryInterval:  getDurationEnv("LOCK_RETRY_INTERVAL", 50*time.Millisecond),
			SweeperInterval:    getDurationEnvSeconds("SWEEPER_INTERVAL_SECONDS", 30*time.Second),
			SweeperBatchSize:   getIntEnv("SWEEPER_BATCH_SIZE", 100),
		},

		// Queue configuration
		Queue: QueueConfig{
			StatusTTL:       getDurationEnvSeconds("REQUEST_STATUS_TTL", time.Hour),
			ReclaimIdle:     getDurationEnvMillis("PEL_RECLAIM_IDLE_MS", time.Minute),
			ReclaimInterval: getDurationEnv("PEL_RECLAIM_INTERVAL", 15*time.Second),
			MaxDeliveries:   getIntEnv("MAX_DELIVERIES", 3),
			WorkerCount:     getIntEnv("WORKER_COUNT", 2),
			ReadBlock:       getDurationEnv("QUEUE_READ_BLOCK", 2*time.Second),
			WSIdleTimeout:   getDurationEnvSeconds("CONNECTION_IDLE_TIMEOUT", 60*time.Second),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Reservation.MaxSeatsPerBooking < 1 {
		return fmt.Errorf("MAX_SEATS_PER_BOOKING must be at least 1, got %d", c.Reservation.MaxSeatsPerBooking)
	}
	if c.Reservation.HoldTimeout <= 0 {
		return fmt.Errorf("RESERVATION_TIMEOUT_SECONDS must be positive")
	}
	if c.Reservation.LockTimeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT_SECONDS must be positive")
	}
	if c.Queue.MaxDeliveries < 1 {
		return fmt.Errorf("MAX_DELIVERIES must be at least 1, got %d", c.Queue.MaxDeliveries)
	}
	if c.Queue.WorkerCount < 0 {
		return fmt.Errorf("WORKER_COUNT must not be negative, got %d", c.Queue.WorkerCount)
	}
	if c.Database.Host == "" || c.Database.Port == "" {
		return fmt.Errorf("DB_HOST and DB_PORT are required")
	}
	if c.Redis.Host == "" || c.Redis.Port == "" {
		return fmt.Errorf("REDIS_HOST and REDIS_PORT are required")
	}
	return nil
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// IsDevelopment returns true when running in debug mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getDurationEnvMillis gets an environment variable as milliseconds (int) and converts to time.Duration
func getDurationEnvMillis(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if millis, err := strconv.Atoi(value); err == nil {
			return time.Duration(millis) * time.Millisecond
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
