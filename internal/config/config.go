package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the full application configuration, read from the environment
type Config struct {
	Port         int
	LogLevel     string
	Env          string
	StoreBackend string
	DB           DBConfig
	Kafka        KafkaConfig
	Routing      RoutingConfig
	Admin        AdminConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// KafkaConfig holds the Kafka configuration for the shipment event pipeline
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	ShipmentsTopic string
	ConsumerGroup  string
}

// RoutingConfig holds the configuration for the external geocode/directions service
type RoutingConfig struct {
	BaseURL        string
	APIKey         string
	DefaultProfile string
}

// AdminConfig holds the static credential guarding the admin endpoints
type AdminConfig struct {
	Token string
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))

	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))

	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	kafkaEnabled, err := strconv.ParseBool(getEnv("KAFKA_ENABLED", "true"))

	if err != nil {
		return nil, fmt.Errorf("invalid KAFKA_ENABLED: %w", err)
	}

	return &Config{
		Port:         port,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Env:          getEnv("APP_ENV", "development"),
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "shipment_tracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Enabled:        kafkaEnabled,
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ShipmentsTopic: getEnv("KAFKA_SHIPMENTS_TOPIC", "shipment-events"),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "shipment-tracker"),
		},
		Routing: RoutingConfig{
			BaseURL:        getEnv("ROUTING_BASE_URL", "https://api.openrouteservice.org"),
			APIKey:         getEnv("ROUTING_API_KEY", ""),
			DefaultProfile: getEnv("ROUTING_DEFAULT_PROFILE", "driving-car"),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
