package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment with
// an optional .env file for local development.
type Config struct {
	Port    string
	BaseURL string

	DBDriver          string
	DBDSN             string
	DBMaxIdleConns    int
	DBMaxOpenConns    int
	DBConnMaxLifetime int
	DBDebug           bool

	AdminEmail    string
	AdminPassword string
	AdminName     string

	// PropagateOnConnect switches invitation acceptance to an eager
	// both-sides reserved-group sync.
	PropagateOnConnect bool
}

// Load reads configuration from the environment. A missing .env file is not
// an error; real deployments set variables directly.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port:    getEnv("DROPWIRE_PORT", "8080"),
		BaseURL: getEnv("DROPWIRE_BASE_URL", "http://localhost:8080"),

		DBDriver:          getEnv("DROPWIRE_DB_DRIVER", "sqlite"),
		DBDSN:             getEnv("DROPWIRE_DB_DSN", "dropwire.db"),
		DBMaxIdleConns:    getEnvAsInt("DROPWIRE_DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:    getEnvAsInt("DROPWIRE_DB_MAX_OPEN_CONNS", 100),
		DBConnMaxLifetime: getEnvAsInt("DROPWIRE_DB_CONN_MAX_LIFETIME_MIN", 60),
		DBDebug:           getEnvAsBool("DROPWIRE_DB_DEBUG", false),

		AdminEmail:    getEnv("DROPWIRE_ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: getEnv("DROPWIRE_ADMIN_PASSWORD", "admin"),
		AdminName:     getEnv("DROPWIRE_ADMIN_NAME", "Administrator"),

		PropagateOnConnect: getEnvAsBool("DROPWIRE_PROPAGATE_ON_CONNECT", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("Invalid boolean for %s, using default %v", key, defaultValue)
	}
	return defaultValue
}
