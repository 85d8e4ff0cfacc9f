package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	// MySQLDSN empty selects the in-memory store.
	MySQLDSN       string
	DBMaxOpenConns int
	MigrateOnStart bool

	// RedisAddr empty selects in-process idempotency keys and locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string

	NotificationScanInterval time.Duration
	SeedDemo                 bool
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:                 getEnv("GRPC_ADDR", ":50051"),
		MySQLDSN:                 getEnv("MYSQL_DSN", ""),
		DBMaxOpenConns:           getEnvInt("DB_MAX_OPEN_CONNS", 50),
		MigrateOnStart:           getEnvBool("MIGRATE_ON_START", false),
		RedisAddr:                getEnv("REDIS_ADDR", ""),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogFormat:                getEnv("LOG_FORMAT", "json"),
		NotificationScanInterval: getEnvDuration("NOTIFICATION_SCAN_INTERVAL", 5*time.Minute),
		SeedDemo:                 getEnvBool("SEED_DEMO", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
