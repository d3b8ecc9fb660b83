package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	config     *Config
	configOnce sync.Once
)

// Config stores all configuration of the application
type Config struct {
	// Environment type
	EnvType string

	// Database
	DBHost          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPort          string
	DBMigrationMode string // 数据库迁移模式: "auto"(默认), "alter"(修改), "drop"(删除重建)

	// Server
	ServerPort string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MQTT
	MQTTBrokerURL  string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTSSLEnabled bool
	MQTTCACertPath string

	// 媒体出口服务器 (egress)
	EgressAPIURL    string
	EgressAPIKey    string
	EgressAPISecret string

	// 录像 Blob 存储
	BlobAccountName string
	BlobAccountKey  string
	BlobContainer   string
	BlobEndpoint    string // 为空时根据账户名拼接默认地址

	// JWT Authentication
	JWTSecretKey string

	// Admin
	DefaultAdminPassword string
}

// LoadConfig loads config from environment variables based on ENV_TYPE
func LoadConfig() *Config {
	// Get environment type (default to LOCAL if not set)
	envType := getEnv("ENV_TYPE", "LOCAL")
	prefix := ""

	// Set prefix based on environment type
	if strings.ToUpper(envType) == "LOCAL" {
		prefix = "LOCAL_"
	} else if strings.ToUpper(envType) == "SERVER" {
		prefix = "SERVER_"
	} else {
		fmt.Printf("Warning: Unknown ENV_TYPE '%s', defaulting to LOCAL environment\n", envType)
		prefix = "LOCAL_"
		envType = "LOCAL"
	}

	fmt.Printf("Loading configuration for environment: %s\n", envType)

	return &Config{
		// Environment type
		EnvType: envType,

		// Database config - use environment-specific variables if available
		DBHost:          getEnv(prefix+"DB_HOST", getEnv("DB_HOST", "localhost")),
		DBUser:          getEnv(prefix+"DB_USER", getEnv("DB_USER", "root")),
		DBPassword:      getEnv(prefix+"DB_PASSWORD", getEnv("DB_PASSWORD", "")),
		DBName:          getEnv(prefix+"DB_NAME", getEnv("DB_NAME", "pso_monitor_db")),
		DBPort:          getEnv(prefix+"DB_PORT", getEnv("DB_PORT", "3306")),
		DBMigrationMode: getEnv(prefix+"DB_MIGRATION_MODE", getEnv("DB_MIGRATION_MODE", "alter")),

		// Server config
		ServerPort: getEnv(prefix+"SERVER_PORT", getEnv("SERVER_PORT", "8080")),

		// Redis config
		RedisHost:     getEnv(prefix+"REDIS_HOST", getEnv("REDIS_HOST", "localhost")),
		RedisPort:     getEnv(prefix+"REDIS_PORT", getEnv("REDIS_PORT", "6379")),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// MQTT config
		MQTTBrokerURL:  getEnv(prefix+"MQTT_BROKER_URL", getEnv("MQTT_BROKER_URL", "tcp://localhost:1883")),
		MQTTClientID:   getEnv("MQTT_CLIENT_ID", "pso-monitor-service"),
		MQTTUsername:   getEnv("MQTT_USERNAME", ""),
		MQTTPassword:   getEnv("MQTT_PASSWORD", ""),
		MQTTSSLEnabled: getEnvAsBool("MQTT_SSL_ENABLED", false),
		MQTTCACertPath: getEnv("MQTT_CA_CERT_PATH", ""),

		// Egress config
		EgressAPIURL:    getEnv(prefix+"EGRESS_API_URL", getEnv("EGRESS_API_URL", "http://localhost:7880")),
		EgressAPIKey:    getEnv("EGRESS_API_KEY", ""),
		EgressAPISecret: getEnv("EGRESS_API_SECRET", ""),

		// Blob config
		BlobAccountName: getEnv("BLOB_ACCOUNT_NAME", ""),
		BlobAccountKey:  getEnv("BLOB_ACCOUNT_KEY", ""),
		BlobContainer:   getEnv("BLOB_CONTAINER", "recordings"),
		BlobEndpoint:    getEnv("BLOB_ENDPOINT", ""),

		// JWT Config
		JWTSecretKey: getEnv("JWT_SECRET_KEY", "pso-monitor-secret-key-change-in-production"),

		// Admin Config
		DefaultAdminPassword: getEnv("DEFAULT_ADMIN_PASSWORD", "admin123"),
	}
}

// GetConfig returns the application configuration as a singleton
func GetConfig() *Config {
	configOnce.Do(func() {
		config = LoadConfig()
	})
	return config
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true&multiStatements=true"
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// GetBlobEndpoint 返回 Blob 存储的基础地址
func (c *Config) GetBlobEndpoint() string {
	if c.BlobEndpoint != "" {
		return strings.TrimSuffix(c.BlobEndpoint, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", c.BlobAccountName)
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as boolean with default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
