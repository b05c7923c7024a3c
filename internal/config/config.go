package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries the process configuration, read once at startup.
type Config struct {
	Port            string
	InstanceID      string
	Environment     string
	AMQPURL         string
	AMQPExchange    string
	AuditRoutingKey string
	OTLPEndpoint    string
	DebugRoutes     bool
	GinMode         string
}

// Load reads configuration from the environment, loading a .env file first
// when one is present. An empty AMQP_URL or OTLP_ENDPOINT leaves that
// integration disabled.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using process environment")
	}

	return Config{
		Port:            getEnv("PORT", "8083"),
		InstanceID:      getEnv("INSTANCE_ID", defaultInstanceID()),
		Environment:     getEnv("ENVIRONMENT", "development"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "chat_events"),
		AuditRoutingKey: getEnv("AUDIT_ROUTING_KEY", "audit.chat"),
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
		DebugRoutes:     getEnvBool("DEBUG_ROUTES", false),
		GinMode:         os.Getenv("GIN_MODE"),
	}
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "chat-engine"
	}
	return "chat-engine-" + host
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		log.Printf("invalid bool for %s: %q, using %v", key, val, fallback)
		return fallback
	}
	return parsed
}
