// Package config builds the runtime configuration from environment
// variables and the optional emissions model file.
package config

import (
	"fmt"
	"os"
	"time"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	Topic            string
	CompressionType  string
	Acks             string
	MaxInFlight      int
	LingerMS         int
	BatchSize        int

	// Publishing
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	FlushTimeout time.Duration
}

// NewKafkaConfig creates a new Kafka configuration from environment variables
func NewKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "SASL_SSL"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		Topic:            getEnv("KAFKA_TOPIC", "landfill-detections"),
		CompressionType:  getEnv("KAFKA_COMPRESSION_TYPE", "snappy"),
		Acks:             getEnv("KAFKA_ACKS", "all"),
		MaxInFlight:      getEnvInt("KAFKA_MAX_IN_FLIGHT", 5),
		LingerMS:         getEnvInt("KAFKA_LINGER_MS", 10),
		BatchSize:        getEnvInt("KAFKA_BATCH_SIZE", 16384),

		Workers:      getEnvInt("KAFKA_PRODUCER_WORKERS", 4),
		MaxRetries:   getEnvInt("KAFKA_MAX_RETRIES", 5),
		RetryBackoff: getEnvDuration("KAFKA_RETRY_BACKOFF", 100*time.Millisecond),
		FlushTimeout: getEnvDuration("KAFKA_FLUSH_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%g", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
