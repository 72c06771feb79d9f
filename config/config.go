package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultPort          = "8080"
	defaultRegion        = "us-east-1"
	defaultStoreBackend  = "dynamo"
	defaultQueueDSN      = "file://./data/offline-queue.json"
	defaultDedupBackend  = "memory"
	defaultPushBackend   = "fcm"
	defaultRedisAddr     = "localhost:6379"
	defaultDedupTTL      = 5 * time.Second
	defaultDedupMax      = 512
	defaultFallbackDelay = 8 * time.Second
	defaultFlushInterval = 30 * time.Second
	defaultPollInterval  = time.Second
	defaultRetryMax      = 4
)

// Config holds every setting read from the environment
type Config struct {
	Port               string
	AWSRegion          string
	StoreBackend       string
	LikesTable         string
	ProfilesTable      string
	LikesStreamARN     string
	StreamPollInterval time.Duration
	QueueDSN           string
	DedupBackend       string
	DedupTTL           time.Duration
	DedupMaxEntries    int
	RedisAddr          string
	RedisPassword      string
	PushBackend        string
	FirebaseCredsPath  string
	FallbackDelay      time.Duration
	ReciprocalRetryMax int
	FlushInterval      time.Duration
	LogLevel           string
	LogFormat          string
}

// Load reads .env when present, then the process environment
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("ℹ️ No .env file found, using environment only")
	}

	return Config{
		Port:               getEnv("PORT", defaultPort),
		AWSRegion:          getEnv("AWS_REGION", defaultRegion),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", defaultStoreBackend)),
		LikesTable:         getEnv("LIKES_TABLE", "Likes"),
		ProfilesTable:      getEnv("PROFILES_TABLE", "UserProfiles"),
		LikesStreamARN:     getEnv("LIKES_STREAM_ARN", ""),
		StreamPollInterval: getEnvDuration("STREAM_POLL_INTERVAL", defaultPollInterval),
		QueueDSN:           getEnv("QUEUE_DSN", defaultQueueDSN),
		DedupBackend:       strings.ToLower(getEnv("DEDUP_BACKEND", defaultDedupBackend)),
		DedupTTL:           getEnvDuration("DEDUP_TTL", defaultDedupTTL),
		DedupMaxEntries:    getEnvInt("DEDUP_MAX_ENTRIES", defaultDedupMax),
		RedisAddr:          getEnv("REDIS_ADDR", defaultRedisAddr),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		PushBackend:        strings.ToLower(getEnv("PUSH_BACKEND", defaultPushBackend)),
		FirebaseCredsPath:  getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FallbackDelay:      getEnvDuration("FALLBACK_DELAY", defaultFallbackDelay),
		ReciprocalRetryMax: getEnvInt("RECIPROCAL_RETRY_MAX", defaultRetryMax),
		FlushInterval:      getEnvDuration("FLUSH_INTERVAL", defaultFlushInterval),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// ConfigureLogging applies the level and format to the global logger
func (c Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("⚠️ Unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		logrus.Warnf("⚠️ Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		logrus.Warnf("⚠️ Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}
