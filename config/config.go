package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port string

	// Database (PostgreSQL: websites, deployments, domains)
	DatabaseURL string
	DBMaxConns  int

	// MongoDB (project documents edited by the editor)
	MongoURL      string
	MongoDatabase string

	// Redis (build queue and progress pub/sub)
	RedisURL      string
	BuildQueueKey string

	// JWT
	JWTSecret string

	// AWS S3 (published site bundles)
	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string
	S3Bucket     string

	// Publishing
	SitesBaseURL string
	BuildTimeout time.Duration

	// Custom domains
	DomainCNAMETarget  string
	DomainVerifyPrefix string

	// Editor
	EditorHistoryLimit int
	EditorIdleTimeout  time.Duration

	// Frontend URL (CORS origin)
	FrontendURL string
}

func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "8092"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 20),

		// MongoDB
		MongoURL:      getEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "sitesmith"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		BuildQueueKey: getEnv("BUILD_QUEUE_KEY", "deploy:queue"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// AWS S3
		AWSAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AWSSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:     getEnv("S3_BUCKET", "sitesmith-sites"),

		// Publishing
		SitesBaseURL: getEnv("SITES_BASE_URL", "https://sites.sitesmith.app"),
		BuildTimeout: getEnvDuration("BUILD_TIMEOUT", 10*time.Minute),

		// Custom domains
		DomainCNAMETarget:  getEnv("DOMAIN_CNAME_TARGET", "cname.sitesmith.app"),
		DomainVerifyPrefix: getEnv("DOMAIN_VERIFY_PREFIX", "_sitesmith-verify"),

		// Editor
		EditorHistoryLimit: getEnvInt("EDITOR_HISTORY_LIMIT", 50),
		EditorIdleTimeout:  getEnvDuration("EDITOR_IDLE_TIMEOUT", 2*time.Hour),

		// Frontend
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
	}
}

// Validate checks the settings every binary needs before it can start.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.EditorHistoryLimit < 1 {
		errs = append(errs, errors.New("EDITOR_HISTORY_LIMIT must be at least 1"))
	}
	return errors.Join(errs...)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
