package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string

	Auth0Domain   string
	Auth0Audience string

	// Tesla Fleet API
	TeslaAPIBase      string
	TeslaAuthBase     string
	TeslaClientID     string
	TeslaClientSecret string
	TeslaRedirectURI  string
	TeslaWakeAttempts int
	TeslaWakeDelay    time.Duration

	// Mollie payments
	MollieAPIKey      string
	MollieRedirectURL string
	MollieWebhookURL  string

	// SMTP mailer
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	MailFrom   string
	AdminEmail string

	// Firebase Cloud Messaging
	FirebaseProjectID       string
	FirebaseCredentialsFile string

	// Operational audit webhook (Discord)
	OpsWebhookURL string

	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

var appConfig *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	// Determine which environment file to load
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Try to load environment-specific file first
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil {
		// If environment-specific file doesn't exist, try .env
		if err := godotenv.Load(); err != nil {
			// In production the environment variables are set directly,
			// so it's okay if .env files don't exist
			log.Printf("No .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	config := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),

		TeslaAPIBase:      getEnv("TESLA_API_BASE", "https://fleet-api.prd.eu.vn.cloud.tesla.com"),
		TeslaAuthBase:     getEnv("TESLA_AUTH_BASE", "https://auth.tesla.com"),
		TeslaClientID:     getEnv("TESLA_CLIENT_ID", ""),
		TeslaClientSecret: getEnv("TESLA_CLIENT_SECRET", ""),
		TeslaRedirectURI:  getEnv("TESLA_REDIRECT_URI", ""),
		TeslaWakeAttempts: getEnvInt("TESLA_WAKE_ATTEMPTS", 15),
		TeslaWakeDelay:    time.Duration(getEnvInt("TESLA_WAKE_DELAY_MS", 2000)) * time.Millisecond,

		MollieAPIKey:      getEnv("MOLLIE_API_KEY", ""),
		MollieRedirectURL: getEnv("MOLLIE_REDIRECT_URL", ""),
		MollieWebhookURL:  getEnv("MOLLIE_WEBHOOK_URL", ""),

		SMTPHost:   getEnv("SMTP_HOST", "sandbox.smtp.mailtrap.io"),
		SMTPPort:   getEnvInt("SMTP_PORT", 2525),
		SMTPUser:   getEnv("SMTP_USER", ""),
		SMTPPass:   getEnv("SMTP_PASS", ""),
		MailFrom:   getEnv("MAIL_FROM", "noreply@cabbyrentals.com"),
		AdminEmail: getEnv("ADMIN_EMAIL", ""),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		OpsWebhookURL: getEnv("OPS_WEBHOOK_URL", ""),

		AWSRegion:          getEnv("AWS_REGION", "eu-central-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// GetConfig returns the loaded configuration instance
func GetConfig() *Config {
	return appConfig
}

// SetConfig sets the configuration instance (primarily for testing)
func SetConfig(c *Config) {
	appConfig = c
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
