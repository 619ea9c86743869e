package config

import (
	"io"
	"log"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// NotificationConfig tunes the notification payloads without a redeploy.
// Loaded from the optional YAML config file.
type NotificationConfig struct {
	// ChatBodyMaxChars caps the chat message preview length, in runes.
	ChatBodyMaxChars int `yaml:"chat_body_max_chars"`
	// Sound is the notification sound requested on delivery.
	Sound string `yaml:"sound"`
	// CallCategory is the APNs category that enables the interactive
	// incoming-call notification UI on iOS.
	CallCategory string `yaml:"call_category"`
	// ReminderLookaheadMinutes is the reminder scan window. It must match the
	// scan interval so that every upcoming consultation is caught by a scan.
	ReminderLookaheadMinutes int `yaml:"reminder_lookahead_minutes"`
}

type Config struct {
	Port    string
	GinMode string

	// Firebase
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Push Notifications
	PushNotificationsEnabled bool

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string

	// Notifications
	Notifications *NotificationConfig `yaml:"notifications"`
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Firebase
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		// Stripe
		StripeSecretKey:     getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnvOrDefault("STRIPE_WEBHOOK_SECRET", ""),

		// Push Notifications
		PushNotificationsEnabled: getEnvOrDefault("PUSH_NOTIFICATIONS_ENABLED", "true") == "true",

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		Notifications: DefaultNotificationConfig(),
	}

	// Overlay settings from the optional configuration file. Environment
	// variables stay authoritative for credentials; the file only carries
	// notification tuning.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	if err != nil {
		log.Printf("No config file at %s, using notification defaults", configFilePath)
	} else {
		defer configFile.Close()
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		log.Printf("Loaded config file: %s", configFilePath)
	}

	if AppConfig.FirebaseProjectID == "" {
		log.Println("Warning: Firebase project ID is missing. Please set FIREBASE_PROJECT_ID environment variable.")
	}

	if AppConfig.StripeSecretKey == "" || AppConfig.StripeWebhookSecret == "" {
		log.Println("Warning: Stripe credentials are missing. Please set STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET environment variables.")
	}
}

// DefaultNotificationConfig returns the notification tuning used when no
// config file overrides it.
func DefaultNotificationConfig() *NotificationConfig {
	return &NotificationConfig{
		ChatBodyMaxChars:         140,
		Sound:                    "default",
		CallCategory:             "INCOMING_CALL",
		ReminderLookaheadMinutes: 5,
	}
}

// LoadConfigFile decodes a YAML config overlay into config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	if config.Notifications == nil {
		config.Notifications = DefaultNotificationConfig()
	}

	// A partial overlay keeps defaults for anything it does not set.
	defaults := DefaultNotificationConfig()
	if config.Notifications.ChatBodyMaxChars <= 0 {
		config.Notifications.ChatBodyMaxChars = defaults.ChatBodyMaxChars
	}
	if config.Notifications.Sound == "" {
		config.Notifications.Sound = defaults.Sound
	}
	if config.Notifications.CallCategory == "" {
		config.Notifications.CallCategory = defaults.CallCategory
	}
	if config.Notifications.ReminderLookaheadMinutes <= 0 {
		config.Notifications.ReminderLookaheadMinutes = defaults.ReminderLookaheadMinutes
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
