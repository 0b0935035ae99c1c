package logger

import (
	"flag"
	"os"
	"strings"
)

var (
	logLevelFlag   = flag.String("log_level", "", "Log level (debug, info, warn, error)")
	webhookURLFlag = flag.String("log_webhook_url", "", "Webhook URL receiving buffered logs")
	appNameFlag    = flag.String("app_name", "", "Application name attached to webhook logs")
	envFlag        = flag.String("env", "", "Environment (development, staging, production)")
)

// EnvVar describes an environment variable for usage output.
type EnvVar struct {
	Name        string
	Description string
}

// GetEnvVarsHelp returns the environment variables read by LoadConfig.
func GetEnvVarsHelp() []EnvVar {
	return []EnvVar{
		{"LOG_LEVEL", "Log level (debug, info, warn, error)"},
		{"LOG_WEBHOOK_URL", "Webhook URL for logging"},
		{"APP_NAME", "Application name"},
		{"ENV", "Environment (development, staging, production)"},
	}
}

// LoadConfig loads logger config from flags and environment variables.
// Flags take precedence over environment variables.
// The caller must call flag.Parse() before calling this function.
func LoadConfig() (*Config, error) {
	levelStr := flagOrEnv(logLevelFlag, "LOG_LEVEL", "info")
	webhookURL := flagOrEnv(webhookURLFlag, "LOG_WEBHOOK_URL", "")
	appName := flagOrEnv(appNameFlag, "APP_NAME", "file-sync-queue")
	envName := flagOrEnv(envFlag, "ENV", "development")

	return &Config{
		Level:       ParseLevel(strings.ToLower(levelStr)),
		WebhookURL:  webhookURL,
		AppName:     appName,
		Environment: envName,
		Output:      nil, // Set by caller if needed
	}, nil
}

func flagOrEnv(f *string, key, defaultValue string) string {
	if f != nil && *f != "" {
		return *f
	}
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
