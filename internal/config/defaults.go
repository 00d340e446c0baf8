package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Server defaults
	DefaultServerAddr         = ":8000"
	DefaultServerReadTimeout  = 10 * time.Second
	DefaultServerWriteTimeout = 10 * time.Second

	// Database defaults
	DefaultDatabaseURL       = "sqlite:///data/inbox_intel.db"
	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = time.Hour

	// Guesty defaults
	DefaultGuestyBaseURL  = "https://open-api.guesty.com/v1"
	DefaultGuestyTokenURL = "https://open-api.guesty.com/oauth2/token"
	DefaultGuestyTimeout  = 30 * time.Second
	DefaultGuestyPageSize = 100

	// Classifier defaults
	DefaultClassifierProvider    = ProviderOpenAI
	DefaultClassifierTemperature = 0.2
	DefaultClassifierMaxTokens   = 200
	DefaultClassifierTimeout     = 30 * time.Second
	DefaultClassifierRPS         = 1.0
	DefaultClassifierMaxRetries  = 2
	DefaultClassifierRetryDelay  = 2 * time.Second

	// Scheduling defaults
	DefaultPollingInterval = 5 * time.Minute
	DefaultPollingLookback = 10 * time.Minute
	DefaultWorkerInterval  = 30 * time.Second
	DefaultReportHour      = 7
	DefaultMaintenanceHour = 3
	DefaultBackfillDays    = 365
	DefaultAlertConfidence = 0.7
	DefaultEmailSMTPPort   = 587
	DefaultNotifyTimeout   = 10 * time.Second
)

// DefaultAlertCategories are the categories that trigger a notification
// unless configured otherwise.
var DefaultAlertCategories = []string{
	"EARLY_CHECKIN",
	"LATE_CHECKOUT",
	"MAINTENANCE_ISSUE",
	"SPECIAL_REQUEST",
}

// defaultModels maps a provider to the model used when none is configured.
var defaultModels = map[Provider]string{
	ProviderOpenAI: "gpt-4-turbo",
	ProviderOllama: "llama3",
	ProviderGemini: "gemini-2.0-flash",
}
