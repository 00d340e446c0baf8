// Package config provides configuration loading, defaults and validation for
// InboxIntel. Values come from defaults, an optional config.yaml, a .env file
// and INBOXINTEL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration is wrapped by every error returned from Load.
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. INBOXINTEL_DATABASE_URL for database.url.
const EnvPrefix = "INBOXINTEL"

// Config defines the application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Guesty     GuestyConfig     `mapstructure:"guesty"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Report     ReportConfig     `mapstructure:"report"`
	Alert      AlertConfig      `mapstructure:"alert"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`

	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// JSON reports whether logs are written as JSON.
func (l LogConfig) JSON() bool {
	return l.Format == "json"
}

// ServerConfig holds webhook HTTP server settings.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"          validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  validate:"min=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`
}

// DatabaseConfig holds the message store connection settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
}

// GuestyConfig holds Open API credentials and client settings. Credentials
// are checked when the client is built, so commands that never call Guesty
// can run without them.
type GuestyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	BaseURL      string        `mapstructure:"base_url"  validate:"required,url"`
	TokenURL     string        `mapstructure:"token_url" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout"   validate:"min=1s,max=5m"`
	PageSize     int           `mapstructure:"page_size" validate:"min=1,max=100"`
}

// ClassifierConfig holds language model settings.
type ClassifierConfig struct {
	Provider          Provider      `mapstructure:"provider"            validate:"required,oneof=openai ollama gemini"`
	Model             string        `mapstructure:"model"               validate:"required"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"            validate:"omitempty,url"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	MaxTokens         int           `mapstructure:"max_tokens"          validate:"min=1"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=10m"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"         validate:"min=0"`
	PromptFile        string        `mapstructure:"prompt_file"`
}

// PollingConfig controls the periodic message poll. Lookback must cover at
// least one interval so consecutive windows overlap.
type PollingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"min=1s"`
	Lookback time.Duration `mapstructure:"lookback" validate:"gtefield=Interval"`
}

// WorkerConfig controls the classification worker schedule.
type WorkerConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"min=1s"`
}

// ReportConfig controls the daily summary.
type ReportConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    uint `mapstructure:"hour" validate:"max=23"`
}

// AlertConfig controls which classifications raise a notification.
type AlertConfig struct {
	Categories    []string `mapstructure:"categories"     validate:"dive,oneof=EARLY_CHECKIN LATE_CHECKOUT SPECIAL_REQUEST MAINTENANCE_ISSUE GENERAL_QUESTION"`
	MinConfidence float64  `mapstructure:"min_confidence" validate:"min=0,max=1"`
	TemplatesDir  string   `mapstructure:"templates_dir"`
}

// MaintenanceConfig controls the SQLite maintenance job.
type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Hour    uint `mapstructure:"hour" validate:"max=23"`
}

// NotifyConfig holds the notification channels. A channel is enabled when
// its required fields are set.
type NotifyConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout" validate:"min=1s"`
	Pushover PushoverConfig `mapstructure:"pushover"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
}

// PushoverConfig holds Pushover credentials.
type PushoverConfig struct {
	Token string `mapstructure:"token"`
	User  string `mapstructure:"user"`
}

// SlackConfig holds the Slack incoming webhook.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
}

// TelegramConfig holds the Telegram bot token and target chat.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// EmailConfig holds SMTP settings. To may list several comma-separated
// addresses.
type EmailConfig struct {
	From     string `mapstructure:"from"      validate:"omitempty,email"`
	To       string `mapstructure:"to"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" validate:"min=0,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BackfillConfig holds the default historical window.
type BackfillConfig struct {
	Days int `mapstructure:"days" validate:"min=1"`
}

// Load reads configuration from path (or ./config.yaml when path is empty),
// applies .env and environment overrides, resolves the classifier provider
// and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	if err := readConfig(v, path); err != nil {
		return nil, fmt.Errorf("%w: failed to load config file: %v", ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("configuration loaded",
		"config_file", v.ConfigFileUsed(),
		"database_url", redactURL(cfg.Database.URL),
		"classifier_provider", cfg.Classifier.Provider,
		"classifier_model", cfg.Classifier.Model)

	return cfg, nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

// resolve normalizes values that need more than a tag check: the provider
// (legacy "provider:model" form included) and the alert category names.
func (c *Config) resolve() error {
	provider, model, err := ParseProvider(string(c.Classifier.Provider))
	if err != nil {
		return err
	}
	c.Classifier.Provider = provider
	if model != "" {
		c.Classifier.Model = model
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = provider.DefaultModel()
	}

	categories := make([]string, 0, len(c.Alert.Categories))
	for _, cat := range c.Alert.Categories {
		cat = strings.ToUpper(strings.TrimSpace(cat))
		if cat != "" {
			categories = append(categories, cat)
		}
	}
	c.Alert.Categories = categories

	return nil
}

// readConfig initializes file and environment sources on v.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow missing config file unless one was named explicitly
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults registers every key so that environment variables can
// override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.read_timeout", DefaultServerReadTimeout)
	v.SetDefault("server.write_timeout", DefaultServerWriteTimeout)

	v.SetDefault("database.url", DefaultDatabaseURL)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", DefaultDBConnMaxLifetime)

	v.SetDefault("guesty.client_id", "")
	v.SetDefault("guesty.client_secret", "")
	v.SetDefault("guesty.base_url", DefaultGuestyBaseURL)
	v.SetDefault("guesty.token_url", DefaultGuestyTokenURL)
	v.SetDefault("guesty.timeout", DefaultGuestyTimeout)
	v.SetDefault("guesty.page_size", DefaultGuestyPageSize)

	v.SetDefault("classifier.provider", string(DefaultClassifierProvider))
	v.SetDefault("classifier.model", "")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.temperature", DefaultClassifierTemperature)
	v.SetDefault("classifier.max_tokens", DefaultClassifierMaxTokens)
	v.SetDefault("classifier.timeout", DefaultClassifierTimeout)
	v.SetDefault("classifier.requests_per_second", DefaultClassifierRPS)
	v.SetDefault("classifier.max_retries", DefaultClassifierMaxRetries)
	v.SetDefault("classifier.retry_delay", DefaultClassifierRetryDelay)
	v.SetDefault("classifier.prompt_file", "")

	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.interval", DefaultPollingInterval)
	v.SetDefault("polling.lookback", DefaultPollingLookback)

	v.SetDefault("worker.interval", DefaultWorkerInterval)

	v.SetDefault("report.enabled", true)
	v.SetDefault("report.hour", DefaultReportHour)

	v.SetDefault("alert.categories", DefaultAlertCategories)
	v.SetDefault("alert.min_confidence", DefaultAlertConfidence)
	v.SetDefault("alert.templates_dir", "")

	v.SetDefault("notify.timeout", DefaultNotifyTimeout)
	v.SetDefault("notify.pushover.token", "")
	v.SetDefault("notify.pushover.user", "")
	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.telegram.token", "")
	v.SetDefault("notify.telegram.chat_id", 0)
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.email.smtp_host", "")
	v.SetDefault("notify.email.smtp_port", DefaultEmailSMTPPort)
	v.SetDefault("notify.email.username", "")
	v.SetDefault("notify.email.password", "")

	v.SetDefault("backfill.days", DefaultBackfillDays)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.hour", DefaultMaintenanceHour)
}

// redactURL hides credentials embedded in a database URL.
func redactURL(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return raw
	}
	return scheme + "://***@" + rest[at+1:]
}
