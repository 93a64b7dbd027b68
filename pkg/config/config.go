package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Mail       MailConfig
	Sync       SyncConfig
	Classifier ClassifierConfig
	Linker     LinkerConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Driver string // postgres, mysql or sqlite
	DSN    string
}

type AuthConfig struct {
	JWTSecret string
}

type MailConfig struct {
	Provider string // gmail or imap

	GoogleClientID     string
	GoogleClientSecret string
	GmailTokenDir      string

	IMAPHost     string
	IMAPPort     int
	IMAPPassword string
	IMAPTLS      bool
	IMAPMailbox  string
}

type SyncConfig struct {
	Timeout          time.Duration
	RetryBaseDelay   time.Duration
	MaxAttempts      int
	PageSize         int
	ClassifyWorkers  int
	ScheduleInterval time.Duration
	ScheduleAccounts []string
	ScheduleDaysBack int
	ScheduleMax      int
}

type ClassifierConfig struct {
	JobThreshold    int
	NotJobThreshold int
}

type LinkerConfig struct {
	MatchThreshold   float64
	RecencyWindow    time.Duration
	ExcludedStatuses []string
	AutoCreate       bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads .env (if present), an optional config.yaml and JOBTRAIL_*
// environment variables on top of the defaults.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/jobtrail/")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("JOBTRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// NewViper returns a viper instance holding only the defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, _ := FromViper(NewViper())
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=jobtrail port=5432 sslmode=disable")

	v.SetDefault("auth.jwt_secret", "your-secret-key-change-in-production")

	v.SetDefault("mail.provider", "gmail")
	v.SetDefault("mail.google_client_id", "")
	v.SetDefault("mail.google_client_secret", "")
	v.SetDefault("mail.gmail_token_dir", "./tokens")
	v.SetDefault("mail.imap_host", "")
	v.SetDefault("mail.imap_port", 993)
	v.SetDefault("mail.imap_password", "")
	v.SetDefault("mail.imap_tls", true)
	v.SetDefault("mail.imap_mailbox", "INBOX")

	v.SetDefault("sync.timeout", "2m")
	v.SetDefault("sync.retry_base_delay", "1s")
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.page_size", 50)
	v.SetDefault("sync.classify_workers", 4)
	v.SetDefault("sync.schedule_interval", "0s")
	v.SetDefault("sync.schedule_accounts", []string{})
	v.SetDefault("sync.schedule_days_back", 7)
	v.SetDefault("sync.schedule_max", 50)

	v.SetDefault("classifier.job_threshold", 4)
	v.SetDefault("classifier.not_job_threshold", -2)

	v.SetDefault("linker.match_threshold", 0.85)
	v.SetDefault("linker.recency_window", "2160h") // 90 days
	v.SetDefault("linker.excluded_statuses", []string{"ARCHIVE", "REJECTED"})
	v.SetDefault("linker.auto_create", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// FromViper builds a typed Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	durations := map[string]time.Duration{}
	for _, key := range []string{"sync.timeout", "sync.retry_base_delay", "sync.schedule_interval", "linker.recency_window"} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		durations[key] = d
	}

	return &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
		},
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			DSN:    v.GetString("database.dsn"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Mail: MailConfig{
			Provider:           v.GetString("mail.provider"),
			GoogleClientID:     v.GetString("mail.google_client_id"),
			GoogleClientSecret: v.GetString("mail.google_client_secret"),
			GmailTokenDir:      v.GetString("mail.gmail_token_dir"),
			IMAPHost:           v.GetString("mail.imap_host"),
			IMAPPort:           v.GetInt("mail.imap_port"),
			IMAPPassword:       v.GetString("mail.imap_password"),
			IMAPTLS:            v.GetBool("mail.imap_tls"),
			IMAPMailbox:        v.GetString("mail.imap_mailbox"),
		},
		Sync: SyncConfig{
			Timeout:          durations["sync.timeout"],
			RetryBaseDelay:   durations["sync.retry_base_delay"],
			MaxAttempts:      v.GetInt("sync.max_attempts"),
			PageSize:         v.GetInt("sync.page_size"),
			ClassifyWorkers:  v.GetInt("sync.classify_workers"),
			ScheduleInterval: durations["sync.schedule_interval"],
			ScheduleAccounts: v.GetStringSlice("sync.schedule_accounts"),
			ScheduleDaysBack: v.GetInt("sync.schedule_days_back"),
			ScheduleMax:      v.GetInt("sync.schedule_max"),
		},
		Classifier: ClassifierConfig{
			JobThreshold:    v.GetInt("classifier.job_threshold"),
			NotJobThreshold: v.GetInt("classifier.not_job_threshold"),
		},
		Linker: LinkerConfig{
			MatchThreshold:   v.GetFloat64("linker.match_threshold"),
			RecencyWindow:    durations["linker.recency_window"],
			ExcludedStatuses: v.GetStringSlice("linker.excluded_statuses"),
			AutoCreate:       v.GetBool("linker.auto_create"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}, nil
}
