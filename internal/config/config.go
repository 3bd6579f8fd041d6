package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/benfogiel/Sparkpad/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Store         string `envconfig:"STORE" default:"sqlite"`         // sqlite|firestore|memory
	PushTransport string `envconfig:"PUSH_TRANSPORT" default:"fcm"`   // fcm|telegram|log
	DBPath        string `envconfig:"DB_PATH" default:"./data/reemind.db"`

	FirebaseCredentials string `envconfig:"FIREBASE_CREDENTIALS_PATH"`
	FirebaseProjectID   string `envconfig:"FIREBASE_PROJECT_ID"`
	BotToken            string `envconfig:"BOT_TOKEN"`
	PushBreaker         bool   `envconfig:"PUSH_BREAKER" default:"true"`

	Schedule            string        `envconfig:"SCHEDULE" default:"*/15 * * * *"`
	BatchTimeout        time.Duration `envconfig:"BATCH_TIMEOUT" default:"9m"`
	RunOnStart          bool          `envconfig:"RUN_ON_START" default:"false"`
	DispatchConcurrency int           `envconfig:"DISPATCH_CONCURRENCY" default:"16"`
	MaxRecent           int           `envconfig:"MAX_RECENT" default:"10"`
	NotificationTitle   string        `envconfig:"NOTIFICATION_TITLE" default:"Daily Reminder"`

	DefaultTZ        string `envconfig:"DEFAULT_TZ" default:"UTC"`
	DefaultTimeLower string `envconfig:"DEFAULT_TIME_LOWER" default:"09:00"`
	DefaultTimeUpper string `envconfig:"DEFAULT_TIME_UPPER" default:"21:00"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"` // healthz, metrics
}

// Load reads an optional .env file, then environment variables into Config.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks enum values, per-choice secrets and defaults.
func (c Config) Validate() error {
	var errs []error

	switch c.Store {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for STORE=sqlite"))
		}
	case "firestore":
		if c.FirebaseCredentials == "" && c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH or FIREBASE_PROJECT_ID is required for STORE=firestore"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE: unknown value %q", c.Store))
	}

	switch c.PushTransport {
	case "fcm":
		if c.FirebaseCredentials == "" && c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_CREDENTIALS_PATH or FIREBASE_PROJECT_ID is required for PUSH_TRANSPORT=fcm"))
		}
	case "telegram":
		if c.BotToken == "" {
			errs = append(errs, errors.New("BOT_TOKEN is required for PUSH_TRANSPORT=telegram"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("PUSH_TRANSPORT: unknown value %q", c.PushTransport))
	}

	if c.MaxRecent < 1 {
		errs = append(errs, fmt.Errorf("MAX_RECENT must be >= 1, got %d", c.MaxRecent))
	}
	if c.DispatchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_CONCURRENCY must be >= 1, got %d", c.DispatchConcurrency))
	}
	if c.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_TIMEOUT must be positive, got %s", c.BatchTimeout))
	}
	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TZ: %w", err))
	}
	if _, _, err := domain.ParseWindow(c.DefaultTimeLower, c.DefaultTimeUpper); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TIME_LOWER/UPPER: %w", err))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE: %w", err))
	}

	return errors.Join(errs...)
}

// NeedsFirebase reports whether a Firebase app must be initialized.
func (c Config) NeedsFirebase() bool {
	return c.Store == "firestore" || c.PushTransport == "fcm"
}
