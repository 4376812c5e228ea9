package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = ":9102"

	defaultConnectorInterval = 15 * time.Minute
	defaultAlertInterval     = time.Hour

	defaultSMTPPort = 587
	defaultSMTPFrom = "alerts@leakwatch.local"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	MetricsAddr string

	// MasterKey derives the AES key protecting connector and integration
	// secrets. Rotating it invalidates every stored ciphertext.
	MasterKey string

	ConnectorInterval time.Duration
	AlertInterval     time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

type LoadOptions struct {
	RequireDatabaseURL bool
	RequireMasterKey   bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true, RequireMasterKey: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		HTTPAddr:          getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:       getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		MasterKey:         os.Getenv("MASTER_KEY"),
		ConnectorInterval: defaultConnectorInterval,
		AlertInterval:     defaultAlertInterval,
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getenvIntDefault("SMTP_PORT", defaultSMTPPort),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:          getenvDefault("SMTP_FROM", defaultSMTPFrom),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if v := os.Getenv("CONNECTOR_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnectorInterval = d
		}
	}
	if v := os.Getenv("ALERT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AlertInterval = d
		}
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if opts.RequireMasterKey && cfg.MasterKey == "" {
		return cfg, errors.New("MASTER_KEY is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
