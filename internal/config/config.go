package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr string
	BaseURL    string

	DB struct {
		DSN string
	}

	Sheet struct {
		SpreadsheetID string
		Tab           string
		File          string
	}

	Google struct {
		CredentialsFile string
		CredentialsJSON string
	}

	Sync struct {
		Timezone       string
		DayBlockRows   int
		BatchSize      int
		PastDays       int
		FutureDays     int
		Schedule       string
		IngestSchedule string
		RunTimeout     time.Duration
	}

	Admin struct {
		APIKey string
	}

	OIDC struct {
		IssuerURL string
		ClientID  string
	}

	AllowedOrigins    []string
	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		var missing []string
		if host == "" {
			missing = append(missing, "APP_DB_HOST")
		}
		if name == "" {
			missing = append(missing, "APP_DB_NAME")
		}
		if user == "" {
			missing = append(missing, "APP_DB_USER")
		}
		if password == "" {
			missing = append(missing, "APP_DB_PASSWORD")
		}

		if len(missing) == 0 {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Sheet.SpreadsheetID = os.Getenv("APP_SHEET_ID")
	cfg.Sheet.Tab = os.Getenv("APP_SHEET_TAB")
	cfg.Sheet.File = os.Getenv("APP_SHEET_FILE")

	cfg.Google.CredentialsFile = os.Getenv("APP_GOOGLE_CREDENTIALS_FILE")
	cfg.Google.CredentialsJSON = os.Getenv("APP_GOOGLE_CREDENTIALS_JSON")

	cfg.Sync.Timezone = getenvDefault("APP_TIMEZONE", "Africa/Nairobi")
	cfg.Sync.DayBlockRows = getenvInt("APP_DAY_BLOCK_ROWS", 4)
	cfg.Sync.BatchSize = getenvInt("APP_SYNC_BATCH_SIZE", 5)
	cfg.Sync.PastDays = getenvInt("APP_SYNC_PAST_DAYS", 7)
	cfg.Sync.FutureDays = getenvInt("APP_SYNC_FUTURE_DAYS", 60)
	// Setting APP_SYNC_SCHEDULE to an empty string disables the cron, which
	// is distinct from leaving it unset.
	if v, ok := os.LookupEnv("APP_SYNC_SCHEDULE"); ok {
		cfg.Sync.Schedule = v
	} else {
		cfg.Sync.Schedule = "0 6 * * *"
	}
	cfg.Sync.IngestSchedule = os.Getenv("APP_INGEST_SCHEDULE")
	cfg.Sync.RunTimeout = getenvDuration("APP_SYNC_RUN_TIMEOUT", 10*time.Minute)

	cfg.Admin.APIKey = os.Getenv("APP_ADMIN_API_KEY")
	cfg.OIDC.IssuerURL = os.Getenv("APP_OIDC_ISSUER_URL")
	cfg.OIDC.ClientID = os.Getenv("APP_OIDC_CLIENT_ID")

	cfg.AllowedOrigins = getenvList("APP_ALLOWED_ORIGINS")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Sheet.SpreadsheetID == "" && cfg.Sheet.File == "" {
		return nil, errors.New("APP_SHEET_ID or APP_SHEET_FILE is required")
	}
	if cfg.Sheet.SpreadsheetID != "" && !cfg.HasGoogleCredentials() {
		return nil, errors.New("APP_GOOGLE_CREDENTIALS_FILE or APP_GOOGLE_CREDENTIALS_JSON is required to read a Google spreadsheet")
	}
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("APP_ADMIN_API_KEY is required")
	}
	if len(cfg.Admin.APIKey) < 16 {
		return nil, fmt.Errorf("APP_ADMIN_API_KEY must be at least 16 characters long (got %d)", len(cfg.Admin.APIKey))
	}
	if cfg.Sync.DayBlockRows < 2 {
		return nil, fmt.Errorf("APP_DAY_BLOCK_ROWS must be at least 2 (got %d)", cfg.Sync.DayBlockRows)
	}
	if cfg.Sync.BatchSize < 1 {
		return nil, fmt.Errorf("APP_SYNC_BATCH_SIZE must be at least 1 (got %d)", cfg.Sync.BatchSize)
	}
	if _, err := time.LoadLocation(cfg.Sync.Timezone); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q is not a valid IANA zone: %w", cfg.Sync.Timezone, err)
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. GridCal will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

// HasGoogleCredentials reports whether service account credentials were
// supplied in any form.
func (c *Config) HasGoogleCredentials() bool {
	return c.Google.CredentialsFile != "" || c.Google.CredentialsJSON != ""
}

// GoogleCredentials returns the raw service account JSON. Inline credentials
// win over a file path.
func (c *Config) GoogleCredentials() ([]byte, error) {
	if c.Google.CredentialsJSON != "" {
		return []byte(c.Google.CredentialsJSON), nil
	}
	if c.Google.CredentialsFile != "" {
		data, err := os.ReadFile(c.Google.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("no google credentials configured")
}

// Location resolves the configured sync timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Sync.Timezone)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
