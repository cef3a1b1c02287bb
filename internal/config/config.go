// Package config provides centralized configuration management for clinicprobe.
// It loads configuration from environment variables, applies CLI flag overrides,
// validates everything at once, and provides sensible defaults.
//
// CLI flags control which services are mocked or skipped (--no-email, --no-s3,
// --no-store, --skip-preflight). Environment variables provide secrets, the
// target application and timing configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/clinicprobe/internal/crypto"
	"github.com/kuitang/clinicprobe/internal/ratelimit"
	"github.com/kuitang/clinicprobe/internal/urlutil"
)

const (
	defaultBaseURL       = "http://localhost:3000"
	defaultViewport      = "1280x720"
	defaultAdminEmail    = "admin@omchabahildental.com.np"
	defaultAdminPassword = "Admin@123"
	defaultS3Region      = "auto"
	defaultResultsDB     = "clinicprobe.db"
)

// Timeouts holds the named timing configuration of a scenario run.
type Timeouts struct {
	Action     time.Duration // Default bound for fill/click/select
	Navigation time.Duration // Primary goto bound
	Readiness  time.Duration // Soft-fail page and frame readiness waits
	Assert     time.Duration // Default bound for assertions
	Settle     time.Duration // Pause before every interaction
	Trailing   time.Duration // Pause after the last step of a passing scenario
}

// Config holds all application configuration.
type Config struct {
	// Target application
	BaseURL       string
	AdminEmail    string
	AdminPassword string

	// Browser
	Headless        bool
	ViewportWidth   int
	ViewportHeight  int
	BrowserArgs     []string // Extra launch flags appended to the defaults
	InstallBrowsers bool     // Download the driver and Chromium before the run (--install)

	Timeouts Timeouts

	// Suite execution
	Parallelism      int
	FailFast         bool
	StartLimit       ratelimit.Config
	SkipPreflight    bool
	PreflightTimeout time.Duration

	// Mock / skip flags (controlled by CLI flags, not env vars)
	NoStore bool // Do not record results (--no-store)
	NoS3    bool // Do not upload artifacts (--no-s3)
	NoEmail bool // Log the report instead of emailing it (--no-email)

	// Results store
	ResultsDBPath string
	MasterKey     string // Optional; 64 hex characters (32 bytes) enables encryption

	// S3 storage for failure artifacts
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPathStyle       bool   // AWS_S3_PATH_STYLE; path-style addressing for S3-compatible endpoints

	// Resend email for failure reports
	ResendAPIKey    string
	ReportFromEmail string
	ReportToEmail   string
	ReportOutboxDir string // With --no-email, mock notifications are also written here

	LogLevel string
}

// Flags carries CLI values that override or complement the environment.
// Zero values mean "not set on the command line".
type Flags struct {
	BaseURL       string
	Parallelism   int
	FailFast      bool
	SkipPreflight bool
	Install       bool
	NoStore       bool
	NoS3          bool
	NoEmail       bool
	Headed        bool
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(flags Flags) (*Config, error) {
	cfg := &Config{}

	cfg.NoStore = flags.NoStore
	cfg.NoS3 = flags.NoS3
	cfg.NoEmail = flags.NoEmail
	cfg.FailFast = flags.FailFast
	cfg.SkipPreflight = flags.SkipPreflight
	cfg.InstallBrowsers = flags.Install

	// Target application
	cfg.BaseURL = getEnvOrDefault("BASE_URL", defaultBaseURL)
	if flags.BaseURL != "" {
		cfg.BaseURL = strings.TrimSpace(flags.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.AdminEmail = getEnvOrDefault("ADMIN_EMAIL", defaultAdminEmail)
	cfg.AdminPassword = getEnvOrDefault("ADMIN_PASSWORD", defaultAdminPassword)

	// Browser
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)
	if flags.Headed {
		cfg.Headless = false
	}
	var viewportErr error
	cfg.ViewportWidth, cfg.ViewportHeight, viewportErr = ParseViewport(getEnvOrDefault("VIEWPORT", defaultViewport))
	cfg.BrowserArgs = splitList(os.Getenv("BROWSER_ARGS"))

	cfg.Timeouts = Timeouts{
		Action:     parseDurationOrDefault("ACTION_TIMEOUT", 5*time.Second),
		Navigation: parseDurationOrDefault("NAVIGATION_TIMEOUT", 10*time.Second),
		Readiness:  parseDurationOrDefault("READINESS_TIMEOUT", 3*time.Second),
		Assert:     parseDurationOrDefault("ASSERT_TIMEOUT", 3*time.Second),
		Settle:     parseDurationOrDefault("SETTLE_DELAY", 0),
		Trailing:   parseDurationOrDefault("TRAILING_DELAY", 5*time.Second),
	}

	// Suite execution
	cfg.Parallelism = parseIntOrDefault("PARALLELISM", 1)
	if flags.Parallelism != 0 {
		cfg.Parallelism = flags.Parallelism
	}
	cfg.StartLimit = ratelimit.Config{
		StartsPerSecond: parseFloat64OrDefault("START_RPS", ratelimit.DefaultConfig.StartsPerSecond),
		Burst:           parseIntOrDefault("START_BURST", ratelimit.DefaultConfig.Burst),
		CleanupInterval: ratelimit.DefaultConfig.CleanupInterval,
	}
	cfg.PreflightTimeout = parseDurationOrDefault("PREFLIGHT_TIMEOUT", 5*time.Second)

	// Results store
	cfg.ResultsDBPath = getEnvOrDefault("RESULTS_DB_PATH", defaultResultsDB)
	cfg.MasterKey = strings.TrimSpace(os.Getenv("MASTER_KEY"))

	// S3 storage
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPathStyle = parseBoolOrDefault("AWS_S3_PATH_STYLE", false)

	// Resend email
	cfg.ResendAPIKey = strings.TrimSpace(os.Getenv("RESEND_API_KEY"))
	cfg.ReportFromEmail = getEnvOrDefault("REPORT_FROM_EMAIL", "clinicprobe@localhost")
	cfg.ReportToEmail = strings.TrimSpace(os.Getenv("REPORT_TO_EMAIL"))
	cfg.ReportOutboxDir = strings.TrimSpace(os.Getenv("REPORT_OUTBOX_DIR"))

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	err := cfg.Validate()
	if viewportErr != nil {
		err = appendValidation(err, "VIEWPORT: "+viewportErr.Error())
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
// When a service is NOT skipped, its credentials are required.
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "BASE_URL must be an absolute http(s) URL")
	}
	if c.AdminEmail == "" {
		errs = append(errs, "ADMIN_EMAIL is required")
	}
	if c.AdminPassword == "" {
		errs = append(errs, "ADMIN_PASSWORD is required")
	}

	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, "VIEWPORT must be WIDTHxHEIGHT with positive dimensions")
	}

	for name, d := range map[string]time.Duration{
		"ACTION_TIMEOUT":     c.Timeouts.Action,
		"NAVIGATION_TIMEOUT": c.Timeouts.Navigation,
		"READINESS_TIMEOUT":  c.Timeouts.Readiness,
		"ASSERT_TIMEOUT":     c.Timeouts.Assert,
	} {
		if d <= 0 {
			errs = append(errs, name+" must be positive")
		}
	}
	if c.Timeouts.Settle < 0 {
		errs = append(errs, "SETTLE_DELAY must not be negative")
	}
	if c.Timeouts.Trailing < 0 {
		errs = append(errs, "TRAILING_DELAY must not be negative")
	}

	if c.Parallelism < 1 {
		errs = append(errs, "PARALLELISM must be at least 1")
	}
	if c.StartLimit.StartsPerSecond <= 0 {
		errs = append(errs, "START_RPS must be positive")
	}
	if c.StartLimit.Burst <= 0 {
		errs = append(errs, "START_BURST must be positive")
	}

	if !c.NoStore && c.ResultsDBPath == "" {
		errs = append(errs, "RESULTS_DB_PATH is required (set env var or use --no-store)")
	}
	if c.MasterKey != "" {
		if len(c.MasterKey) != 2*crypto.MasterKeySize {
			errs = append(errs, "MASTER_KEY must be 64 hex characters (32 bytes)")
		} else if _, err := crypto.ParseMasterKey(c.MasterKey); err != nil {
			errs = append(errs, "MASTER_KEY must be hex encoded")
		}
	}

	if !c.NoS3 {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required (set env var or use --no-s3)")
		}
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required (set env var or use --no-s3)")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required (set env var or use --no-s3)")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required (set env var or use --no-s3)")
		}
	}

	if !c.NoEmail {
		if c.ResendAPIKey == "" {
			errs = append(errs, "RESEND_API_KEY is required (set env var or use --no-email)")
		}
		if c.ReportToEmail == "" {
			errs = append(errs, "REPORT_TO_EMAIL is required (set env var or use --no-email)")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Host returns the host:port of the base URL, used as the pacing key.
func (c *Config) Host() string {
	return urlutil.Host(c.BaseURL)
}

// PrintStartupSummary prints a human-readable summary of the configuration to stderr.
func (c *Config) PrintStartupSummary() {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "clinicprobe starting...")
	fmt.Fprintf(os.Stderr, "  Target:   %s\n", c.BaseURL)

	mode := "headless"
	if !c.Headless {
		mode = "headed"
	}
	fmt.Fprintf(os.Stderr, "  Browser:  chromium %s %dx%d\n", mode, c.ViewportWidth, c.ViewportHeight)
	fmt.Fprintf(os.Stderr, "  Timeouts: action=%s navigation=%s readiness=%s assert=%s trailing=%s\n",
		c.Timeouts.Action, c.Timeouts.Navigation, c.Timeouts.Readiness, c.Timeouts.Assert, c.Timeouts.Trailing)
	fmt.Fprintf(os.Stderr, "  Suite:    parallelism=%d fail-fast=%t\n", c.Parallelism, c.FailFast)

	if c.NoStore {
		fmt.Fprintln(os.Stderr, "  Store:    disabled (--no-store)")
	} else if c.MasterKey != "" {
		fmt.Fprintf(os.Stderr, "  Store:    %s (encrypted)\n", c.ResultsDBPath)
	} else {
		fmt.Fprintf(os.Stderr, "  Store:    %s\n", c.ResultsDBPath)
	}

	if c.NoS3 {
		fmt.Fprintln(os.Stderr, "  Storage:  disabled (--no-s3)")
	} else {
		fmt.Fprintf(os.Stderr, "  Storage:  S3 (endpoint: %s, bucket: %s)\n", c.AWSEndpointS3, c.AWSBucketName)
	}

	if c.NoEmail {
		fmt.Fprintln(os.Stderr, "  Email:    Mock (--no-email)")
	} else {
		fmt.Fprintf(os.Stderr, "  Email:    Resend (from: %s, to: %s)\n", c.ReportFromEmail, c.ReportToEmail)
	}
	fmt.Fprintln(os.Stderr, "")
}

// ParseViewport parses "WIDTHxHEIGHT".
func ParseViewport(value string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid viewport %q: want WIDTHxHEIGHT", value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid viewport width %q: %w", w, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid viewport height %q: %w", h, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport %q: dimensions must be positive", value)
	}
	return width, height, nil
}

func appendValidation(err error, msg string) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		validationErr.Errors = append(validationErr.Errors, msg)
		return validationErr
	}
	return &ValidationError{Errors: []string{msg}}
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
