package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clinicbook/internal/catalog"
	"clinicbook/internal/domain"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultLogLevel           = "info"
	defaultTimezone           = "UTC"
	defaultHorizonDays        = "30"
	defaultReservationStatus  = "pending"
	defaultConsultationFee    = "50"
	defaultCurrency           = "USD"
	defaultWorkingDays        = "monday,tuesday,wednesday,thursday,friday"
	defaultAvailabilityMode   = "closed"
	defaultDegraded           = "false"
	defaultStoreTimeout       = "5s"
	defaultStoreAttempts      = "3"
	defaultRetryBaseDelay     = "200ms"
	defaultRetryMaxDelay      = "2s"
	defaultCacheTTL           = "30s"
	defaultSessionIdleTTL     = "30m"
	defaultSuccessResetDelay  = "3s"
	defaultRateLimitPerMinute = "60"
	defaultJWTTTL             = "12h"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultAdminEmail         = "admin@clinic.local"
)

// Availability fallback modes.
const (
	FallbackClosed    = "closed"
	FallbackOpen      = "open"
	FallbackAlternate = "alternate"
)

var ErrMissingStoreCredentials = errors.New("DATABASE_URL is required")

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	Location           *time.Location
	TimeSlots          catalog.Catalog
	WorkingDays        catalog.WorkingDays
	HorizonDays        int
	DefaultStatus      domain.ReservationStatus
	ConsultationFee    float64
	Currency           string
	AvailabilityMode   string
	DegradedReserve    bool
	StoreTimeout       time.Duration
	StoreAttempts      int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	CacheTTL           time.Duration
	SessionIdleTTL     time.Duration
	SuccessResetDelay  time.Duration
	RateLimitPerMinute int

	JWTSecret         string
	JWTTTL            time.Duration
	AdminEmail        string
	AdminPasswordHash string
	CORSOrigins       []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	var err error
	tz := strings.TrimSpace(getEnv("CLINIC_TIMEZONE", defaultTimezone))
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid CLINIC_TIMEZONE value %q: %w", tz, err)
	}

	if raw := strings.TrimSpace(os.Getenv("BOOKING_TIME_SLOTS")); raw != "" {
		if cfg.TimeSlots, err = catalog.Parse(raw); err != nil {
			return nil, fmt.Errorf("invalid BOOKING_TIME_SLOTS: %w", err)
		}
	} else {
		cfg.TimeSlots = catalog.Default()
	}
	if cfg.WorkingDays, err = catalog.ParseWorkingDays(getEnv("BOOKING_WORKING_DAYS", defaultWorkingDays)); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_WORKING_DAYS: %w", err)
	}

	if cfg.HorizonDays, err = parseIntEnv("BOOKING_HORIZON_DAYS", defaultHorizonDays); err != nil {
		return nil, err
	}
	status := strings.ToLower(strings.TrimSpace(getEnv("RESERVATION_DEFAULT_STATUS", defaultReservationStatus)))
	cfg.DefaultStatus = domain.ReservationStatus(status)
	if cfg.ConsultationFee, err = parseFloatEnv("CONSULTATION_FEE", defaultConsultationFee); err != nil {
		return nil, err
	}
	cfg.Currency = strings.ToUpper(strings.TrimSpace(getEnv("CONSULTATION_CURRENCY", defaultCurrency)))
	cfg.AvailabilityMode = strings.ToLower(strings.TrimSpace(getEnv("AVAILABILITY_FALLBACK", defaultAvailabilityMode)))
	cfg.DegradedReserve = parseBoolEnv("DEGRADED_RESERVATIONS", defaultDegraded)

	if cfg.StoreTimeout, err = parseDurationEnv("STORE_TIMEOUT", defaultStoreTimeout); err != nil {
		return nil, err
	}
	if cfg.StoreAttempts, err = parseIntEnv("STORE_ATTEMPTS", defaultStoreAttempts); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = parseDurationEnv("STORE_RETRY_BASE_DELAY", defaultRetryBaseDelay); err != nil {
		return nil, err
	}
	if cfg.RetryMaxDelay, err = parseDurationEnv("STORE_RETRY_MAX_DELAY", defaultRetryMaxDelay); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDurationEnv("AVAILABILITY_CACHE_TTL", defaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = parseDurationEnv("SESSION_IDLE_TTL", defaultSessionIdleTTL); err != nil {
		return nil, err
	}
	if cfg.SuccessResetDelay, err = parseDurationEnv("SESSION_SUCCESS_RESET_DELAY", defaultSuccessResetDelay); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = parseIntEnv("RATE_LIMIT_PER_MINUTE", defaultRateLimitPerMinute); err != nil {
		return nil, err
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", defaultAdminEmail)))
	cfg.AdminPasswordHash = strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	cfg.CORSOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProdLike reports whether the deployment must fail closed.
func (c *Config) IsProdLike() bool { return isProdLike(c.AppEnv) }

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return ErrMissingStoreCredentials
	}
	if cfg.HorizonDays < 0 {
		return fmt.Errorf("BOOKING_HORIZON_DAYS must be >= 0")
	}
	if cfg.DefaultStatus != domain.StatusPending && cfg.DefaultStatus != domain.StatusConfirmed {
		return fmt.Errorf("RESERVATION_DEFAULT_STATUS must be one of: pending, confirmed")
	}
	if cfg.ConsultationFee < 0 {
		return fmt.Errorf("CONSULTATION_FEE must be >= 0")
	}
	switch cfg.AvailabilityMode {
	case FallbackClosed, FallbackOpen, FallbackAlternate:
	default:
		return fmt.Errorf("AVAILABILITY_FALLBACK must be one of: closed, open, alternate")
	}
	if cfg.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if cfg.StoreAttempts < 1 {
		return fmt.Errorf("STORE_ATTEMPTS must be >= 1")
	}
	if cfg.RetryBaseDelay <= 0 {
		return fmt.Errorf("STORE_RETRY_BASE_DELAY must be > 0")
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("STORE_RETRY_MAX_DELAY must be >= STORE_RETRY_BASE_DELAY")
	}
	if cfg.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	if cfg.SuccessResetDelay < 0 {
		return fmt.Errorf("SESSION_SUCCESS_RESET_DELAY must be >= 0")
	}
	if cfg.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.DegradedReserve {
			return fmt.Errorf("in prod/release DEGRADED_RESERVATIONS must be false")
		}
		if cfg.AdminPasswordHash == "" {
			return fmt.Errorf("in prod/release ADMIN_PASSWORD_HASH must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseFloatEnv(name, fallback string) (float64, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return f, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
