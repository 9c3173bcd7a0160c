package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	DBMaxConns         int32
	JWTSecret          string
	TokenTTL           time.Duration
	EncryptionKey      string
	Environment        string
	Timezone           string
	MigrationsDir      string
	RunMigrations      bool
	RunSeed            bool
	SeedAdminEmail     string
	SeedAdminPassword  string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	CORSOrigins        []string

	EmailFrom    string
	EmailEnabled bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool

	DeputyAPIURL   string
	DeputyAPIToken string
	DeputyTimeout  time.Duration

	XeroClientID          string
	XeroClientSecret      string
	XeroRedirectURL       string
	XeroTenantID          string
	XeroPayrollCalendarID string
	XeroTimeout           time.Duration
	XeroBankAccountCode   string
	XeroEarnings          XeroEarningsRates

	VendDomainPrefix       string
	VendAccessToken        string
	VendTimeout            time.Duration
	VendRateLimitPerMinute int
	VendPaymentTypeName    string
	VendRegisterName       string

	RedisURL string

	ExportDir      string
	PayslipDir     string
	ASBFromAccount string
	HolidayFile    string

	PaidBreakOutlets      []int64
	PaidBreakStaff        []int64
	ActingPayStaffIDs     []int64
	ActingPayCentsPerHour int64
	CommissionStaffIDs    []int64
	CommissionBasisPoints int64

	BatchConcurrency        int
	DeputyResyncSchedule    string
	TimesheetMirrorSchedule string
	TimesheetMirrorDays     int
	VendRetrySchedule       string
	PayslipBatchSchedule    string
}

// XeroEarningsRates maps pay categories to Xero EarningsRateIDs.
type XeroEarningsRates struct {
	Ordinary      string
	Overtime      string
	NightShift    string
	PublicHoliday string
	Bonus         string
}

// Load reads a .env file when one exists and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", "err", err)
	}

	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxConns:         int32(getEnvInt("DB_MAX_CONNS", 10)),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 12*time.Hour),
		EncryptionKey:      getEnv("ENCRYPTION_KEY", ""),
		Environment:        getEnv("APP_ENV", "development"),
		Timezone:           getEnv("PAYROLL_TIMEZONE", "Pacific/Auckland"),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:  getEnv("SEED_ADMIN_PASSWORD", ""),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		EmailFrom:    getEnv("EMAIL_FROM", "payroll@example.co.nz"),
		EmailEnabled: getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:   getEnvBool("SMTP_USE_TLS", true),

		DeputyAPIURL:   getEnv("DEPUTY_API_URL", ""),
		DeputyAPIToken: getEnv("DEPUTY_API_TOKEN", ""),
		DeputyTimeout:  getEnvDuration("DEPUTY_TIMEOUT", 45*time.Second),

		XeroClientID:          getEnv("XERO_CLIENT_ID", ""),
		XeroClientSecret:      getEnv("XERO_CLIENT_SECRET", ""),
		XeroRedirectURL:       getEnv("XERO_REDIRECT_URL", ""),
		XeroTenantID:          getEnv("XERO_TENANT_ID", ""),
		XeroPayrollCalendarID: getEnv("XERO_PAYROLL_CALENDAR_ID", ""),
		XeroTimeout:           getEnvDuration("XERO_TIMEOUT", 30*time.Second),
		XeroBankAccountCode:   getEnv("XERO_BANK_ACCOUNT_CODE", ""),
		XeroEarnings: XeroEarningsRates{
			Ordinary:      getEnv("XERO_RATE_ORDINARY", ""),
			Overtime:      getEnv("XERO_RATE_OVERTIME", ""),
			NightShift:    getEnv("XERO_RATE_NIGHT", ""),
			PublicHoliday: getEnv("XERO_RATE_PUBLIC_HOLIDAY", ""),
			Bonus:         getEnv("XERO_RATE_BONUS", ""),
		},

		VendDomainPrefix:       getEnv("VEND_DOMAIN_PREFIX", ""),
		VendAccessToken:        getEnv("VEND_ACCESS_TOKEN", ""),
		VendTimeout:            getEnvDuration("VEND_TIMEOUT", 20*time.Second),
		VendRateLimitPerMinute: getEnvInt("VEND_RATE_LIMIT_PER_MINUTE", 100),
		VendPaymentTypeName:    getEnv("VEND_PAYMENT_TYPE_NAME", "Staff Account"),
		VendRegisterName:       getEnv("VEND_REGISTER_NAME", "Main Register"),

		RedisURL: getEnv("REDIS_URL", ""),

		ExportDir:      getEnv("EXPORT_DIR", "storage/exports"),
		PayslipDir:     getEnv("PAYSLIP_DIR", "storage/payslips"),
		ASBFromAccount: getEnv("ASB_FROM_ACCOUNT", ""),
		HolidayFile:    getEnv("HOLIDAY_FILE", ""),

		PaidBreakOutlets:      getEnvInt64List("PAID_BREAK_OUTLETS", []int64{18}),
		PaidBreakStaff:        getEnvInt64List("PAID_BREAK_STAFF", []int64{483}),
		ActingPayStaffIDs:     getEnvInt64List("ACTING_PAY_STAFF_IDS", nil),
		ActingPayCentsPerHour: int64(getEnvInt("ACTING_PAY_CENTS_PER_HOUR", 300)),
		CommissionStaffIDs:    getEnvInt64List("COMMISSION_STAFF_IDS", nil),
		CommissionBasisPoints: int64(getEnvInt("COMMISSION_BASIS_POINTS", 0)),

		BatchConcurrency:        getEnvInt("BATCH_CONCURRENCY", 4),
		DeputyResyncSchedule:    getEnv("DEPUTY_RESYNC_SCHEDULE", "0 2 * * *"),
		TimesheetMirrorSchedule: getEnv("TIMESHEET_MIRROR_SCHEDULE", "15 * * * *"),
		TimesheetMirrorDays:     getEnvInt("TIMESHEET_MIRROR_DAYS", 14),
		VendRetrySchedule:       getEnv("VEND_RETRY_SCHEDULE", "*/30 * * * *"),
		PayslipBatchSchedule:    getEnv("PAYSLIP_BATCH_SCHEDULE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt64List(key string, fallback []int64) []int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fallback
		}
		out = append(out, id)
	}
	return out
}

func (c Config) DeputyConfigured() bool {
	return c.DeputyAPIURL != "" && c.DeputyAPIToken != ""
}

func (c Config) XeroConfigured() bool {
	return c.XeroClientID != "" && c.XeroClientSecret != ""
}

func (c Config) VendConfigured() bool {
	return c.VendDomainPrefix != "" && c.VendAccessToken != ""
}

// Location returns the payroll timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		required := map[string]string{
			"JWT_SECRET":       c.JWTSecret,
			"ENCRYPTION_KEY":   c.EncryptionKey,
			"DEPUTY_API_URL":   c.DeputyAPIURL,
			"DEPUTY_API_TOKEN": c.DeputyAPIToken,
			"ASB_FROM_ACCOUNT": c.ASBFromAccount,
		}
		for key, value := range required {
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("%s must be set in production", key)
			}
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if (c.DeputyAPIURL == "") != (c.DeputyAPIToken == "") {
		return fmt.Errorf("DEPUTY_API_URL and DEPUTY_API_TOKEN must be set together")
	}
	if c.XeroClientID != "" && (c.XeroClientSecret == "" || c.XeroRedirectURL == "") {
		return fmt.Errorf("XERO_CLIENT_SECRET and XERO_REDIRECT_URL are required with XERO_CLIENT_ID")
	}
	if c.XeroConfigured() && c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required to store Xero tokens")
	}
	if (c.VendDomainPrefix == "") != (c.VendAccessToken == "") {
		return fmt.Errorf("VEND_DOMAIN_PREFIX and VEND_ACCESS_TOKEN must be set together")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 || c.VendRateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("PAYROLL_TIMEZONE: %w", err)
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
