package server

import (
	"fmt"
	"log/slog"
	"time"

	"hrpay/internal/domain/amendment"
	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/bankexport"
	"hrpay/internal/domain/bonus"
	"hrpay/internal/domain/breakpolicy"
	"hrpay/internal/domain/deputy"
	"hrpay/internal/domain/notifications"
	"hrpay/internal/domain/nzlaw"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/domain/reports"
	"hrpay/internal/domain/staff"
	"hrpay/internal/domain/timesheet"
	"hrpay/internal/domain/vend"
	"hrpay/internal/domain/xero"
	"hrpay/internal/platform/cache"
	cryptoutil "hrpay/internal/platform/crypto"
	"hrpay/internal/platform/deputyapi"
	"hrpay/internal/platform/email"
	"hrpay/internal/platform/jobs"
	"hrpay/internal/platform/vendapi"
	"hrpay/internal/platform/xeroapi"
)

const (
	apiWindow      = time.Minute
	loginLimit     = 10
	loginWindow    = 15 * time.Minute
	vendWindow     = time.Minute
	resyncBatch    = 200
	cachePrefix    = "hrpay:"
	limiterPrefix  = "hrpay:rl:"
	vendLimiterKey = "hrpay:vend:"
)

// services is everything the router and the job runner need.
type services struct {
	auth          *auth.Service
	users         *auth.Store
	audit         *audit.Service
	notifications *notifications.Service
	staff         *staff.Store
	directory     *staff.Directory
	timesheets    *timesheet.Store
	deputy        *deputy.Service
	amendments    *amendment.Service
	bonuses       *bonus.Service
	payroll       *payroll.Service
	payslips      *payroll.Store
	bank          *bankexport.Service
	vend          *vend.Service
	xero          *xero.Service
	reports       *reports.Service
	jobs          *jobs.Service

	apiLimiter   cache.Limiter
	loginLimiter cache.Limiter
}

func wire(app *App) (*services, error) {
	cfg := app.Config
	pool := app.DB
	loc := cfg.Location()

	crypto, err := cryptoutil.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}

	var shared cache.Cache
	var apiLimiter, loginLimiter, vendLimiter cache.Limiter
	if app.Redis != nil {
		shared = cache.NewRedis(app.Redis, cachePrefix)
		apiLimiter = cache.NewRedisLimiter(app.Redis, limiterPrefix+"api:", cfg.RateLimitPerMinute, apiWindow)
		loginLimiter = cache.NewRedisLimiter(app.Redis, limiterPrefix+"login:", loginLimit, loginWindow)
		vendLimiter = cache.NewRedisLimiter(app.Redis, vendLimiterKey, cfg.VendRateLimitPerMinute, vendWindow)
	} else {
		shared = cache.NewMemory()
		apiLimiter = cache.NewMemoryLimiter(cfg.RateLimitPerMinute, apiWindow)
		loginLimiter = cache.NewMemoryLimiter(loginLimit, loginWindow)
		vendLimiter = cache.NewMemoryLimiter(cfg.VendRateLimitPerMinute, vendWindow)
	}

	calendar := nzlaw.DefaultCalendar()
	if cfg.HolidayFile != "" {
		calendar, err = nzlaw.LoadHolidayFile(cfg.HolidayFile)
		if err != nil {
			return nil, fmt.Errorf("holiday file: %w", err)
		}
		slog.Info("public holidays loaded", "file", cfg.HolidayFile, "count", calendar.Len())
	}

	users := auth.NewStore(pool)
	recorder := audit.New(pool)
	notifier := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	staffStore := staff.NewStore(pool, crypto)
	timesheets := timesheet.NewStore(pool)

	s := &services{
		auth:          auth.NewService(users, cfg.JWTSecret, cfg.TokenTTL),
		users:         users,
		audit:         recorder,
		notifications: notifier,
		staff:         staffStore,
		directory:     staff.NewDirectory(staffStore),
		timesheets:    timesheets,
		bonuses:       bonus.NewService(bonus.NewStore(pool), recorder),
		jobs:          jobs.New(jobs.NewStore(pool), loc),
		apiLimiter:    apiLimiter,
		loginLimiter:  loginLimiter,
	}

	var syncer amendment.Syncer
	if cfg.DeputyConfigured() {
		api := deputyapi.New(cfg.DeputyAPIURL, cfg.DeputyAPIToken, cfg.DeputyTimeout).WithObserver(app.Metrics.RecordUpstream)
		s.deputy = deputy.NewService(api, staffStore, loc)
		syncer = s.deputy
	} else {
		slog.Warn("Deputy not configured; amendments will not sync")
	}
	s.amendments = amendment.NewService(amendment.NewStore(pool), syncer, staffStore, recorder, notifier)

	var vendAPI vend.API
	if cfg.VendConfigured() {
		vendAPI = vendapi.New(vendapi.Options{
			DomainPrefix:    cfg.VendDomainPrefix,
			AccessToken:     cfg.VendAccessToken,
			Timeout:         cfg.VendTimeout,
			PaymentTypeName: cfg.VendPaymentTypeName,
			RegisterName:    cfg.VendRegisterName,
			Cache:           shared,
		}).WithObserver(app.Metrics.RecordUpstream)
	} else {
		slog.Warn("Vend not configured; deductions cannot be allocated")
	}
	s.vend = vend.NewService(vend.NewStore(pool), vend.NewTxStore(pool), vendAPI, staffStore, vendLimiter, recorder)

	engine := payroll.NewEngine(payroll.EngineConfig{
		Breaks:                breakpolicy.New(cfg.PaidBreakOutlets, cfg.PaidBreakStaff),
		Calendar:              calendar,
		ActingPayStaffIDs:     cfg.ActingPayStaffIDs,
		ActingPayCentsPerHour: cfg.ActingPayCentsPerHour,
		CommissionStaffIDs:    cfg.CommissionStaffIDs,
		CommissionBasisPoints: cfg.CommissionBasisPoints,
	})
	var sales payroll.SalesSource
	if vendAPI != nil {
		sales = s.vend
	}
	s.payslips = payroll.NewStore(pool)
	s.payroll = payroll.NewService(payroll.Deps{
		Store:       s.payslips,
		Tx:          payroll.NewTxStore(pool),
		Engine:      engine,
		Staff:       staffStore,
		Timesheets:  timesheets,
		Amendments:  s.amendments,
		Sales:       sales,
		Audit:       recorder,
		Notifier:    notifier,
		Crypto:      crypto,
		PayslipDir:  cfg.PayslipDir,
		Concurrency: cfg.BatchConcurrency,
	})

	s.bank = bankexport.NewService(bankexport.NewStore(pool), bankexport.NewTxStore(pool), staffStore, cfg.ExportDir, cfg.ASBFromAccount, recorder, notifier)

	xeroDeps := xero.Deps{
		Store:    xero.NewStore(pool),
		States:   shared,
		Payslips: s.payslips,
		Staff:    staffStore,
		Vend:     s.vend,
		Audit:    recorder,
		Config: xero.Config{
			CalendarID: cfg.XeroPayrollCalendarID,
			Rates: xero.EarningsRates{
				Ordinary:      cfg.XeroEarnings.Ordinary,
				Overtime:      cfg.XeroEarnings.Overtime,
				NightShift:    cfg.XeroEarnings.NightShift,
				PublicHoliday: cfg.XeroEarnings.PublicHoliday,
				Bonus:         cfg.XeroEarnings.Bonus,
			},
			BankAccountCode: cfg.XeroBankAccountCode,
		},
	}
	if cfg.XeroConfigured() {
		tokens := xero.NewTokenStore(pool, crypto, cfg.XeroTenantID)
		connector := xeroapi.NewAuth(cfg.XeroClientID, cfg.XeroClientSecret, cfg.XeroRedirectURL, tokens)
		xeroDeps.Connector = connector
		xeroDeps.API = xeroapi.New("", cfg.XeroTenantID, cfg.XeroTimeout, connector).WithObserver(app.Metrics.RecordUpstream)
	} else {
		slog.Warn("Xero not configured; pay runs cannot be pushed")
	}
	s.xero = xero.NewService(xeroDeps)

	s.reports = reports.NewService(reports.NewStore(pool), s.payslips)
	return s, nil
}
