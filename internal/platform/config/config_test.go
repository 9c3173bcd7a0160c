package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/payroll")
	cfg := Load()

	assert.Equal(t, []int64{18}, cfg.PaidBreakOutlets)
	assert.Equal(t, []int64{483}, cfg.PaidBreakStaff)
	assert.Equal(t, 45*time.Second, cfg.DeputyTimeout)
	assert.Equal(t, 100, cfg.VendRateLimitPerMinute)
	assert.Equal(t, "Pacific/Auckland", cfg.Timezone)
	assert.Equal(t, 14, cfg.TimesheetMirrorDays)
	require.NoError(t, cfg.Validate())
}

func TestLoadLists(t *testing.T) {
	t.Setenv("PAID_BREAK_OUTLETS", "18, 21,")
	t.Setenv("ACTING_PAY_STAFF_IDS", "12,x")
	cfg := Load()

	assert.Equal(t, []int64{18, 21}, cfg.PaidBreakOutlets)
	assert.Nil(t, cfg.ActingPayStaffIDs)
}

func TestValidate(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x", MaxBodyBytes: 2048, RateLimitPerMinute: 10, VendRateLimitPerMinute: 100, BatchConcurrency: 1}
	require.NoError(t, cfg.Validate())

	missingDB := cfg
	missingDB.DatabaseURL = ""
	assert.Error(t, missingDB.Validate())

	halfDeputy := cfg
	halfDeputy.DeputyAPIURL = "https://example.au.deputy.com/api/v1"
	assert.Error(t, halfDeputy.Validate())

	xeroWithoutKey := cfg
	xeroWithoutKey.XeroClientID = "id"
	xeroWithoutKey.XeroClientSecret = "secret"
	xeroWithoutKey.XeroRedirectURL = "https://payroll.example/callback"
	assert.Error(t, xeroWithoutKey.Validate())

	badZone := cfg
	badZone.Timezone = "Middle/Earth"
	assert.Error(t, badZone.Validate())
	assert.Equal(t, time.UTC, badZone.Location())

	prod := cfg
	prod.Environment = "production"
	assert.Error(t, prod.Validate())
}
