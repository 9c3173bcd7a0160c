package timesheet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/platform/validation"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNewValidatesAndWraps(t *testing.T) {
	ts, err := New(Timesheet{
		StaffID:  1,
		OutletID: 2,
		Date:     at("2025-03-10 00:00"),
		Start:    at("2025-03-10 22:00"),
		End:      at("2025-03-10 06:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, at("2025-03-11 06:00"), ts.End)
	assert.Equal(t, int64(480), ts.TotalMinutes())

	_, err = New(Timesheet{OutletID: 2, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 09:00"), End: at("2025-03-10 10:00")})
	assert.True(t, validation.IsValidation(err))

	_, err = New(Timesheet{StaffID: 1, OutletID: 2, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 09:00"), End: at("2025-03-10 10:00"), BreakMinutes: -5})
	assert.True(t, validation.IsValidation(err))
}

func TestOverlap(t *testing.T) {
	assert.Equal(t, 2*time.Hour, Overlap(at("2025-03-10 09:00"), at("2025-03-10 13:00"), at("2025-03-10 11:00"), at("2025-03-10 17:00")))
	assert.Zero(t, Overlap(at("2025-03-10 09:00"), at("2025-03-10 11:00"), at("2025-03-10 11:00"), at("2025-03-10 17:00")))
	assert.Zero(t, Overlap(at("2025-03-10 09:00"), at("2025-03-10 10:00"), at("2025-03-10 12:00"), at("2025-03-10 17:00")))
}

func TestRosterWorkedAlone(t *testing.T) {
	me := Timesheet{StaffID: 1, OutletID: 5, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 09:00"), End: at("2025-03-10 17:30")}
	roster := Roster{
		me,
		{StaffID: 2, OutletID: 6, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 09:00"), End: at("2025-03-10 17:00")},
		{StaffID: 3, OutletID: 5, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 17:30"), End: at("2025-03-10 21:00")},
	}
	alone, err := roster.WorkedAlone(context.Background(), me)
	require.NoError(t, err)
	assert.True(t, alone)

	roster = append(roster, Timesheet{StaffID: 4, OutletID: 5, Date: at("2025-03-10 00:00"), Start: at("2025-03-10 12:00"), End: at("2025-03-10 16:00")})
	alone, err = roster.WorkedAlone(context.Background(), me)
	require.NoError(t, err)
	assert.False(t, alone)
}
