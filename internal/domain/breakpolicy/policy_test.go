package breakpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepMinutes(t *testing.T) {
	cases := []struct {
		name    string
		minutes int64
		want    int64
	}{
		{"4.5h", 270, 0},
		{"just under 5h", 299, 0},
		{"exactly 5h", 300, 30},
		{"8h", 480, 30},
		{"just under 12h", 719, 30},
		{"exactly 12h", 720, 60},
		{"14h", 840, 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StepMinutes(tc.minutes))
		})
	}
}

func TestDeductionFiveToTwelveIsThirty(t *testing.T) {
	p := New(nil, nil)
	for m := int64(300); m < 720; m += 15 {
		got, reason := p.Deduction(Shift{StaffID: 1, OutletID: 2, TotalMinutes: m}, false)
		assert.Equal(t, int64(30), got, "minutes=%d", m)
		assert.Equal(t, ReasonStep, reason)
	}
}

func TestDeductionExceptions(t *testing.T) {
	p := New([]int64{18}, []int64{483})
	shift := Shift{StaffID: 7, OutletID: 3, TotalMinutes: 480}

	got, reason := p.Deduction(Shift{StaffID: 7, OutletID: 18, TotalMinutes: 480}, false)
	assert.Zero(t, got)
	assert.Equal(t, ReasonPaidOutlet, reason)

	got, reason = p.Deduction(Shift{StaffID: 483, OutletID: 3, TotalMinutes: 480}, false)
	assert.Zero(t, got)
	assert.Equal(t, ReasonPaidStaff, reason)

	got, reason = p.Deduction(shift, true)
	assert.Zero(t, got)
	assert.Equal(t, ReasonAlone, reason)

	shift.BreakMinutes = 60
	got, reason = p.Deduction(shift, true)
	assert.Equal(t, int64(60), got)
	assert.Equal(t, ReasonExplicit, reason)
}
