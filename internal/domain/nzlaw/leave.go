package nzlaw

import "time"

type LeaveEntitlements struct {
	AnnualLeaveWeeks         int `json:"annualLeaveWeeks"`
	AnnualLeaveQualifyMonths int `json:"annualLeaveQualifyMonths"`
	SickLeaveDays            int `json:"sickLeaveDays"`
	SickLeaveQualifyMonths   int `json:"sickLeaveQualifyMonths"`
	BereavementImmediateDays int `json:"bereavementImmediateDays"`
	BereavementOtherDays     int `json:"bereavementOtherDays"`
	FamilyViolenceDays       int `json:"familyViolenceDays"`
	AlternativeHolidayPerDay int `json:"alternativeHolidayPerDay"`
}

func Entitlements() LeaveEntitlements {
	return LeaveEntitlements{
		AnnualLeaveWeeks:         4,
		AnnualLeaveQualifyMonths: 12,
		SickLeaveDays:            10,
		SickLeaveQualifyMonths:   6,
		BereavementImmediateDays: 3,
		BereavementOtherDays:     1,
		FamilyViolenceDays:       10,
		AlternativeHolidayPerDay: 1,
	}
}

func SickLeaveEligible(started, asOf time.Time) bool {
	return !started.AddDate(0, Entitlements().SickLeaveQualifyMonths, 0).After(asOf)
}

func AnnualLeaveEligible(started, asOf time.Time) bool {
	return !started.AddDate(0, Entitlements().AnnualLeaveQualifyMonths, 0).After(asOf)
}

// IsEntitledToAlternativeHoliday is true when a public holiday falls on one of
// the staff member's normal working days.
func (c *Calendar) IsEntitledToAlternativeHoliday(d time.Time, workdays []time.Weekday) bool {
	if !c.IsPublicHoliday(d) {
		return false
	}
	for _, wd := range workdays {
		if d.Weekday() == wd {
			return true
		}
	}
	return false
}

func IsEntitledToAlternativeHoliday(d time.Time, workdays []time.Weekday) bool {
	return defaultCalendar.IsEntitledToAlternativeHoliday(d, workdays)
}
