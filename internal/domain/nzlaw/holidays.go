package nzlaw

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

const dateKey = "2006-01-02"

// matariki dates are set by the Te Kāhui o Matariki Public Holiday Act schedule.
var matariki = map[int]string{
	2024: "2024-06-28",
	2025: "2025-06-20",
	2026: "2026-07-10",
	2027: "2027-06-25",
	2028: "2028-07-14",
	2029: "2029-07-06",
	2030: "2030-06-21",
}

type Holiday struct {
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Observed bool      `json:"observed"`
}

// Calendar is an exact-date lookup table of public holidays.
type Calendar struct {
	days map[string]string
}

var defaultCalendar = NewCalendar(2024, 2025, 2026, 2027, 2028, 2029, 2030)

func DefaultCalendar() *Calendar {
	return defaultCalendar
}

func NewCalendar(years ...int) *Calendar {
	c := &Calendar{days: map[string]string{}}
	for _, year := range years {
		for _, h := range Holidays(year) {
			c.days[h.Date.Format(dateKey)] = h.Name
		}
	}
	return c
}

// LoadHolidayFile reads {"YYYY-MM-DD": "Name"} and layers it over the default table.
func LoadHolidayFile(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("holiday file %s: %w", path, err)
	}
	c := &Calendar{days: make(map[string]string, len(defaultCalendar.days)+len(entries))}
	for k, v := range defaultCalendar.days {
		c.days[k] = v
	}
	for k, v := range entries {
		if _, err := time.Parse(dateKey, k); err != nil {
			return nil, fmt.Errorf("holiday file %s: bad date %q", path, k)
		}
		c.days[k] = v
	}
	return c, nil
}

func (c *Calendar) IsPublicHoliday(date time.Time) bool {
	_, ok := c.days[date.Format(dateKey)]
	return ok
}

func (c *Calendar) HolidayName(date time.Time) string {
	return c.days[date.Format(dateKey)]
}

func (c *Calendar) Len() int {
	return len(c.days)
}

func IsPublicHoliday(date time.Time) bool {
	return defaultCalendar.IsPublicHoliday(date)
}

func HolidayName(date time.Time) string {
	return defaultCalendar.HolidayName(date)
}

// Holidays lists the national holidays plus Auckland Anniversary for a year.
// A weekend holiday is listed on its actual date and on its Mondayised date.
func Holidays(year int) []Holiday {
	var out []Holiday
	add := func(d time.Time, name string, observed bool) {
		out = append(out, Holiday{Date: d, Name: name, Observed: observed})
	}

	addPair := func(first time.Time, firstName, secondName string) {
		second := first.AddDate(0, 0, 1)
		add(first, firstName, false)
		add(second, secondName, false)
		switch first.Weekday() {
		case time.Saturday:
			add(first.AddDate(0, 0, 2), firstName, true)
			add(first.AddDate(0, 0, 3), secondName, true)
		case time.Sunday:
			add(first.AddDate(0, 0, 2), firstName, true)
		case time.Friday:
			add(second.AddDate(0, 0, 2), secondName, true)
		}
	}
	addSingle := func(d time.Time, name string) {
		add(d, name, false)
		if obs := Mondayise(d); !obs.Equal(d) {
			add(obs, name, true)
		}
	}

	addPair(date(year, time.January, 1), "New Year's Day", "Day after New Year's Day")
	add(AucklandAnniversary(year), "Auckland Anniversary Day", false)
	addSingle(date(year, time.February, 6), "Waitangi Day")
	easter := EasterSunday(year)
	add(easter.AddDate(0, 0, -2), "Good Friday", false)
	add(easter.AddDate(0, 0, 1), "Easter Monday", false)
	addSingle(date(year, time.April, 25), "ANZAC Day")
	add(nthWeekday(year, time.June, time.Monday, 1), "King's Birthday", false)
	if m, ok := matariki[year]; ok {
		d, _ := time.Parse(dateKey, m)
		add(d, "Matariki", false)
	}
	add(nthWeekday(year, time.October, time.Monday, 4), "Labour Day", false)
	addPair(date(year, time.December, 25), "Christmas Day", "Boxing Day")

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Mondayise moves a Saturday or Sunday holiday to the following Monday.
func Mondayise(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, 2)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// AucklandAnniversary is the Monday nearest 29 January.
func AucklandAnniversary(year int) time.Time {
	d := date(year, time.January, 29)
	offset := map[time.Weekday]int{
		time.Monday:    0,
		time.Tuesday:   -1,
		time.Wednesday: -2,
		time.Thursday:  -3,
		time.Friday:    3,
		time.Saturday:  2,
		time.Sunday:    1,
	}[d.Weekday()]
	return d.AddDate(0, 0, offset)
}

// EasterSunday uses the anonymous Gregorian computus.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := date(year, month, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
