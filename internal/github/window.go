package github

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// TimeWindow is an inclusive range of calendar days.
type TimeWindow struct {
	Begin time.Time
	End   time.Time
}

// NewWindow returns the window from begin to end, both inclusive.
func NewWindow(begin, end time.Time) (TimeWindow, error) {
	b, e := day(begin), day(end)
	if e.Before(b) {
		return TimeWindow{}, fmt.Errorf("window: end %s before begin %s", e.Format(dateLayout), b.Format(dateLayout))
	}
	return TimeWindow{Begin: b, End: e}, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BeginDate formats the first day as YYYY-MM-DD.
func (w TimeWindow) BeginDate() string { return w.Begin.Format(dateLayout) }

// EndDate formats the last day as YYYY-MM-DD.
func (w TimeWindow) EndDate() string { return w.End.Format(dateLayout) }

// Days returns the number of days covered.
func (w TimeWindow) Days() int {
	return int(w.End.Sub(w.Begin).Hours()/24) + 1
}

func (w TimeWindow) String() string {
	return w.BeginDate() + ".." + w.EndDate()
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%400 == 0 || (year%4 == 0 && year%100 != 0)
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the length of month m in year.
func DaysInMonth(year int, m time.Month) int {
	if m == time.February && IsLeapYear(year) {
		return 29
	}
	return monthDays[m-1]
}

// MonthWindows returns the twelve calendar months of year in order.
func MonthWindows(year int) []TimeWindow {
	out := make([]TimeWindow, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, TimeWindow{
			Begin: time.Date(year, m, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, m, DaysInMonth(year, m), 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

// Years lists from..to inclusive.
func Years(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, y)
	}
	return out
}
