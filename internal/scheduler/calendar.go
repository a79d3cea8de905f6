package scheduler

import (
	"fmt"
	"time"
)

const (
	// SlotDuration is the fixed length of every reservation.
	SlotDuration = time.Hour
	// DateLayout formats the calendar day a reservation belongs to.
	DateLayout = "2006-01-02"
	// WeeklyDayLimit is the number of distinct days an owner may book per week.
	WeeklyDayLimit = 2
)

// Zone is the service time zone used for days and weeks.
var Zone = time.FixedZone("UTC+08:00", 8*60*60)

// DateOf returns the calendar day of t in the service zone.
func DateOf(t time.Time) string {
	return t.In(Zone).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string as midnight in the service zone.
func ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, value, Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return day, nil
}

// StartOfDay truncates t to midnight in the service zone.
func StartOfDay(t time.Time) time.Time {
	in := t.In(Zone)
	return time.Date(in.Year(), in.Month(), in.Day(), 0, 0, 0, 0, Zone)
}

// DayBounds returns the half-open window covering the day of t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns the Monday-anchored week containing t as [Monday 00:00, next Monday 00:00).
func WeekWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	// Monday == 1, Sunday == 0.
	offset := (int(start.Weekday()) + 6) % 7
	start = start.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// SlotEnd returns the end of the slot beginning at start.
func SlotEnd(start time.Time) time.Time {
	return start.Add(SlotDuration)
}

// IsSlotAligned reports whether t falls exactly on a slot boundary.
func IsSlotAligned(t time.Time) bool {
	in := t.In(Zone)
	return in.Minute() == 0 && in.Second() == 0 && in.Nanosecond() == 0
}

// HourOf returns the hour of day of t in the service zone.
func HourOf(t time.Time) int {
	return t.In(Zone).Hour()
}
