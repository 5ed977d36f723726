// Package leadtime projects completion dates over a Monday to Friday calendar.
package leadtime

import (
	"math"
	"time"

	lineitemdomain "github.com/smallbiznis/costbook/internal/lineitem/domain"
)

// FallbackBusinessDays is used when no line carries a lead time.
const FallbackBusinessDays = 42

// MaxTotalLeadDays bounds the business days a single schedule may span.
const MaxTotalLeadDays = 36500

// MaxEndDate is the last date the store can hold.
var MaxEndDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// ProjectEndDate returns the day on which totalLeadDays business days have
// passed after start. The start day itself is never counted.
//
// Any seven consecutive days hold exactly five weekdays, so whole weeks are
// skipped at once and only the last one to five business days are walked.
// That keeps the result on a weekday even when start falls on a weekend.
func ProjectEndDate(start time.Time, totalLeadDays int) time.Time {
	current := Date(start)
	if totalLeadDays <= 0 {
		return current
	}
	weeks := (totalLeadDays - 1) / 5
	current = current.AddDate(0, 0, weeks*7)
	for counted := weeks * 5; counted < totalLeadDays; {
		current = current.AddDate(0, 0, 1)
		if IsBusinessDay(current) {
			counted++
		}
	}
	return current
}

// SumLeadDays adds lead_time_days over every line given; unset counts as zero.
// The sum saturates at math.MaxInt instead of wrapping.
func SumLeadDays(groups ...[]lineitemdomain.LineItem) int {
	total := 0
	for _, lines := range groups {
		for _, line := range lines {
			if line.LeadTimeDays == nil {
				continue
			}
			days := *line.LeadTimeDays
			if days > 0 && total > math.MaxInt-days {
				return math.MaxInt
			}
			total += days
		}
	}
	return total
}

// InRange reports whether a schedule of totalLeadDays from start ends on a
// date the store can hold.
func InRange(start time.Time, totalLeadDays int) bool {
	if totalLeadDays > MaxTotalLeadDays {
		return false
	}
	if Date(start).After(MaxEndDate) {
		return false
	}
	return !ProjectEndDate(start, totalLeadDays).After(MaxEndDate)
}

// TotalLeadDays is SumLeadDays over materials and extras, replaced by fallback
// when the sum is zero. A non-positive fallback means FallbackBusinessDays.
func TotalLeadDays(fallback int, groups ...[]lineitemdomain.LineItem) int {
	if fallback <= 0 {
		fallback = FallbackBusinessDays
	}
	total := SumLeadDays(groups...)
	if total <= 0 {
		return fallback
	}
	return total
}

// Schedule is the projected window of a budget.
type Schedule struct {
	StartDate *time.Time
	EndDate   *time.Time
	LeadDays  int
}

// Project returns the schedule for start. Without a start date no end date exists.
func Project(start *time.Time, fallback int, groups ...[]lineitemdomain.LineItem) Schedule {
	days := TotalLeadDays(fallback, groups...)
	if start == nil {
		return Schedule{LeadDays: days}
	}
	s := Date(*start)
	end := ProjectEndDate(s, days)
	return Schedule{StartDate: &s, EndDate: &end, LeadDays: days}
}
