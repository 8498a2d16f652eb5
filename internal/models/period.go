package models

import (
	"fmt"
	"strings"
	"time"
)

// Period is a rolling window ending now.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// Window returns the length of the rolling window.
func (p Period) Window() time.Duration {
	switch p {
	case PeriodDaily:
		return 24 * time.Hour
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	case PeriodYearly:
		return 365 * 24 * time.Hour
	}
	return 0
}

// Contains reports whether ts falls in the window ending at now.
func (p Period) Contains(ts, now time.Time) bool {
	w := p.Window()
	if w == 0 || ts.After(now) {
		return false
	}
	return now.Sub(ts) <= w
}

// ParsePeriod accepts the period names case-insensitively.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p.Window() == 0 {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}
