package retention

import (
	"strings"
	"time"
)

// Policy holds the tier thresholds and prefixes. Thresholds are inclusive on
// the lower side: a total of exactly BaseThreshold years lands in the base
// tier.
type Policy struct {
	BaseYears         int
	BaseThreshold     int
	ExtendedThreshold int
	BasePrefix        string
	ExtendedPrefix    string
	MaximumPrefix     string
}

// Prefix maps an agreement end date to a retention-tier prefix.
//
// The span is anchored to the first day of the month after now, not to the
// agreement's own start: retention is a function of processing time, so
// identical agreements processed in different months may land in different
// tiers. That is deliberate.
func (p Policy) Prefix(now, endDate time.Time) string {
	anchor := startOfNextMonth(now)
	total := wholeYears(anchor, endDate) + p.BaseYears

	switch {
	case total <= p.BaseThreshold:
		return p.BasePrefix
	case total <= p.ExtendedThreshold:
		return p.ExtendedPrefix
	default:
		return p.MaximumPrefix
	}
}

// Key composes the storage key from its parts, joined by "/" with empty
// components omitted.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "/")
}

func startOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// wholeYears counts full elapsed calendar years from start to end. Partial
// years never round up; an end before start yields a negative count.
func wholeYears(start, end time.Time) int {
	start = start.UTC()
	end = end.UTC()
	if end.Before(start) {
		return -wholeYears(end, start)
	}

	years := end.Year() - start.Year()
	anniversary := start.AddDate(years, 0, 0)
	if end.Before(anniversary) {
		years--
	}
	return years
}
