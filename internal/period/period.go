// Package period assigns reporting buckets to new records.
package period

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Policy selects how records are bucketed for reporting.
type Policy string

const (
	// PolicyDate buckets by calendar day, formatted DD-MM-YYYY.
	PolicyDate Policy = "date"
	// PolicyISOWeek buckets by ISO-8601 week, formatted YYYY-Wnn with the ISO week-year.
	PolicyISOWeek Policy = "iso-week"
)

var (
	dateKeyRe = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	weekKeyRe = regexp.MustCompile(`^\d{4}-W\d{2}$`)
)

// ParsePolicy resolves a configured policy name.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyDate:
		return PolicyDate, nil
	case PolicyISOWeek, "isoweek", "week":
		return PolicyISOWeek, nil
	default:
		return "", fmt.Errorf("unknown period policy %q (want %q or %q)", raw, PolicyDate, PolicyISOWeek)
	}
}

// Key returns the bucket label for now under policy p. Unknown policies fall back to date keys.
func Key(now time.Time, p Policy) string {
	if p == PolicyISOWeek {
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return now.Format("02-01-2006")
}

// Matches reports whether key has the shape produced by p.
func (p Policy) Matches(key string) bool {
	if p == PolicyISOWeek {
		return weekKeyRe.MatchString(key)
	}
	return dateKeyRe.MatchString(key)
}

func (p Policy) String() string { return string(p) }
