package timespec

import (
	"fmt"
	"time"
)

// Parse parses a due-date specification into a time.Time.
// Supports two formats:
//   - Go duration format: "24h", "72h", "168h30m"
//   - RFC3339 timestamps: "2026-04-30T23:59:00Z"
//
// Duration specifications are relative to the current time (added to now).
// For example, "72h" means "three days from now", which is the useful
// direction for deadline bounds.
func Parse(spec string) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	// Try parsing as RFC3339 first
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t, nil
	}

	// Try parsing as Go duration
	if d, err := time.ParseDuration(spec); err == nil {
		return time.Now().Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '72h' or RFC3339 like '2026-04-30T23:59:00Z')", spec)
}

// ParseRange parses both --due-after and --due-before flags into a due-date
// range. Zero values indicate "no bound" for that end of the range.
//
// Validates that the lower bound precedes the upper bound if both are given.
func ParseRange(after, before string) (time.Time, time.Time, error) {
	var debut, fin time.Time
	var err error

	if after != "" {
		debut, err = Parse(after)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --due-after: %w", err)
		}
	}

	if before != "" {
		fin, err = Parse(before)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --due-before: %w", err)
		}
	}

	if !debut.IsZero() && !fin.IsZero() && !debut.Before(fin) {
		return time.Time{}, time.Time{}, fmt.Errorf("--due-after must be before --due-before")
	}

	return debut, fin, nil
}
