package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateRegex     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	relativeRegex = regexp.MustCompile(`^(\d+)\s*(h|hour|hours|d|day|days|w|week|weeks)$`)
)

// ParseSince parses the start of a history window relative to now
// Supported formats:
// - dd/mm/yyyy (e.g., "15/12/2024"), start of that day
// - X hours (e.g., "24 hours", "6h")
// - X days (e.g., "3 days", "7d"), start of the day X days ago
// - X weeks (e.g., "2 weeks", "1w"), start of the day 7*X days ago
// - "today"
func ParseSince(input string, now time.Time) (time.Time, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if input == "today" {
		return startOfDay(now), nil
	}

	// Try dd/mm/yyyy format first
	if since, err := parseDateFormat(input, now.Location()); err == nil {
		if since.After(now) {
			return time.Time{}, fmt.Errorf("date %s is in the future", input)
		}
		return since, nil
	}

	// Try relative time formats
	if since, err := parseRelativeTime(input, now); err == nil {
		return since, nil
	}

	return time.Time{}, fmt.Errorf("invalid date format. Use: dd/mm/yyyy, X days, X hours, X weeks or today")
}

// parseDateFormat parses dd/mm/yyyy format
func parseDateFormat(input string, loc *time.Location) (time.Time, error) {
	matches := dateRegex.FindStringSubmatch(input)
	if len(matches) != 4 {
		return time.Time{}, fmt.Errorf("invalid date format")
	}

	day, _ := strconv.Atoi(matches[1])
	month, _ := strconv.Atoi(matches[2])
	year, _ := strconv.Atoi(matches[3])

	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day must be between 1 and 31")
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("month must be between 1 and 12")
	}

	since := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)

	// Check if date is valid (handles leap years, etc.)
	if since.Day() != day || since.Month() != time.Month(month) || since.Year() != year {
		return time.Time{}, fmt.Errorf("invalid date")
	}

	return since, nil
}

// parseRelativeTime parses relative formats like "3 days", "24 hours", "2w"
func parseRelativeTime(input string, now time.Time) (time.Time, error) {
	matches := relativeRegex.FindStringSubmatch(input)
	if len(matches) != 3 {
		return time.Time{}, fmt.Errorf("invalid relative time format")
	}

	amount, err := strconv.Atoi(matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid number")
	}

	switch matches[2] {
	case "h", "hour", "hours":
		if amount < 1 || amount > 8760 { // Max 1 year in hours
			return time.Time{}, fmt.Errorf("hours must be between 1 and 8760")
		}
		return now.Add(-time.Duration(amount) * time.Hour), nil

	case "d", "day", "days":
		if amount < 1 || amount > 365 {
			return time.Time{}, fmt.Errorf("days must be between 1 and 365")
		}
		return startOfDay(now).AddDate(0, 0, -amount), nil

	case "w", "week", "weeks":
		if amount < 1 || amount > 52 {
			return time.Time{}, fmt.Errorf("weeks must be between 1 and 52")
		}
		return startOfDay(now).AddDate(0, 0, -amount*7), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported time unit")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
