// Package accounting computes net worked time for a session and its pauses.
//
// All arithmetic happens in whole seconds: every interval is floored to the
// second before it is summed, and results are clamped at zero so clock skew
// never produces negative time.
package accounting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/balkashynov/jornada/internal/models"
)

// seconds floors the interval from..to to whole seconds, never below zero
func seconds(from, to time.Time) int64 {
	s := int64(to.Sub(from) / time.Second)
	if s < 0 {
		return 0
	}
	return s
}

// PauseSeconds sums the pauses, treating a pause that is still open as ending at now
func PauseSeconds(pauses []models.WorkPause, now time.Time) int64 {
	var total int64
	for _, p := range pauses {
		end := now
		if p.PauseEnd != nil {
			end = *p.PauseEnd
		}
		total += seconds(p.PauseStart, end)
	}
	return total
}

// NetSeconds returns the worked seconds from session start to now, pauses excluded
func NetSeconds(session *models.WorkSession, pauses []models.WorkPause, now time.Time) int64 {
	if session == nil {
		return 0
	}
	net := seconds(session.StartTime, now) - PauseSeconds(pauses, now)
	if net < 0 {
		return 0
	}
	return net
}

// NetElapsed is NetSeconds as a Duration
func NetElapsed(session *models.WorkSession, pauses []models.WorkPause, now time.Time) time.Duration {
	return time.Duration(NetSeconds(session, pauses, now)) * time.Second
}

// Format renders d as zero-padded HH:MM:SS. Hours are not capped at 24.
func Format(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// ParseHMS reads back a duration written by Format
func ParseHMS(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q, want HH:MM:SS", s)
	}

	var values [3]int64
	for i, part := range parts {
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid duration %q, want HH:MM:SS", s)
		}
		values[i] = v
	}
	if values[1] > 59 || values[2] > 59 {
		return 0, fmt.Errorf("invalid duration %q, minutes and seconds must be below 60", s)
	}

	return time.Duration(values[0]*3600+values[1]*60+values[2]) * time.Second, nil
}

// Short formats a duration in a human-readable way
func Short(d time.Duration) string {
	if d.Hours() >= 1 {
		return fmt.Sprintf("%.1fh", d.Hours())
	} else if d.Minutes() >= 1 {
		return fmt.Sprintf("%.0fm", d.Minutes())
	} else {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
}
