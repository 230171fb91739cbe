// Package report aggregates completed sessions into timesheets.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/balkashynov/jornada/internal/accounting"
	"github.com/balkashynov/jornada/internal/models"
)

var dayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Day is the worked time of one calendar day
type Day struct {
	Date     time.Time
	Worked   time.Duration
	Sessions int
}

// Week is a Monday-to-Sunday timesheet
type Week struct {
	Start time.Time
	Days  [7]Day
	Total time.Duration
}

// WeekStart returns the start of the calendar week (Monday) for the given time
func WeekStart(t time.Time) time.Time {
	weekday := t.Weekday()
	daysFromMonday := int(weekday - time.Monday)
	if weekday == time.Sunday {
		daysFromMonday = 6 // Sunday is 6 days from Monday
	}

	weekStart := t.AddDate(0, 0, -daysFromMonday)
	return time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, weekStart.Location())
}

// BuildWeek sums the net duration of completed sessions by the day they started.
// Sessions that are open, abandoned or outside the week are ignored.
func BuildWeek(sessions []models.WorkSession, weekStart time.Time) (Week, error) {
	w := Week{Start: weekStart}
	for i := range w.Days {
		w.Days[i].Date = weekStart.AddDate(0, 0, i)
	}
	weekEnd := weekStart.AddDate(0, 0, 7)

	for _, s := range sessions {
		if s.Status != models.StatusCompleted || s.TotalDuration == nil {
			continue
		}
		start := s.StartTime.In(weekStart.Location())
		if start.Before(weekStart) || !start.Before(weekEnd) {
			continue
		}

		worked, err := accounting.ParseHMS(*s.TotalDuration)
		if err != nil {
			return Week{}, fmt.Errorf("session %s: %w", s.ID, err)
		}

		// Compare calendar dates, DST days are not 24h long
		idx := 6
		for idx > 0 && start.Before(w.Days[idx].Date) {
			idx--
		}
		w.Days[idx].Worked += worked
		w.Days[idx].Sessions++
		w.Total += worked
	}

	return w, nil
}

// Render writes the timesheet as a fixed-width table
func (w Week) Render(out io.Writer) {
	fmt.Fprintf(out, "%-10s  %-6s  %8s  %8s\n", "Day", "Date", "Sessions", "Worked")
	fmt.Fprintln(out, strings.Repeat("-", 38))

	for i, d := range w.Days {
		worked := "-"
		if d.Sessions > 0 {
			worked = accounting.Format(d.Worked)
		}
		fmt.Fprintf(out, "%-10s  %-6s  %8d  %8s\n", dayNames[i], d.Date.Format("Jan 2"), d.Sessions, worked)
	}

	fmt.Fprintln(out, strings.Repeat("-", 38))
	fmt.Fprintf(out, "%-10s  %-6s  %8s  %8s\n", "Total", "", "", accounting.Format(w.Total))

	fmt.Fprintf(out, "\nWeek of %s to %s\n",
		w.Start.Format("Jan 2"),
		w.Start.AddDate(0, 0, 6).Format("Jan 2, 2006"))
}
