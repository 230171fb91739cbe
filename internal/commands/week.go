package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/report"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the weekly timesheet",
	Long: `Show worked time per day for a calendar week (Monday to Sunday).
Only completed sessions count, discarded ones never do.

Examples:
  jornada week          # This week
  jornada week --ago 1  # Last week`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ago, _ := cmd.Flags().GetInt("ago")
		if ago < 0 {
			return fmt.Errorf("%w: --ago must not be negative", apperr.ErrValidation)
		}

		weekStart := report.WeekStart(time.Now()).AddDate(0, 0, -7*ago)
		weekEnd := weekStart.AddDate(0, 0, 7).Add(-time.Nanosecond)

		sessions, err := a.store.ListSessions(cmd.Context(), a.owner, weekStart, weekEnd)
		if err != nil {
			return err
		}

		week, err := report.BuildWeek(sessions, weekStart)
		if err != nil {
			return err
		}
		week.Render(os.Stdout)
		return nil
	}),
}

func init() {
	weekCmd.Flags().Int("ago", 0, "How many weeks back to show")
}
