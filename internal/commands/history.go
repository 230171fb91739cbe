package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/jornada/internal/accounting"
	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/models"
	"github.com/balkashynov/jornada/internal/parser"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions",
	Long: `List your sessions started since a given date.

Examples:
  jornada history                   # Last 7 days
  jornada history --since today
  jornada history --since 2w
  jornada history --since 01/05/2024
  jornada history --json`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		sinceStr, _ := cmd.Flags().GetString("since")
		asJSON, _ := cmd.Flags().GetBool("json")

		now := time.Now()
		since, err := parser.ParseSince(sinceStr, now)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}

		sessions, err := a.store.ListSessions(cmd.Context(), a.owner, since, now)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sessions)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions found")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-5s  %-5s  %-9s  %8s  %6s\n", "ID", "Date", "Start", "End", "Status", "Worked", "Pauses")
		fmt.Println(strings.Repeat("-", 93))
		for i := range sessions {
			s := &sessions[i]
			end := "-"
			if s.EndTime != nil {
				end = s.EndTime.Local().Format("15:04")
			}
			fmt.Printf("%-36s  %-12s  %-5s  %-5s  %-9s  %8s  %6d\n",
				s.ID,
				s.StartTime.Local().Format("Mon Jan 02"),
				s.StartTime.Local().Format("15:04"),
				end,
				s.Status,
				worked(s, now),
				len(s.Pauses))
		}
		return nil
	}),
}

// worked is the stored total for closed sessions and the live count for open ones
func worked(s *models.WorkSession, now time.Time) string {
	if s.TotalDuration != nil {
		return *s.TotalDuration
	}
	if s.Status == models.StatusAbandoned {
		return "-"
	}
	return accounting.Format(accounting.NetElapsed(s, s.Pauses, now))
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a closed session and its pauses",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id := strings.TrimSpace(args[0])

		session, err := a.store.GetSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		if session.OwnerID != a.owner {
			return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
		}
		if session.IsOpen() {
			return fmt.Errorf("%w: session %s is still open, stop it first", apperr.ErrValidation, id)
		}

		if err := a.store.DeleteSession(cmd.Context(), a.owner, id); err != nil {
			return err
		}
		fmt.Printf("🗑️  Deleted session %s (%s)\n", id, session.StartTime.Local().Format("Jan 02 15:04"))
		return nil
	}),
}

func init() {
	historyCmd.Flags().String("since", "7d", "Show sessions since (dd/mm/yyyy, today, 3d, 2w, 12h)")
	historyCmd.Flags().Bool("json", false, "JSON output")
}
