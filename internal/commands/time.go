package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/jornada/internal/accounting"
	"github.com/balkashynov/jornada/internal/lifecycle"
	"github.com/balkashynov/jornada/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a work session",
	Long: `Start a work session. Opens the interactive timer by default, use --no-ui for a simple start.

Examples:
  jornada start                       # Start and open the timer
  jornada start --note "sprint 12"    # Start with a note
  jornada start --no-ui               # Start without UI`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("note")
		noUI, _ := cmd.Flags().GetBool("no-ui")

		var opts []lifecycle.Option
		notifier := tui.NewNotifier()
		if !noUI {
			opts = append(opts, lifecycle.WithOnChange(notifier.Notify))
		}

		a, err := openApp(cmd, opts...)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.settled(); err != nil {
			return err
		}
		if err := a.ctrl.Start(cmd.Context(), note); err != nil {
			return err
		}

		if noUI {
			st := a.ctrl.State()
			fmt.Printf("⏱️  Session started at %s\n", st.Session.StartTime.Local().Format("15:04:05"))
			if st.Session.Notes != "" {
				fmt.Printf("Note: %s\n", st.Session.Notes)
			}
			return nil
		}
		return tui.RunTimerTUI(cmd.Context(), a.ctrl, notifier.Changes(), a.messages)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.settled(); err != nil {
			return err
		}

		switch a.ctrl.State().Phase {
		case lifecycle.NoSession:
			fmt.Println("No active session")
			return nil
		case lifecycle.Paused:
			fmt.Println("Session is already paused")
			return nil
		}

		if err := a.ctrl.Pause(cmd.Context()); err != nil {
			return err
		}
		st := a.ctrl.State()
		if at, ok := pausedAt(st); ok {
			fmt.Printf("⏸️  Paused at %s\n", at.Local().Format("15:04:05"))
		}
		fmt.Printf("Worked so far: %s\n", st.ElapsedTime)
		return nil
	}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.settled(); err != nil {
			return err
		}

		switch a.ctrl.State().Phase {
		case lifecycle.NoSession:
			fmt.Println("No active session")
			return nil
		case lifecycle.Active:
			fmt.Println("Session is not paused")
			return nil
		}

		if err := a.ctrl.Resume(cmd.Context()); err != nil {
			return err
		}
		st := a.ctrl.State()
		if at, ok := resumedAt(st); ok {
			fmt.Printf("▶️  Resumed at %s\n", at.Local().Format("15:04:05"))
		}
		fmt.Printf("Worked so far: %s\n", st.ElapsedTime)
		return nil
	}),
}

// pausedAt is the start of the open pause as recorded by the controller
func pausedAt(st lifecycle.State) (time.Time, bool) {
	if st.Session == nil {
		return time.Time{}, false
	}
	p := st.Session.OpenPause()
	if p == nil {
		return time.Time{}, false
	}
	return p.PauseStart, true
}

// resumedAt is the end of the latest closed pause
func resumedAt(st lifecycle.State) (time.Time, bool) {
	if st.Session == nil {
		return time.Time{}, false
	}
	p := st.Session.LastPause()
	if p == nil || p.PauseEnd == nil {
		return time.Time{}, false
	}
	return *p.PauseEnd, true
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "End the current session",
	Long: `End the current session, active or paused. An open pause is closed at the same instant.

Examples:
  jornada stop
  jornada stop --note "released v2"`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.settled(); err != nil {
			return err
		}

		var notes *string
		if cmd.Flags().Changed("note") {
			note, _ := cmd.Flags().GetString("note")
			notes = &note
		}

		ended, err := a.ctrl.End(cmd.Context(), notes)
		if err != nil {
			return err
		}

		total := "00:00:00"
		if ended.TotalDuration != nil {
			total = *ended.TotalDuration
		}
		worked, _ := accounting.ParseHMS(total)
		fmt.Printf("⏹️  Session ended at %s\n", ended.EndTime.Local().Format("15:04:05"))
		fmt.Printf("Worked: %s (%s), %d pause(s)\n", total, accounting.Short(worked), len(ended.Pauses))
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		st := a.ctrl.State()

		if ab := st.Abandoned; ab != nil {
			fmt.Printf("⚠️  %s\n", a.messages.AbandonedPrompt(ab.OpenFor))
			fmt.Printf("Started at: %s\n", ab.StartTime.Local().Format("Jan 02 15:04"))
			fmt.Println("Use 'jornada recover' or 'jornada discard'")
			return nil
		}

		if st.Session == nil {
			fmt.Println("No active session")
			return nil
		}

		icon := "⏱️ "
		if st.IsPaused {
			icon = "⏸️ "
		}
		fmt.Printf("%s Session %s\n", icon, st.Phase)
		fmt.Printf("Started at: %s\n", st.Session.StartTime.Local().Format("15:04:05"))
		fmt.Printf("Worked: %s\n", st.ElapsedTime)
		fmt.Printf("Pauses: %d\n", st.PauseCount)
		if st.Session.Notes != "" {
			fmt.Printf("Note: %s\n", st.Session.Notes)
		}
		return nil
	}),
}

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Open the interactive timer",
	Long:  `Open the live timer for the current session. Also lets you start a session or settle an abandoned one.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		notifier := tui.NewNotifier()
		a, err := openApp(cmd, lifecycle.WithOnChange(notifier.Notify))
		if err != nil {
			return err
		}
		defer a.Close()

		return tui.RunTimerTUI(cmd.Context(), a.ctrl, notifier.Changes(), a.messages)
	},
}

func init() {
	startCmd.Flags().String("note", "", "Note for the session")
	startCmd.Flags().Bool("no-ui", false, "Start without interactive UI")
	stopCmd.Flags().String("note", "", "Replace the session note")
}
