package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/balkashynov/jornada/internal/apperr"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Resume a session that was left open",
	Long: `Reopen a session flagged as abandoned and keep counting from where it started.
An open pause on it is closed now.`,
	Args: cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		if a.ctrl.State().Abandoned == nil {
			return apperr.ErrNoAbandoned
		}
		if err := a.ctrl.RecoverSession(cmd.Context()); err != nil {
			return errors.Wrap(err, "recover session")
		}

		st := a.ctrl.State()
		fmt.Println("▶️  Session recovered")
		if st.Session != nil {
			fmt.Printf("Started at: %s\n", st.Session.StartTime.Local().Format("Jan 02 15:04"))
			fmt.Printf("Worked: %s\n", st.ElapsedTime)
		}
		return nil
	}),
}

var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard a session that was left open",
	Long:  `Mark a session flagged as abandoned as abandoned. It stays in history but never counts as worked time.`,
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ab := a.ctrl.State().Abandoned
		if ab == nil {
			return apperr.ErrNoAbandoned
		}
		if err := a.ctrl.DiscardSession(cmd.Context()); err != nil {
			return errors.Wrap(err, "discard session")
		}

		fmt.Printf("🗑️  Discarded session started %s\n", ab.StartTime.Local().Format("Jan 02 15:04"))
		return nil
	}),
}
