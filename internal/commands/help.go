package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show comprehensive help for jornada",
	Long:  `Display detailed help for all jornada commands and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		showCustomHelp()
	},
}

func showCustomHelp() {
	fmt.Print(`
     ██╗ ██████╗ ██████╗ ███╗   ██╗ █████╗ ██████╗  █████╗
     ██║██╔═══██╗██╔══██╗████╗  ██║██╔══██╗██╔══██╗██╔══██╗
     ██║██║   ██║██████╔╝██╔██╗ ██║███████║██║  ██║███████║
██   ██║██║   ██║██╔══██╗██║╚██╗██║██╔══██║██║  ██║██╔══██║
╚█████╔╝╚██████╔╝██║  ██║██║ ╚████║██║  ██║██████╔╝██║  ██║
 ╚════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚═════╝ ╚═╝  ╚═╝

jornada - work session tracker

COMMANDS:

  start                   Start a work session
    --note                Note for the session
    --no-ui               Skip the interactive timer

  pause                   Pause the active session
  resume                  Resume the paused session

  stop                    End the session, active or paused
    --note                Replace the session note

  status                  Show the current session and worked time

  timer                   Open the interactive timer
    Keys:
      enter         Start a session
      space/p       Pause/resume
      s             Stop (asks for an optional note)
      r             Recover an abandoned session
      d             Discard an abandoned session
      ctrl+l        Refresh from the database
      esc/q         Quit (the session keeps running)

  recover                 Keep counting a session left open too long
  discard                 Mark a session left open too long as abandoned

  history                 List past sessions
    --since               dd/mm/yyyy, today, 12h, 3d, 2w (default 7d)
    --json                JSON output

  delete <id>             Delete a closed session and its pauses

  week                    Weekly timesheet (Monday to Sunday)
    --ago                 Weeks back (default 0)

  version                 Print version information
  help                    Show this help

ENVIRONMENT:

  JORNADA_DB_PATH         Database file (default ~/.jornada/jornada.db)
  JORNADA_USER            Owner of the sessions (default: OS user)
  JORNADA_STALE_AFTER     Open time after which a session is abandoned (default 24h)
  JORNADA_MAX_SESSION     Longest session that can be completed (default 48h)
  JORNADA_TICK_INTERVAL   Timer refresh interval (default 1s)
  JORNADA_LOCALE          Language for prompts: es, en (default es)
  JORNADA_LOG_LEVEL       debug, info, warn, error (default warn)

`)
}
