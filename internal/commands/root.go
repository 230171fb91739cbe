package commands

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/config"
	"github.com/balkashynov/jornada/internal/db"
	"github.com/balkashynov/jornada/internal/i18n"
	"github.com/balkashynov/jornada/internal/identity"
	"github.com/balkashynov/jornada/internal/lifecycle"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "jornada",
	Short: "Track your working day from the terminal",
	Long: `jornada tracks one work session at a time: start, pause, resume and stop.
Worked time excludes pauses, and sessions left open too long are flagged
for you to recover or discard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app is everything a command needs, opened per invocation
type app struct {
	cfg      config.Config
	store    *db.Store
	ctrl     *lifecycle.Controller
	owner    string
	messages i18n.Messages
}

func (a *app) Close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}
}

// setupLogging configures the global zerolog logger on stderr
func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().Timestamp().Logger()
}

func deviceInfo() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%s host=%s jornada/%s", runtime.GOOS, runtime.GOARCH, host, version)
}

// openApp loads configuration, opens the database and builds an initialized controller
func openApp(cmd *cobra.Command, opts ...lifecycle.Option) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogLevel)

	store, err := db.Open(cfg.DBPath, cfg.MaxSession)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store, messages: i18n.New(cfg.Locale)}

	ident := identity.FromEnvironment(cfg.User)
	owner, ok := ident.CurrentUserID(cmd.Context())
	if !ok {
		a.Close()
		return nil, apperr.ErrUnauthenticated
	}
	a.owner = owner

	opts = append([]lifecycle.Option{
		lifecycle.WithStaleAfter(cfg.StaleAfter),
		lifecycle.WithTickInterval(cfg.TickInterval),
		lifecycle.WithDeviceInfo(deviceInfo()),
		lifecycle.WithMessages(a.messages),
	}, opts...)
	a.ctrl = lifecycle.New(store, ident, opts...)

	if err := a.ctrl.Initialize(cmd.Context()); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// withApp wraps a command function to open the app first
func withApp(fn func(*cobra.Command, []string, *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

// settled fails when an abandoned session still waits for recover or discard
func (a *app) settled() error {
	st := a.ctrl.State()
	if st.Abandoned == nil {
		return nil
	}
	return fmt.Errorf("%s\nUse 'jornada recover' or 'jornada discard': %w",
		a.messages.AbandonedPrompt(st.Abandoned.OpenFor), apperr.ErrAbandonedPending)
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jornada %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}
