package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/jornada/internal/accounting"
	"github.com/balkashynov/jornada/internal/i18n"
	"github.com/balkashynov/jornada/internal/lifecycle"
)

// Notifier turns controller state changes into wake-ups for the timer.
// Notify never blocks; changes that arrive while one is pending are coalesced.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier returns a Notifier ready to pass to lifecycle.WithOnChange
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify implements the lifecycle.WithOnChange callback
func (n *Notifier) Notify(lifecycle.State) {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Changes is the channel the timer listens on
func (n *Notifier) Changes() <-chan struct{} {
	return n.ch
}

// RunTimerTUI runs the live timer until the session is stopped or the user leaves
func RunTimerTUI(ctx context.Context, ctrl Controller, changes <-chan struct{}, messages i18n.Messages) error {
	model := NewTimerModel(ctx, ctrl, changes, messages)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	timerModel := finalModel.(TimerModel)
	if ended := timerModel.ended; ended != nil {
		total := "00:00:00"
		if ended.TotalDuration != nil {
			total = *ended.TotalDuration
		}
		worked, _ := accounting.ParseHMS(total)
		fmt.Printf("⏹️  Session ended at %s\n", ended.EndTime.Local().Format("15:04:05"))
		fmt.Printf("📊 Worked: %s (%s), %d pause(s)\n", total, accounting.Short(worked), len(ended.Pauses))
		return nil
	}

	st := ctrl.State()
	switch st.Phase {
	case lifecycle.Active, lifecycle.Paused:
		fmt.Printf("\n💡 Session is still %s: %s worked so far\n", st.Phase, st.ElapsedTime)
		fmt.Printf("   Use 'jornada status' to check it or 'jornada stop' to end it.\n")
	}
	if st.Abandoned != nil {
		fmt.Printf("\n⚠️  %s\n", messages.AbandonedPrompt(st.Abandoned.OpenFor))
		fmt.Printf("   Use 'jornada recover' or 'jornada discard'.\n")
	}

	return nil
}
