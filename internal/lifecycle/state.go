package lifecycle

import (
	"time"

	"github.com/balkashynov/jornada/internal/models"
)

// Phase is where the controller's state machine stands
type Phase int

const (
	NoSession Phase = iota
	Active
	Paused
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case Paused:
		return "paused"
	default:
		return "none"
	}
}

// phaseOf maps a stored status onto the state machine
func phaseOf(s *models.WorkSession) Phase {
	if s == nil {
		return NoSession
	}
	switch s.Status {
	case models.StatusActive:
		return Active
	case models.StatusPaused:
		return Paused
	default:
		return NoSession
	}
}

// AbandonedSession is an open session found past the staleness threshold, waiting for recover or discard
type AbandonedSession struct {
	ID        string
	StartTime time.Time
	OpenFor   time.Duration
	Message   string
}

// State is the read model handed to presentation. Session.Pauses holds the pauses as the controller knows them.
type State struct {
	Session        *models.WorkSession
	Phase          Phase
	ElapsedSeconds int64
	ElapsedTime    string
	IsPaused       bool
	PauseCount     int
	Loading        bool
	Abandoned      *AbandonedSession
}

func cloneSession(s *models.WorkSession) *models.WorkSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Pauses = append([]models.WorkPause(nil), s.Pauses...)
	return &cp
}
