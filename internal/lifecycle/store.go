package lifecycle

import (
	"context"
	"time"

	"github.com/balkashynov/jornada/internal/models"
)

// Store is the persistence the controller commits to.
//
// Implementations must reject a second open session per owner and a session
// write that breaks their duration policy with apperr.ErrConstraintViolation.
type Store interface {
	// OpenSession returns the owner's most recent active or paused session, pauses included, or nil.
	OpenSession(ctx context.Context, ownerID string) (*models.WorkSession, error)
	InsertSession(ctx context.Context, session *models.WorkSession) error
	UpdateSession(ctx context.Context, id string, update models.SessionUpdate) error
	InsertPause(ctx context.Context, pause *models.WorkPause) error
	// ClosePause ends the session's open pause; apperr.ErrNotFound when there is none.
	ClosePause(ctx context.Context, sessionID string, end time.Time) error
	ListPauses(ctx context.Context, sessionID string) ([]models.WorkPause, error)
	// Transaction runs fn so that either every write it makes persists or none does.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
