package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/models"
)

var openStatuses = []string{models.StatusActive, models.StatusPaused}

func orderPauses(db *gorm.DB) *gorm.DB {
	return db.Order("pause_start ASC")
}

// OpenSession returns the owner's most recent active or paused session with its pauses, or nil
func (s *Store) OpenSession(ctx context.Context, ownerID string) (*models.WorkSession, error) {
	var session models.WorkSession

	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status IN ?", ownerID, openStatuses).
		Preload("Pauses", orderPauses).
		Order("start_time DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // No open session is not an error
	}
	if err != nil {
		return nil, classify(err, "fetch open session")
	}

	return &session, nil
}

// GetSession returns a session by id with its pauses
func (s *Store) GetSession(ctx context.Context, id string) (*models.WorkSession, error) {
	var session models.WorkSession

	err := s.db.WithContext(ctx).Preload("Pauses", orderPauses).First(&session, "id = ?", id).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("get session %s", id))
	}

	return &session, nil
}

// InsertSession creates a session. The single-open-session index rejects a second open session per owner.
func (s *Store) InsertSession(ctx context.Context, session *models.WorkSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.EndTime != nil && !session.EndTime.After(session.StartTime) {
		return errors.Wrap(apperr.Constraint("end_time must be after start_time"), "insert session")
	}

	return classify(s.db.WithContext(ctx).Omit("Pauses").Create(session).Error, "insert session")
}

// UpdateSession applies update to the session with the given id
func (s *Store) UpdateSession(ctx context.Context, id string, update models.SessionUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.WorkSession
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			return classify(err, fmt.Sprintf("update session %s", id))
		}

		changes := map[string]any{}
		status := current.Status
		if update.Status != nil {
			status = *update.Status
			changes["status"] = status
		}
		endTime := current.EndTime
		if update.EndTime != nil {
			endTime = update.EndTime
			changes["end_time"] = *update.EndTime
		}
		if update.TotalDuration != nil {
			changes["total_duration"] = *update.TotalDuration
		}
		if update.Notes != nil {
			changes["notes"] = *update.Notes
		}
		if update.RecoveredAt != nil {
			changes["recovered_at"] = *update.RecoveredAt
		}

		if err := s.checkSessionWindow(current.StartTime, endTime, status); err != nil {
			return errors.Wrapf(err, "update session %s", id)
		}

		if update.CloseOpenPauseAt != nil {
			if err := closeOpenPause(tx, id, *update.CloseOpenPauseAt); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return errors.Wrapf(err, "update session %s", id)
			}
		}

		if len(changes) == 0 {
			return nil
		}
		res := tx.Model(&models.WorkSession{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return classify(res.Error, fmt.Sprintf("update session %s", id))
		}
		return nil
	})
}

// checkSessionWindow enforces end_time > start_time and the maximum duration of completed sessions
func (s *Store) checkSessionWindow(start time.Time, end *time.Time, status string) error {
	if end == nil {
		return nil
	}
	if !end.After(start) {
		return apperr.Constraint("end_time must be after start_time")
	}
	if status == models.StatusCompleted && s.maxSession > 0 && end.Sub(start) > s.maxSession {
		return apperr.Constraint(fmt.Sprintf("session exceeds the maximum duration of %s", s.maxSession))
	}
	return nil
}

// InsertPause opens a pause. The one-open-pause index rejects a second open pause per session.
func (s *Store) InsertPause(ctx context.Context, pause *models.WorkPause) error {
	if pause.ID == "" {
		pause.ID = uuid.NewString()
	}
	return classify(s.db.WithContext(ctx).Create(pause).Error, "insert pause")
}

// ClosePause sets pause_end on the session's open pause
func (s *Store) ClosePause(ctx context.Context, sessionID string, end time.Time) error {
	return closeOpenPause(s.db.WithContext(ctx), sessionID, end)
}

func closeOpenPause(db *gorm.DB, sessionID string, end time.Time) error {
	var pause models.WorkPause
	err := db.Where("session_id = ? AND pause_end IS NULL", sessionID).First(&pause).Error
	if err != nil {
		return classify(err, fmt.Sprintf("close open pause of session %s", sessionID))
	}
	if !end.After(pause.PauseStart) {
		return errors.Wrapf(apperr.Constraint("pause_end must be after pause_start"), "close pause %s", pause.ID)
	}

	res := db.Model(&models.WorkPause{}).
		Where("session_id = ? AND pause_end IS NULL", sessionID).
		Update("pause_end", end)
	if res.Error != nil {
		return classify(res.Error, fmt.Sprintf("close pause %s", pause.ID))
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(apperr.ErrNotFound, "close open pause of session %s", sessionID)
	}
	return nil
}

// ListPauses returns every pause of a session, oldest first
func (s *Store) ListPauses(ctx context.Context, sessionID string) ([]models.WorkPause, error) {
	var pauses []models.WorkPause

	err := orderPauses(s.db.WithContext(ctx)).Where("session_id = ?", sessionID).Find(&pauses).Error
	if err != nil {
		return nil, classify(err, fmt.Sprintf("list pauses of session %s", sessionID))
	}

	return pauses, nil
}

// ListSessions returns the owner's sessions started within [from, to], oldest first
func (s *Store) ListSessions(ctx context.Context, ownerID string, from, to time.Time) ([]models.WorkSession, error) {
	var sessions []models.WorkSession

	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND start_time >= ? AND start_time <= ?", ownerID, from, to).
		Preload("Pauses", orderPauses).
		Order("start_time ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, classify(err, "list sessions")
	}

	return sessions, nil
}

// DeleteSession removes a session of the owner together with its pauses
func (s *Store) DeleteSession(ctx context.Context, ownerID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.WorkSession
		if err := tx.First(&session, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
			return classify(err, fmt.Sprintf("delete session %s", id))
		}
		if err := tx.Where("session_id = ?", id).Delete(&models.WorkPause{}).Error; err != nil {
			return classify(err, fmt.Sprintf("delete pauses of session %s", id))
		}
		if err := tx.Delete(&models.WorkSession{}, "id = ?", id).Error; err != nil {
			return classify(err, fmt.Sprintf("delete session %s", id))
		}
		return nil
	})
}
