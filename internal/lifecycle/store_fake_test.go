package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/models"
)

// MockIdentity is a mock implementation of identity.Provider
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) CurrentUserID(ctx context.Context) (string, bool) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1)
}

// memStore keeps sessions in memory, enforces the same invariants as the sqlite store
// and records every call so tests can assert that no remote call happened.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*models.WorkSession
	pauses   []models.WorkPause
	calls    []string
	fail     map[string]error
	block    map[string]chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*models.WorkSession{},
		fail:     map[string]error{},
		block:    map[string]chan struct{}{},
	}
}

// enter records the call, waits if the method is blocked and returns any injected failure
func (s *memStore) enter(method string) error {
	s.mu.Lock()
	s.calls = append(s.calls, method)
	gate := s.block[method]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail[method]
}

func (s *memStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *memStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method] = err
}

func (s *memStore) blockOn(method string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.block[method] = gate
	return gate
}

func (s *memStore) put(session models.WorkSession, pauses ...models.WorkPause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := session
	cp.Pauses = nil
	s.sessions[session.ID] = &cp
	s.pauses = append(s.pauses, pauses...)
}

func (s *memStore) get(id string) models.WorkSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.sessions[id]
	cp.Pauses = s.pausesOf(id)
	return cp
}

func (s *memStore) openPauses(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pauses {
		if p.SessionID == sessionID && p.PauseEnd == nil {
			n++
		}
	}
	return n
}

func (s *memStore) pausesOf(sessionID string) []models.WorkPause {
	var out []models.WorkPause
	for _, p := range s.pauses {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memStore) OpenSession(ctx context.Context, ownerID string) (*models.WorkSession, error) {
	if err := s.enter("OpenSession"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.WorkSession
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID && sess.IsOpen() && (latest == nil || sess.StartTime.After(latest.StartTime)) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	cp.Pauses = s.pausesOf(cp.ID)
	return &cp, nil
}

func (s *memStore) InsertSession(ctx context.Context, session *models.WorkSession) error {
	if err := s.enter("InsertSession"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.OwnerID == session.OwnerID && sess.IsOpen() {
			return errors.Wrap(apperr.Constraint("an open session or pause already exists"), "insert session")
		}
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *memStore) UpdateSession(ctx context.Context, id string, update models.SessionUpdate) error {
	if err := s.enter("UpdateSession"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return errors.Wrap(apperr.ErrNotFound, "update session")
	}
	if update.EndTime != nil && !update.EndTime.After(sess.StartTime) {
		return apperr.Constraint("end_time must be after start_time")
	}
	if update.CloseOpenPauseAt != nil {
		for i := range s.pauses {
			if s.pauses[i].SessionID == id && s.pauses[i].PauseEnd == nil {
				end := *update.CloseOpenPauseAt
				s.pauses[i].PauseEnd = &end
			}
		}
	}
	if update.Status != nil {
		sess.Status = *update.Status
	}
	if update.EndTime != nil {
		end := *update.EndTime
		sess.EndTime = &end
	}
	if update.TotalDuration != nil {
		total := *update.TotalDuration
		sess.TotalDuration = &total
	}
	if update.Notes != nil {
		sess.Notes = *update.Notes
	}
	if update.RecoveredAt != nil {
		at := *update.RecoveredAt
		sess.RecoveredAt = &at
	}
	return nil
}

func (s *memStore) InsertPause(ctx context.Context, pause *models.WorkPause) error {
	if err := s.enter("InsertPause"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.pauses {
		if p.SessionID == pause.SessionID && p.PauseEnd == nil {
			return apperr.Constraint("an open session or pause already exists")
		}
	}
	s.pauses = append(s.pauses, *pause)
	return nil
}

func (s *memStore) ClosePause(ctx context.Context, sessionID string, end time.Time) error {
	if err := s.enter("ClosePause"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pauses {
		if s.pauses[i].SessionID == sessionID && s.pauses[i].PauseEnd == nil {
			s.pauses[i].PauseEnd = &end
			return nil
		}
	}
	return errors.Wrap(apperr.ErrNotFound, "close open pause")
}

func (s *memStore) ListPauses(ctx context.Context, sessionID string) ([]models.WorkPause, error) {
	if err := s.enter("ListPauses"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pausesOf(sessionID), nil
}

func (s *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if err := s.enter("Transaction"); err != nil {
		return err
	}

	s.mu.Lock()
	saved := make(map[string]models.WorkSession, len(s.sessions))
	for id, sess := range s.sessions {
		saved[id] = *sess
	}
	savedPauses := append([]models.WorkPause(nil), s.pauses...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.sessions = make(map[string]*models.WorkSession, len(saved))
		for id, sess := range saved {
			cp := sess
			s.sessions[id] = &cp
		}
		s.pauses = savedPauses
		s.mu.Unlock()
		return err
	}
	return nil
}
