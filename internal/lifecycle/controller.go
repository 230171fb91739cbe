// Package lifecycle runs the start/pause/resume/end state machine of a worker's session.
//
// The controller keeps a local copy of the owner's open session, applies
// pause and resume optimistically and rolls them back when the store refuses
// the write. Start and end only change local state after the store confirms.
// Operations never interleave: while one is in flight, pause and resume are
// no-ops and every other operation fails with apperr.ErrBusy.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/balkashynov/jornada/internal/accounting"
	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/clock"
	"github.com/balkashynov/jornada/internal/i18n"
	"github.com/balkashynov/jornada/internal/identity"
	"github.com/balkashynov/jornada/internal/models"
)

var errNotTicking = errors.New("no active session to tick")

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithStaleAfter sets how long a session may stay open before it is flagged as abandoned
func WithStaleAfter(d time.Duration) Option {
	return func(ctrl *Controller) { ctrl.staleAfter = d }
}

// WithTickInterval sets how often the live elapsed time is recomputed
func WithTickInterval(d time.Duration) Option {
	return func(ctrl *Controller) { ctrl.tickInterval = d }
}

// WithDeviceInfo sets the metadata stored on sessions started by this controller
func WithDeviceInfo(info string) Option {
	return func(ctrl *Controller) { ctrl.deviceInfo = info }
}

// WithMessages sets the language of user-facing messages
func WithMessages(m i18n.Messages) Option {
	return func(ctrl *Controller) { ctrl.messages = m }
}

// WithOnChange registers fn to receive the read model after every change.
// fn runs on the goroutine that made the change and must not call back into the controller synchronously.
func WithOnChange(fn func(State)) Option {
	return func(ctrl *Controller) { ctrl.onChange = fn }
}

// Controller owns the current session state of one owner
type Controller struct {
	store        Store
	identity     identity.Provider
	clock        clock.Clock
	staleAfter   time.Duration
	tickInterval time.Duration
	deviceInfo   string
	messages     i18n.Messages
	onChange     func(State)

	detector *Detector
	ticker   *Ticker

	mu          sync.Mutex
	phase       Phase
	session     *models.WorkSession
	pauses      []models.WorkPause
	elapsed     int64
	abandoned   *AbandonedSession
	inFlight    bool
	gen         uint64
	initialized bool
	closed      bool
}

// New returns a controller in NoSession. Call Initialize to load the owner's state.
func New(store Store, id identity.Provider, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		identity:     id,
		clock:        clock.System,
		staleAfter:   24 * time.Hour,
		tickInterval: time.Second,
		messages:     i18n.New("es"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.detector = NewDetector(store, c.clock, c.staleAfter, c.messages)
	c.ticker = NewTicker(c.tickInterval, c.tick)
	return c
}

// transition is an optimistic phase change: applied locally as an intent, then committed or rolled back
type transition struct {
	from, to Phase
	gen      uint64
}

// State returns a snapshot of the read model
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	st := State{
		Session:        cloneSession(c.session),
		Phase:          c.phase,
		ElapsedSeconds: c.elapsed,
		ElapsedTime:    accounting.Format(time.Duration(c.elapsed) * time.Second),
		IsPaused:       c.phase == Paused,
		PauseCount:     len(c.pauses),
		Loading:        c.inFlight,
	}
	if st.Session != nil {
		st.Session.Pauses = append([]models.WorkPause(nil), c.pauses...)
	}
	if c.abandoned != nil {
		ab := *c.abandoned
		st.Abandoned = &ab
	}
	return st
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.State())
}

// Close stops the ticker and discards the result of any operation still in flight
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	c.mu.Unlock()
	c.ticker.Stop()
}

func (c *Controller) owner(ctx context.Context) (string, error) {
	if c.identity == nil {
		return "", apperr.ErrUnauthenticated
	}
	id, ok := c.identity.CurrentUserID(ctx)
	if !ok {
		return "", apperr.ErrUnauthenticated
	}
	return id, nil
}

// claimLocked marks an operation in flight and returns the generation it runs against
func (c *Controller) claimLocked() uint64 {
	c.inFlight = true
	return c.gen
}

// finish clears the in-flight flag; every operation defers it
func (c *Controller) finish() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) startTicker() {
	c.mu.Lock()
	run := !c.closed && c.phase == Active
	c.mu.Unlock()
	if run {
		c.ticker.Start()
	}
}

// tick recomputes the live elapsed time from the session and its pauses
func (c *Controller) tick() error {
	c.mu.Lock()
	if c.phase != Active || c.session == nil {
		c.mu.Unlock()
		return errNotTicking
	}
	c.elapsed = accounting.NetSeconds(c.session, c.pauses, c.clock.Now())
	c.mu.Unlock()

	c.notify()
	return nil
}

// applyLocked replaces local state with session as read from the store
func (c *Controller) applyLocked(session *models.WorkSession) {
	c.phase = phaseOf(session)
	if c.phase == NoSession {
		c.session, c.pauses, c.elapsed = nil, nil, 0
		return
	}
	c.session = cloneSession(session)
	c.pauses = append([]models.WorkPause(nil), session.Pauses...)
	c.elapsed = accounting.NetSeconds(c.session, c.pauses, c.clock.Now())
}

// Initialize runs abandoned-session detection and loads the owner's open session.
// It runs once per controller; later calls return nil without touching the store.
func (c *Controller) Initialize(ctx context.Context) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.initialized || c.inFlight {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	gen := c.claimLocked()
	c.mu.Unlock()
	defer c.finish()

	found, err := c.detector.Detect(ctx, ownerID)
	if err != nil {
		c.mu.Lock()
		c.initialized = false
		c.mu.Unlock()
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to detect open session")
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	if found.Abandoned != nil {
		c.abandoned = found.Abandoned
		c.applyLocked(nil)
		c.mu.Unlock()
		log.Warn().Str("session_id", found.Abandoned.ID).Dur("open_for", found.Abandoned.OpenFor).Msg("abandoned session pending")
		return nil
	}
	c.applyLocked(found.Session)
	c.mu.Unlock()

	c.startTicker()
	return nil
}

// Reload replaces local state with the store's view of the owner's open session,
// picking up changes made by other clients. It refuses while an abandoned session is pending.
func (c *Controller) Reload(ctx context.Context) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.abandoned != nil:
		c.mu.Unlock()
		return apperr.ErrAbandonedPending
	case c.inFlight:
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	gen := c.claimLocked()
	c.mu.Unlock()
	defer c.finish()

	c.ticker.Stop()
	if err := c.load(ctx, ownerID, gen); err != nil {
		c.startTicker()
		return err
	}
	return nil
}

// load reads the open session and applies it if no newer state has been applied since gen
func (c *Controller) load(ctx context.Context, ownerID string, gen uint64) error {
	open, err := c.store.OpenSession(ctx, ownerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.applyLocked(open)
	c.mu.Unlock()

	c.startTicker()
	return nil
}

// Start opens a new active session for the owner
func (c *Controller) Start(ctx context.Context, notes string) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.abandoned != nil:
		c.mu.Unlock()
		return apperr.ErrAbandonedPending
	case c.phase != NoSession:
		c.mu.Unlock()
		return apperr.ErrAlreadyActive
	case c.inFlight:
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	gen := c.claimLocked()
	c.mu.Unlock()
	defer c.finish()

	session := &models.WorkSession{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		StartTime:  c.clock.Now(),
		Status:     models.StatusActive,
		Notes:      notes,
		DeviceInfo: c.deviceInfo,
	}
	if err := c.store.InsertSession(ctx, session); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("failed to start session")
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.phase = Active
	c.session = session
	c.pauses = nil
	c.elapsed = 0
	c.mu.Unlock()

	log.Debug().Str("session_id", session.ID).Msg("session started")
	c.startTicker()
	return nil
}

// Pause opens a pause on the active session. It is a no-op unless the session is active and idle.
func (c *Controller) Pause(ctx context.Context) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.phase != Active || c.inFlight {
		c.mu.Unlock()
		return nil
	}
	gen := c.claimLocked()
	now := c.clock.Now()
	c.elapsed = accounting.NetSeconds(c.session, c.pauses, now)
	t := c.intendLocked(Paused, gen)
	sessionID := c.session.ID
	c.mu.Unlock()
	defer c.finish()

	c.ticker.Stop()
	c.notify()

	pause := models.WorkPause{ID: uuid.NewString(), SessionID: sessionID, PauseStart: now}
	status := models.StatusPaused
	err = c.store.Transaction(ctx, func(tx Store) error {
		if err := tx.InsertPause(ctx, &pause); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, sessionID, models.SessionUpdate{Status: &status})
	})
	if err != nil {
		c.rollback(t)
		log.Warn().Err(err).Str("session_id", sessionID).Msg("pause rolled back")
		return err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.pauses = append(c.pauses, pause)
		c.session.Status = status
	}
	c.mu.Unlock()

	c.commit(ctx, ownerID, t)
	log.Debug().Str("session_id", sessionID).Msg("session paused")
	return nil
}

// Resume closes the open pause. It is a no-op unless the session is paused and idle.
func (c *Controller) Resume(ctx context.Context) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.phase != Paused || c.inFlight {
		c.mu.Unlock()
		return nil
	}
	gen := c.claimLocked()
	t := c.intendLocked(Active, gen)
	sessionID := c.session.ID
	c.mu.Unlock()
	defer c.finish()

	c.notify()

	now := c.clock.Now()
	status := models.StatusActive
	err = c.store.Transaction(ctx, func(tx Store) error {
		if err := tx.ClosePause(ctx, sessionID, now); err != nil {
			return err
		}
		return tx.UpdateSession(ctx, sessionID, models.SessionUpdate{Status: &status})
	})
	if err != nil {
		c.rollback(t)
		log.Warn().Err(err).Str("session_id", sessionID).Msg("resume rolled back")
		return err
	}

	c.mu.Lock()
	if c.gen == gen {
		for i := range c.pauses {
			if c.pauses[i].PauseEnd == nil {
				c.pauses[i].PauseEnd = &now
			}
		}
		c.session.Status = status
		c.elapsed = accounting.NetSeconds(c.session, c.pauses, now)
	}
	c.mu.Unlock()

	c.commit(ctx, ownerID, t)
	log.Debug().Str("session_id", sessionID).Msg("session resumed")
	return nil
}

// intendLocked applies the optimistic phase change
func (c *Controller) intendLocked(to Phase, gen uint64) transition {
	t := transition{from: c.phase, to: to, gen: gen}
	c.phase = to
	return t
}

// rollback restores the phase t replaced, unless a newer state was applied meanwhile
func (c *Controller) rollback(t transition) {
	c.mu.Lock()
	if c.gen != t.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.phase = t.from
	if t.from == Active {
		c.elapsed = accounting.NetSeconds(c.session, c.pauses, c.clock.Now())
	}
	c.mu.Unlock()

	c.startTicker()
}

// commit makes t final and refreshes local state from the store. A failed refresh
// keeps the locally known result, which already matches what was written.
func (c *Controller) commit(ctx context.Context, ownerID string, t transition) {
	c.mu.Lock()
	if c.gen != t.gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if err := c.load(ctx, ownerID, gen); err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("failed to reload session, keeping local state")
		c.startTicker()
	}
}

// End completes the open session and returns it as stored.
// On failure the local state is left as it was so the caller can retry.
func (c *Controller) End(ctx context.Context, notes *string) (*models.WorkSession, error) {
	if _, err := c.owner(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	switch {
	case c.abandoned != nil:
		c.mu.Unlock()
		return nil, apperr.ErrAbandonedPending
	case c.phase == NoSession:
		c.mu.Unlock()
		return nil, apperr.ErrNoSession
	case c.inFlight:
		c.mu.Unlock()
		return nil, apperr.ErrBusy
	}
	gen := c.claimLocked()
	session := cloneSession(c.session)
	c.mu.Unlock()
	defer c.finish()

	c.ticker.Stop()

	pauses, err := c.store.ListPauses(ctx, session.ID)
	if err != nil {
		c.startTicker()
		return nil, err
	}

	now := c.clock.Now()
	net := time.Duration(accounting.NetSeconds(session, pauses, now)) * time.Second
	total := accounting.Format(net)
	status := models.StatusCompleted

	update := models.SessionUpdate{
		Status:           &status,
		EndTime:          &now,
		TotalDuration:    &total,
		Notes:            notes,
		CloseOpenPauseAt: &now,
	}
	if err := c.store.UpdateSession(ctx, session.ID, update); err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("failed to end session")
		c.startTicker()
		return nil, err
	}

	session.Status = status
	session.EndTime = &now
	session.TotalDuration = &total
	if notes != nil {
		session.Notes = *notes
	}
	for i := range pauses {
		if pauses[i].PauseEnd == nil {
			pauses[i].PauseEnd = &now
		}
	}
	session.Pauses = pauses

	c.mu.Lock()
	if c.gen == gen {
		c.gen++
		c.applyLocked(nil)
	}
	c.mu.Unlock()

	log.Debug().Str("session_id", session.ID).Str("total", total).Msg("session ended")
	return session, nil
}

// RecoverSession puts the pending abandoned session back into tracking as active.
// The recovery instant is stored so later detections measure staleness from it.
func (c *Controller) RecoverSession(ctx context.Context) error {
	now := c.clock.Now()
	status := models.StatusActive
	return c.settleAbandoned(ctx, models.SessionUpdate{Status: &status, RecoveredAt: &now, CloseOpenPauseAt: &now})
}

// DiscardSession closes the pending abandoned session as abandoned at the current instant
func (c *Controller) DiscardSession(ctx context.Context) error {
	now := c.clock.Now()
	status := models.StatusAbandoned
	return c.settleAbandoned(ctx, models.SessionUpdate{Status: &status, EndTime: &now, CloseOpenPauseAt: &now})
}

// settleAbandoned writes update to the pending abandoned session, clears the flag and reloads
func (c *Controller) settleAbandoned(ctx context.Context, update models.SessionUpdate) error {
	ownerID, err := c.owner(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	switch {
	case c.abandoned == nil:
		c.mu.Unlock()
		return apperr.ErrNoAbandoned
	case c.inFlight:
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	gen := c.claimLocked()
	sessionID := c.abandoned.ID
	c.mu.Unlock()
	defer c.finish()

	err = c.store.UpdateSession(ctx, sessionID, update)

	c.mu.Lock()
	c.abandoned = nil
	c.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Str("status", *update.Status).Msg("failed to settle abandoned session")
		return err
	}

	log.Debug().Str("session_id", sessionID).Str("status", *update.Status).Msg("abandoned session settled")
	return c.load(ctx, ownerID, gen)
}
