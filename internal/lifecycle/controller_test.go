package lifecycle

import (
	"context"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/jornada/internal/apperr"
	"github.com/balkashynov/jornada/internal/clock"
	"github.com/balkashynov/jornada/internal/identity"
	"github.com/balkashynov/jornada/internal/models"
)

var t0 = time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC)

func newController(t *testing.T, store *memStore, clk *clock.Manual) *Controller {
	t.Helper()
	c := New(store, identity.Static("ana"),
		WithClock(clk),
		WithStaleAfter(24*time.Hour),
		WithTickInterval(time.Hour),
	)
	t.Cleanup(c.Close)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func waitForCall(t *testing.T, store *memStore, method string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return slices.Contains(store.Calls(), method)
	}, time.Second, time.Millisecond)
}

func TestStartFromNoSession(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, "sprint planning"))

	st := c.State()
	assert.Equal(t, Active, st.Phase)
	assert.Equal(t, int64(0), st.ElapsedSeconds)
	assert.Equal(t, "00:00:00", st.ElapsedTime)
	assert.False(t, st.Loading)
	require.NotNil(t, st.Session)
	assert.Equal(t, "ana", st.Session.OwnerID)
	assert.Equal(t, t0, st.Session.StartTime)
	assert.True(t, c.ticker.Running())

	stored := store.get(st.Session.ID)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Equal(t, "sprint planning", stored.Notes)
}

func TestStartWhileTrackedRejectsWithoutRemoteCall(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))

	before := store.Calls()
	err := c.Start(ctx, "")

	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, before, store.Calls())
}

func TestStartSurfacesConstraintViolationFromAnotherClient(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))

	// another tab opened a session after this controller loaded
	store.put(models.WorkSession{ID: "other-tab", OwnerID: "ana", StartTime: t0, Status: models.StatusActive})

	err := c.Start(context.Background(), "")

	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
	assert.Equal(t, NoSession, c.State().Phase)
	assert.False(t, c.ticker.Running())
}

func TestOperationsRequireAnOwner(t *testing.T) {
	ident := new(MockIdentity)
	ident.On("CurrentUserID", mock.Anything).Return("", false)
	store := newMemStore()
	c := New(store, ident, WithClock(clock.NewManual(t0)))
	defer c.Close()
	ctx := context.Background()

	assert.ErrorIs(t, c.Initialize(ctx), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, c.Start(ctx, ""), apperr.ErrUnauthenticated)
	assert.ErrorIs(t, c.Pause(ctx), apperr.ErrUnauthenticated)
	_, err := c.End(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	assert.Empty(t, store.Calls())
	ident.AssertExpectations(t)
}

func TestPauseTwiceOpensOnePause(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID

	clk.Advance(10 * time.Minute)
	require.NoError(t, c.Pause(ctx))
	require.NoError(t, c.Pause(ctx))

	st := c.State()
	assert.Equal(t, Paused, st.Phase)
	assert.True(t, st.IsPaused)
	assert.Equal(t, 1, st.PauseCount)
	assert.Equal(t, 1, store.openPauses(id))
	assert.Equal(t, models.StatusPaused, store.get(id).Status)
	assert.False(t, c.ticker.Running())
}

func TestPauseWhileInFlightIsNoop(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID
	clk.Advance(time.Minute)

	gate := store.blockOn("InsertPause")
	done := make(chan error, 1)
	go func() { done <- c.Pause(ctx) }()
	waitForCall(t, store, "InsertPause")

	assert.True(t, c.State().Loading)
	assert.NoError(t, c.Pause(ctx))
	_, err := c.End(ctx, nil)
	assert.ErrorIs(t, err, apperr.ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, store.openPauses(id))
	assert.False(t, c.State().Loading)
}

func TestPauseRollsBackWhenStoreFails(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID
	clk.Advance(10 * time.Minute)

	store.failOn("UpdateSession", apperr.Transient(io.ErrUnexpectedEOF, "update session"))
	err := c.Pause(ctx)

	assert.ErrorIs(t, err, apperr.ErrTransientPersistence)
	st := c.State()
	assert.Equal(t, Active, st.Phase)
	assert.Equal(t, 0, st.PauseCount)
	assert.False(t, st.Loading)
	assert.True(t, c.ticker.Running())
	// the pause row written before the failure was rolled back with the transaction
	assert.Equal(t, 0, store.openPauses(id))
	assert.Equal(t, models.StatusActive, store.get(id).Status)
}

func TestResumeWhenNotPausedIsNoop(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))
	ctx := context.Background()

	before := store.Calls()
	require.NoError(t, c.Resume(ctx))
	assert.Equal(t, before, store.Calls())
	assert.Equal(t, NoSession, c.State().Phase)

	require.NoError(t, c.Start(ctx, ""))
	before = store.Calls()
	require.NoError(t, c.Resume(ctx))
	assert.Equal(t, before, store.Calls())
	assert.Equal(t, Active, c.State().Phase)
}

func TestResumeRollsBackWhenOpenPauseIsMissing(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID
	clk.Advance(time.Minute)
	require.NoError(t, c.Pause(ctx))

	// closed from another device
	clk.Advance(time.Minute)
	require.NoError(t, store.ClosePause(ctx, id, clk.Now()))

	err := c.Resume(ctx)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, Paused, c.State().Phase)
	assert.False(t, c.ticker.Running())
}

func TestElapsedFrozenWhilePaused(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))

	clk.Advance(10 * time.Minute)
	require.NoError(t, c.tick())
	assert.Equal(t, int64(600), c.State().ElapsedSeconds)

	require.NoError(t, c.Pause(ctx))
	assert.Equal(t, int64(600), c.State().ElapsedSeconds)

	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		assert.Error(t, c.tick())
		assert.Equal(t, "00:10:00", c.State().ElapsedTime)
	}

	require.NoError(t, c.Resume(ctx))
	assert.Equal(t, int64(600), c.State().ElapsedSeconds)
	assert.True(t, c.ticker.Running())

	clk.Advance(time.Second)
	require.NoError(t, c.tick())
	assert.Equal(t, int64(601), c.State().ElapsedSeconds)
}

func TestEndComputesNetDuration(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()

	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID

	clk.Set(t0.Add(3 * time.Hour)) // 12:00
	require.NoError(t, c.Pause(ctx))
	clk.Set(t0.Add(3*time.Hour + 30*time.Minute))
	require.NoError(t, c.Resume(ctx))
	clk.Set(t0.Add(6 * time.Hour)) // 15:00
	require.NoError(t, c.Pause(ctx))
	clk.Set(t0.Add(6*time.Hour + 15*time.Minute))
	require.NoError(t, c.Resume(ctx))
	clk.Set(t0.Add(8 * time.Hour)) // 17:00

	note := "release day"
	ended, err := c.End(ctx, &note)
	require.NoError(t, err)

	require.NotNil(t, ended.TotalDuration)
	assert.Equal(t, "07:15:00", *ended.TotalDuration)
	assert.Equal(t, models.StatusCompleted, ended.Status)
	assert.Len(t, ended.Pauses, 2)

	stored := store.get(id)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "07:15:00", *stored.TotalDuration)
	assert.Equal(t, t0.Add(8*time.Hour), *stored.EndTime)
	assert.Equal(t, "release day", stored.Notes)

	st := c.State()
	assert.Equal(t, NoSession, st.Phase)
	assert.Nil(t, st.Session)
	assert.False(t, c.ticker.Running())
}

func TestEndWhilePausedClosesThePause(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID

	clk.Advance(time.Hour)
	require.NoError(t, c.Pause(ctx))
	clk.Advance(30 * time.Minute)

	ended, err := c.End(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, "01:00:00", *ended.TotalDuration)
	assert.Equal(t, 0, store.openPauses(id))
	assert.Equal(t, NoSession, c.State().Phase)
}

func TestEndFailureLeavesStateForRetry(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	clk.Advance(2 * time.Hour)

	store.failOn("UpdateSession", apperr.Constraint("session exceeds the maximum duration"))
	_, err := c.End(ctx, nil)

	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
	assert.Equal(t, Active, c.State().Phase)
	assert.False(t, c.State().Loading)
	assert.True(t, c.ticker.Running())

	store.failOn("UpdateSession", nil)
	ended, err := c.End(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "02:00:00", *ended.TotalDuration)
}

func TestEndWithoutSession(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))

	before := store.Calls()
	_, err := c.End(context.Background(), nil)

	assert.ErrorIs(t, err, apperr.ErrNoSession)
	assert.Equal(t, before, store.Calls())
}

func TestInitializeLoadsFreshSession(t *testing.T) {
	store := newMemStore()
	pauseEnd := t0.Add(30 * time.Minute)
	store.put(
		models.WorkSession{ID: "s1", OwnerID: "ana", StartTime: t0, Status: models.StatusPaused},
		models.WorkPause{ID: "p1", SessionID: "s1", PauseStart: t0.Add(20 * time.Minute), PauseEnd: &pauseEnd},
		models.WorkPause{ID: "p2", SessionID: "s1", PauseStart: t0.Add(time.Hour)},
	)
	clk := clock.NewManual(t0.Add(2 * time.Hour))

	c := newController(t, store, clk)

	st := c.State()
	assert.Equal(t, Paused, st.Phase)
	assert.Equal(t, 2, st.PauseCount)
	assert.Equal(t, "00:50:00", st.ElapsedTime)
	assert.Nil(t, st.Abandoned)
	assert.False(t, c.ticker.Running())
}

func TestInitializeRunsOnce(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))

	before := store.Calls()
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, before, store.Calls())
}

func staleStore() *memStore {
	store := newMemStore()
	store.put(models.WorkSession{ID: "stale", OwnerID: "ana", StartTime: t0, Status: models.StatusActive})
	return store
}

func TestInitializeFlagsAbandonedSession(t *testing.T) {
	store := staleStore()
	clk := clock.NewManual(t0.Add(25 * time.Hour))

	c := newController(t, store, clk)

	st := c.State()
	require.NotNil(t, st.Abandoned)
	assert.Equal(t, "stale", st.Abandoned.ID)
	assert.Equal(t, "25 horas", st.Abandoned.Message)
	assert.Equal(t, NoSession, st.Phase)
	assert.False(t, c.ticker.Running())

	assert.ErrorIs(t, c.Start(context.Background(), ""), apperr.ErrAbandonedPending)
}

func TestRecoverSession(t *testing.T) {
	store := staleStore()
	clk := clock.NewManual(t0.Add(25 * time.Hour))
	c := newController(t, store, clk)

	require.NoError(t, c.RecoverSession(context.Background()))

	st := c.State()
	assert.Nil(t, st.Abandoned)
	assert.Equal(t, Active, st.Phase)
	require.NotNil(t, st.Session)
	assert.Equal(t, "stale", st.Session.ID)
	assert.Equal(t, models.StatusActive, store.get("stale").Status)
	assert.True(t, c.ticker.Running())

	stored := store.get("stale")
	require.NotNil(t, stored.RecoveredAt)
	assert.Equal(t, clk.Now(), *stored.RecoveredAt)
}

func TestRecoveredSessionStaysTrackedInNextController(t *testing.T) {
	store := staleStore()
	clk := clock.NewManual(t0.Add(25 * time.Hour))
	first := newController(t, store, clk)
	require.NoError(t, first.RecoverSession(context.Background()))
	first.Close()

	clk.Advance(time.Hour)
	next := newController(t, store, clk)

	st := next.State()
	assert.Nil(t, st.Abandoned)
	assert.Equal(t, Active, st.Phase)
	assert.Equal(t, "26:00:00", st.ElapsedTime)

	ended, err := next.End(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "26:00:00", *ended.TotalDuration)
}

func TestRecoverPausedSessionClosesItsPause(t *testing.T) {
	store := newMemStore()
	store.put(
		models.WorkSession{ID: "stale", OwnerID: "ana", StartTime: t0, Status: models.StatusPaused},
		models.WorkPause{ID: "p1", SessionID: "stale", PauseStart: t0.Add(time.Hour)},
	)
	clk := clock.NewManual(t0.Add(30 * time.Hour))
	c := newController(t, store, clk)
	require.NotNil(t, c.State().Abandoned)

	require.NoError(t, c.RecoverSession(context.Background()))

	assert.Equal(t, Active, c.State().Phase)
	assert.Equal(t, 0, store.openPauses("stale"))
}

func TestDiscardSession(t *testing.T) {
	store := staleStore()
	now := t0.Add(25 * time.Hour)
	c := newController(t, store, clock.NewManual(now))

	require.NoError(t, c.DiscardSession(context.Background()))

	st := c.State()
	assert.Nil(t, st.Abandoned)
	assert.Equal(t, NoSession, st.Phase)

	stored := store.get("stale")
	assert.Equal(t, models.StatusAbandoned, stored.Status)
	require.NotNil(t, stored.EndTime)
	assert.Equal(t, now, *stored.EndTime)

	require.NoError(t, c.Start(context.Background(), ""))
}

func TestDiscardFailureStillClearsFlag(t *testing.T) {
	store := staleStore()
	c := newController(t, store, clock.NewManual(t0.Add(25*time.Hour)))
	store.failOn("UpdateSession", apperr.Transient(io.EOF, "update session"))

	err := c.DiscardSession(context.Background())

	assert.ErrorIs(t, err, apperr.ErrTransientPersistence)
	assert.Nil(t, c.State().Abandoned)
	assert.ErrorIs(t, c.DiscardSession(context.Background()), apperr.ErrNoAbandoned)
}

func TestCloseDropsLateResult(t *testing.T) {
	store := newMemStore()
	c := newController(t, store, clock.NewManual(t0))
	ctx := context.Background()

	gate := store.blockOn("InsertSession")
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, "") }()
	waitForCall(t, store, "InsertSession")

	c.Close()
	close(gate)
	require.NoError(t, <-done)

	assert.Equal(t, NoSession, c.State().Phase)
	assert.False(t, c.ticker.Running())
}

func TestOnChangeReceivesState(t *testing.T) {
	store := newMemStore()
	var phases []Phase
	c := New(store, identity.Static("ana"),
		WithClock(clock.NewManual(t0)),
		WithTickInterval(time.Hour),
		WithOnChange(func(st State) { phases = append(phases, st.Phase) }),
	)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx))
	require.NoError(t, c.Start(ctx, ""))

	require.NotEmpty(t, phases)
	assert.Equal(t, Active, phases[len(phases)-1])
}

func TestReloadPicksUpChangesFromAnotherClient(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID

	clk.Advance(10 * time.Minute)
	other := store.get(id)
	other.Status = models.StatusPaused
	store.put(other, models.WorkPause{ID: "p-other", SessionID: id, PauseStart: clk.Now()})
	clk.Advance(5 * time.Minute)

	require.NoError(t, c.Reload(ctx))

	st := c.State()
	assert.Equal(t, Paused, st.Phase)
	assert.Equal(t, "00:10:00", st.ElapsedTime)
	require.NotNil(t, st.Session.OpenPause())
	assert.Equal(t, "p-other", st.Session.OpenPause().ID)
	assert.False(t, c.ticker.Running())
}

func TestReloadWhileInFlightIsBusy(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	clk.Advance(time.Minute)

	gate := store.blockOn("InsertPause")
	done := make(chan error, 1)
	go func() { done <- c.Pause(ctx) }()
	waitForCall(t, store, "InsertPause")

	before := store.Calls()
	assert.ErrorIs(t, c.Reload(ctx), apperr.ErrBusy)
	assert.Equal(t, before, store.Calls())

	close(gate)
	require.NoError(t, <-done)
}

func TestReloadFailureKeepsStateAndTicker(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))
	id := c.State().Session.ID

	store.failOn("OpenSession", apperr.Transient(io.ErrUnexpectedEOF, "open session"))
	err := c.Reload(ctx)

	assert.ErrorIs(t, err, apperr.ErrTransientPersistence)
	st := c.State()
	assert.Equal(t, Active, st.Phase)
	assert.Equal(t, id, st.Session.ID)
	assert.False(t, st.Loading)
	assert.True(t, c.ticker.Running())
}

func TestReloadRefusedWhileAbandonedPending(t *testing.T) {
	store := staleStore()
	c := newController(t, store, clock.NewManual(t0.Add(25*time.Hour)))

	assert.ErrorIs(t, c.Reload(context.Background()), apperr.ErrAbandonedPending)
	assert.Equal(t, NoSession, c.State().Phase)
}

func TestStateCarriesRecordedPauses(t *testing.T) {
	store := newMemStore()
	clk := clock.NewManual(t0)
	c := newController(t, store, clk)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, ""))

	clk.Advance(20 * time.Minute)
	pausedAt := clk.Now()
	require.NoError(t, c.Pause(ctx))
	open := c.State().Session.OpenPause()
	require.NotNil(t, open)
	assert.Equal(t, pausedAt, open.PauseStart)

	clk.Advance(5 * time.Minute)
	require.NoError(t, c.Resume(ctx))
	last := c.State().Session.LastPause()
	require.NotNil(t, last)
	require.NotNil(t, last.PauseEnd)
	assert.Equal(t, clk.Now(), *last.PauseEnd)
	assert.Nil(t, c.State().Session.OpenPause())
}
