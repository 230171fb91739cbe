package lifecycle

import (
	"context"
	"time"

	"github.com/balkashynov/jornada/internal/clock"
	"github.com/balkashynov/jornada/internal/i18n"
	"github.com/balkashynov/jornada/internal/models"
)

// Detection is what the detector found for an owner. At most one field is set.
type Detection struct {
	Session   *models.WorkSession
	Abandoned *AbandonedSession
}

// Detector looks for an open session that was left running past staleAfter,
// counted from its start or from its last recovery
type Detector struct {
	store      Store
	clock      clock.Clock
	staleAfter time.Duration
	messages   i18n.Messages
}

// NewDetector returns a detector flagging sessions open longer than staleAfter
func NewDetector(store Store, clk clock.Clock, staleAfter time.Duration, messages i18n.Messages) *Detector {
	return &Detector{store: store, clock: clk, staleAfter: staleAfter, messages: messages}
}

// Detect queries the owner's open session once. A fresh session comes back in
// Session for a normal load; a stale one comes back in Abandoned instead.
func (d *Detector) Detect(ctx context.Context, ownerID string) (Detection, error) {
	open, err := d.store.OpenSession(ctx, ownerID)
	if err != nil || open == nil {
		return Detection{}, err
	}

	openFor := d.clock.Now().Sub(open.StaleSince())
	if openFor <= d.staleAfter {
		return Detection{Session: open}, nil
	}

	return Detection{Abandoned: &AbandonedSession{
		ID:        open.ID,
		StartTime: open.StartTime,
		OpenFor:   openFor,
		Message:   d.messages.Elapsed(openFor),
	}}, nil
}
