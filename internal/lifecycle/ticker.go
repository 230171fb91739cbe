package lifecycle

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Ticker calls fn every interval on its own goroutine until stopped.
// A tick whose fn fails is skipped; the ticker keeps running.
type Ticker struct {
	interval time.Duration
	fn       func() error

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker returns a stopped ticker
func NewTicker(interval time.Duration, fn func() error) *Ticker {
	return &Ticker{interval: interval, fn: fn}
}

// Start launches the loop. Starting a running ticker restarts it, so at most one loop is ever alive.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done

	go t.run(stop, done)
}

// Stop halts the loop and waits for it to exit. Safe to call when stopped.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Running reports whether a loop is alive
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Ticker) stopLocked() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop, t.done = nil, nil
}

func (t *Ticker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			if err := t.fn(); err != nil {
				log.Debug().Err(err).Msg("skipped tick")
			}
		}
	}
}
