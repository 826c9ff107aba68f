package fetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// Latest runs puzzle loads so that only the most recently issued one is
// delivered. Starting a load cancels the one in flight, whatever puzzle it
// was for, and a superseded load that still completes is discarded.
type Latest struct {
	fetcher Fetcher

	mu       sync.Mutex // guards every field below; held while delivering
	gen      uint64
	cancel   context.CancelFunc
	inflight int
	idle     chan struct{} // closed whenever inflight is zero
}

// NewLatest wraps f.
func NewLatest(f Fetcher) *Latest {
	idle := make(chan struct{})
	close(idle)
	return &Latest{fetcher: f, idle: idle}
}

// Load fetches name in the background and calls deliver with the payload if
// no newer Load was issued in the meantime. deliver runs with the supervisor
// lock held, so it must not call Load.
func (l *Latest) Load(parent context.Context, name string, deliver func(name string, resp []puzzle.RawPuzzle)) {
	ctx, cancel := context.WithCancel(parent)

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	if l.inflight == 0 {
		l.idle = make(chan struct{})
	}
	l.inflight++
	l.mu.Unlock()

	go func() {
		defer cancel()

		resp, err := l.fetcher.Fetch(ctx, name)

		l.mu.Lock()
		defer l.mu.Unlock()
		defer l.finish()
		if gen != l.gen {
			log.Debug().Str("puzzle", name).Msg("fetch superseded")
			return
		}
		l.cancel = nil
		if err != nil {
			log.Warn().Err(err).Str("puzzle", name).Msg("fetch puzzle")
			return
		}
		deliver(name, resp)
	}()
}

// Cancel aborts the load in flight, if any.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.gen++
}

// finish retires one load. Called with l.mu held.
func (l *Latest) finish() {
	l.inflight--
	if l.inflight == 0 {
		close(l.idle)
	}
}

// Idle returns a channel that is closed once every load started so far has
// finished or been discarded. Loads started later get a new channel.
func (l *Latest) Idle() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idle
}

// Wait blocks until every started load has finished or been discarded.
func (l *Latest) Wait() { <-l.Idle() }
