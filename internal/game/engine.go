// internal/game/engine.go
//
// Engine owns the state of one player session.
// Responsibilities:
//   - Serialize actions: each Dispatch reduces the current snapshot to a new one
//     under a single lock, so two transitions never interleave.
//   - Turn FetchPuzzle into a background load (last issued wins) whose result
//     comes back as FetchPuzzleReceive.
//   - Notify listeners (persistence, stats) and subscribers (live feeds) of
//     every puzzle that changed.
//
// Snapshots handed out by State/Puzzle are immutable and safe to share.
//
// Listeners run inside the dispatch lock, so a slow listener delays every
// later action of the session. Listeners that do I/O should hand the work
// off (the HTTP layer queues persistence to a per-session saver).
//
// A closed engine ignores further actions and has closed every subscription
// channel, so live feeds see the end of the session.

package game

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

// subscriptionBuffer is the number of snapshots queued per subscriber before
// further updates are dropped for it.
const subscriptionBuffer = 16

// Listener observes a puzzle after an action changed it. Listeners run under
// the engine lock in dispatch order and must not call Dispatch.
type Listener func(a Action, name string, p puzzle.Puzzle)

// Subscription delivers snapshots of one puzzle as it changes.
type Subscription struct {
	C    chan puzzle.Puzzle
	name string
}

// Engine is a single-writer state machine over a State.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc
	loader *fetch.Latest

	mu        sync.Mutex // guards state and closed; held while notifying
	state     State
	closed    bool
	listeners []Listener

	subMu sync.RWMutex
	subs  map[*Subscription]struct{}
}

// NewEngine returns an engine with an empty state that loads puzzles
// through f. Background loads stop when ctx ends or Close is called.
func NewEngine(ctx context.Context, f fetch.Fetcher, listeners ...Listener) *Engine {
	ctx, cancel := context.WithCancel(ctx)
	return &Engine{
		ctx:       ctx,
		cancel:    cancel,
		loader:    fetch.NewLatest(f),
		state:     State{},
		listeners: listeners,
		subs:      make(map[*Subscription]struct{}),
	}
}

// Dispatch applies a and returns the resulting whole state. FetchPuzzle
// returns immediately with the current state; the puzzle appears once the
// load completes.
func (e *Engine) Dispatch(a Action) State {
	if fp, ok := a.(FetchPuzzle); ok {
		if e.isClosed() {
			return e.State()
		}
		log.Debug().Str("action", a.Kind()).Str("puzzle", fp.PuzzleName).Msg("dispatch")
		e.loader.Load(e.ctx, fp.PuzzleName, func(name string, resp []puzzle.RawPuzzle) {
			e.Dispatch(FetchPuzzleReceive{PuzzleName: name, Response: resp})
		})
		return e.State()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		log.Debug().Str("action", a.Kind()).Str("puzzle", a.Puzzle()).Msg("dispatch on closed engine")
		return e.state
	}

	next, changed := apply(e.state, a)
	if !changed {
		log.Debug().Str("action", a.Kind()).Str("puzzle", a.Puzzle()).Msg("dispatch ignored")
		return e.state
	}
	e.state = next

	p := next[a.Puzzle()]
	for _, l := range e.listeners {
		l(a, a.Puzzle(), p)
	}
	e.broadcast(a.Puzzle(), p)
	return next
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Puzzle returns the current snapshot of one puzzle.
func (e *Engine) Puzzle(name string) (puzzle.Puzzle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.state[name]
	return p, ok
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Subscribe registers for snapshots of the named puzzle. On a closed engine
// the returned channel is already closed.
func (e *Engine) Subscribe(name string) *Subscription {
	s := &Subscription{C: make(chan puzzle.Puzzle, subscriptionBuffer), name: name}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(s.C)
		return s
	}
	e.subMu.Lock()
	e.subs[s] = struct{}{}
	e.subMu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (e *Engine) Unsubscribe(s *Subscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if _, ok := e.subs[s]; ok {
		delete(e.subs, s)
		close(s.C)
	}
}

func (e *Engine) broadcast(name string, p puzzle.Puzzle) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for s := range e.subs {
		if s.name != name {
			continue
		}
		select {
		case s.C <- p:
		default:
			// Subscriber is behind; it will catch up on the next change.
		}
	}
}

// Wait blocks until in-flight loads have been delivered or discarded.
func (e *Engine) Wait() { e.loader.Wait() }

// Idle returns a channel that is closed once no load is in flight.
func (e *Engine) Idle() <-chan struct{} { return e.loader.Idle() }

// Close stops the engine: later actions are ignored, subscriptions are
// closed and removed, and pending loads are cancelled and awaited. Once Close
// returns no listener runs again.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.subMu.Lock()
		for s := range e.subs {
			delete(e.subs, s)
			close(s.C)
		}
		e.subMu.Unlock()
	}
	e.mu.Unlock()

	e.cancel()
	e.loader.Cancel()
	e.loader.Wait()
}
