// internal/httpserver/sessions.go
//
// Per-player engine sessions.
// Each owner (user ID or anonymous ID) gets one game.Engine holding every
// puzzle they have loaded. Sessions are created on first use, evicted after
// sessionIdle without requests, and their puzzles can be resumed from saved
// progress afterwards.
//
// Every change a session's engine makes is queued to the session's saver,
// which persists it off the dispatch lock; the first time a puzzle becomes
// solved the user's counter and the daily board are updated. HTTP handlers
// flush the saver before answering, so a response implies the save was
// attempted. Closing a session closes its engine (ending live feeds) and
// drains the saver.

package httpserver

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/crossword/apps/go-server/internal/game"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
	"github.com/robalobadob/crossword/apps/go-server/internal/store"
)

const (
	sessionIdle = 30 * time.Minute
	saveTimeout = 2 * time.Second
	saveBacklog = 64
)

// saveJob is one change waiting to be persisted.
type saveJob struct {
	name     string
	puzzle   puzzle.Puzzle
	solved   bool
	newSolve bool      // first transition into solved, not a restore
	at       time.Time // daily clock at the change
}

type session struct {
	owner    string
	engine   *game.Engine
	lastSeen atomic.Int64
	solved   map[string]bool // only touched by the engine listener

	jobs      chan saveJob
	saverDone chan struct{}

	saveMu   sync.Mutex // guards queued, saved, progress
	queued   uint64
	saved    uint64
	progress chan struct{} // closed and replaced after each saved job
}

func (sess *session) touch() { sess.lastSeen.Store(time.Now().UnixNano()) }

// enqueue hands a change to the saver. Runs under the engine lock.
func (sess *session) enqueue(job saveJob) {
	sess.saveMu.Lock()
	sess.queued++
	sess.saveMu.Unlock()
	sess.jobs <- job
}

// flush waits until every change queued so far has been persisted or ctx ends.
func (sess *session) flush(ctx context.Context) error {
	sess.saveMu.Lock()
	target := sess.queued
	for sess.saved < target {
		ch := sess.progress
		sess.saveMu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		sess.saveMu.Lock()
	}
	sess.saveMu.Unlock()
	return nil
}

// close stops the engine, then drains the saver. The engine runs no listener
// after Close returns, so nothing is queued once jobs is closed.
func (sess *session) close() {
	sess.engine.Close()
	close(sess.jobs)
	<-sess.saverDone
}

type sessions struct {
	ctx context.Context
	srv *Server

	mu      sync.Mutex
	byOwner map[string]*session
}

func newSessions(ctx context.Context, srv *Server) *sessions {
	return &sessions{ctx: ctx, srv: srv, byOwner: make(map[string]*session)}
}

// get returns the owner's session, creating it if needed.
func (ss *sessions) get(owner string) *session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if sess, ok := ss.byOwner[owner]; ok {
		sess.touch()
		return sess
	}
	sess := &session{
		owner:     owner,
		solved:    make(map[string]bool),
		jobs:      make(chan saveJob, saveBacklog),
		saverDone: make(chan struct{}),
		progress:  make(chan struct{}),
	}
	sess.engine = game.NewEngine(ss.ctx, ss.srv.fetcher, ss.srv.onChange(sess))
	sess.touch()
	go ss.srv.saver(sess)
	ss.byOwner[owner] = sess
	log.Debug().Str("owner", owner).Msg("session opened")
	return sess
}

// drop closes and forgets the owner's session, if any. Once drop returns the
// session has nothing left to save.
func (ss *sessions) drop(owner string) {
	ss.mu.Lock()
	sess, ok := ss.byOwner[owner]
	delete(ss.byOwner, owner)
	ss.mu.Unlock()
	if ok {
		sess.close()
	}
}

// reap closes sessions idle for longer than idle and reports how many.
func (ss *sessions) reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle).UnixNano()
	var stale []*session
	ss.mu.Lock()
	for owner, sess := range ss.byOwner {
		if sess.lastSeen.Load() < cutoff {
			stale = append(stale, sess)
			delete(ss.byOwner, owner)
		}
	}
	ss.mu.Unlock()
	for _, sess := range stale {
		sess.close()
	}
	return len(stale)
}

func (ss *sessions) closeAll() {
	ss.mu.Lock()
	all := ss.byOwner
	ss.byOwner = make(map[string]*session)
	ss.mu.Unlock()
	for _, sess := range all {
		sess.close()
	}
}

func isAnon(owner string) bool { return strings.HasPrefix(owner, "anon-") }

// onChange tracks solves and queues a session's changes for the saver.
func (s *Server) onChange(sess *session) game.Listener {
	return func(a game.Action, name string, p puzzle.Puzzle) {
		solved := p.Solved()
		was := sess.solved[name]
		sess.solved[name] = solved

		// A fresh load has nothing worth saving and must not clobber
		// progress the player may still resume.
		if _, ok := a.(game.FetchPuzzleReceive); ok {
			return
		}
		_, restore := a.(game.RestorePuzzle)
		sess.enqueue(saveJob{
			name:     name,
			puzzle:   p,
			solved:   solved,
			newSolve: solved && !was && !restore,
			at:       s.daily.now(),
		})
	}
}

// saver persists a session's queued changes in order until jobs is closed.
func (s *Server) saver(sess *session) {
	defer close(sess.saverDone)
	for job := range sess.jobs {
		s.persist(sess.owner, job)

		sess.saveMu.Lock()
		sess.saved++
		close(sess.progress)
		sess.progress = make(chan struct{})
		sess.saveMu.Unlock()
	}
}

func (s *Server) persist(owner string, job saveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	err := s.progress.Save(ctx, store.Progress{
		Owner:      owner,
		PuzzleName: job.name,
		Puzzle:     job.puzzle,
		Solved:     job.solved,
	})
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Str("puzzle", job.name).Msg("save progress")
	}

	if !job.newSolve {
		return
	}
	log.Info().Str("owner", owner).Str("puzzle", job.name).Msg("puzzle solved")
	if !isAnon(owner) {
		if err := s.db.IncrementSolved(ctx, owner); err != nil {
			log.Warn().Err(err).Str("user", owner).Msg("bump solved")
		}
	}
	s.daily.recordSolve(ctx, owner, job.name, job.at)
}
