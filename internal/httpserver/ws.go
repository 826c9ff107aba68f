// internal/httpserver/ws.go
//
// Live puzzle feed over websocket: GET /puzzles/{name}/ws.
//
// The client sends action messages ({"type":"guess","guess":"a"}, see
// actions.go) and receives {"type":"state","puzzle":...,"view":...} whenever
// the puzzle changes, whether through this socket, another socket or the
// HTTP routes of the same session. Problems with a message are answered with
// {"type":"error","error":code}; the socket stays open.
// The socket closes when the session ends (eviction, login, shutdown).
//
// One reader and one writer run per connection under an errgroup; the writer
// owns every write, including pings and replies queued by the reader.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/game"
	"github.com/robalobadob/crossword/apps/go-server/internal/puzzle"
)

const (
	// Time allowed to write a message to the peer.
	wsWriteWait = 5 * time.Second
	// Time allowed between pongs before the peer is considered gone.
	wsPongWait = 60 * time.Second
	// Must be less than wsPongWait.
	wsPingPeriod = wsPongWait * 9 / 10
	// Maximum message size allowed from peer.
	wsMaxMessage = 4096
)

var errSocketClosed = errors.New("websocket closed by peer")

// wsOut is a server to client message.
type wsOut struct {
	Type   string      `json:"type"`
	Puzzle string      `json:"puzzle,omitempty"`
	View   *puzzleView `json:"view,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func stateMsg(name string, p puzzle.Puzzle) wsOut {
	v := viewOf(p)
	return wsOut{Type: "state", Puzzle: name, View: &v}
}

// checkOrigin accepts same-host requests, requests without an Origin header
// and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !fetch.ValidName(name) {
		writeError(w, http.StatusBadRequest, errBadName.Error())
		return
	}
	sess := s.sessions.get(s.owner(w, r))

	// The upgrade response is written on the raw connection; carry over a
	// freshly issued anonymous cookie.
	var hdr http.Header
	if c := w.Header().Values("Set-Cookie"); len(c) > 0 {
		hdr = http.Header{"Set-Cookie": c}
	}
	up := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := up.Upgrade(w, r, hdr)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debug().Err(err).Str("puzzle", name).Msg("websocket upgrade")
		return
	}

	sub := sess.engine.Subscribe(name)
	defer sess.engine.Unsubscribe(sub)

	c := &wsConn{conn: conn, sess: sess, name: name, sub: sub, replies: make(chan wsOut, 8)}
	group, ctx := errgroup.WithContext(r.Context())
	group.Go(func() error { return c.readPump(ctx) })
	group.Go(func() error { return c.writePump(ctx) })

	if err := group.Wait(); err != nil && !errors.Is(err, errSocketClosed) {
		log.Debug().Err(err).Str("owner", sess.owner).Str("puzzle", name).Msg("websocket ended")
	}
}

type wsConn struct {
	conn    *websocket.Conn
	sess    *session
	name    string
	sub     *game.Subscription
	replies chan wsOut
}

// readPump decodes action messages and dispatches them. Read errors are
// permanent and end the connection.
func (c *wsConn) readPump(ctx context.Context) error {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errSocketClosed
			}
			return err
		}
		c.sess.touch()

		var msg actionMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			if !c.reply(ctx, wsOut{Type: "error", Error: "invalid_json"}) {
				return nil
			}
			continue
		}
		a, err := msg.action(c.name)
		if err != nil {
			if !c.reply(ctx, wsOut{Type: "error", Error: err.Error()}) {
				return nil
			}
			continue
		}
		if _, ok := a.(game.FetchPuzzle); !ok {
			if _, loaded := c.sess.engine.Puzzle(c.name); !loaded {
				if !c.reply(ctx, wsOut{Type: "error", Error: "not_loaded"}) {
					return nil
				}
				continue
			}
		}
		// The resulting state reaches the client through the subscription.
		c.sess.engine.Dispatch(a)
	}
}

// reply queues a message for the writer; false once the connection is done.
func (c *wsConn) reply(ctx context.Context, out wsOut) bool {
	select {
	case c.replies <- out:
		return true
	case <-ctx.Done():
		return false
	}
}

// writePump sends the current puzzle, then every change, reply and ping.
// It closes the connection on exit, which also stops readPump.
func (c *wsConn) writePump(ctx context.Context) error {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	if p, ok := c.sess.engine.Puzzle(c.name); ok {
		if err := c.write(stateMsg(c.name, p)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return nil
		case p, ok := <-c.sub.C:
			if !ok {
				return errSocketClosed
			}
			if err := c.write(stateMsg(c.name, p)); err != nil {
				return err
			}
		case out := <-c.replies:
			if err := c.write(out); err != nil {
				return err
			}
		case <-ticker.C:
			c.sess.touch()
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
		}
	}
}

func (c *wsConn) write(out wsOut) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(out)
}
