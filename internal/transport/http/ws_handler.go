package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/eidolonFIRE/xcNav-reflector/internal/core"
	"github.com/eidolonFIRE/xcNav-reflector/internal/proto"
)

const writeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to the core engine.
type WSHandler struct {
	svc *core.Service
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *core.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{svc: svc, log: logger}
}

// wsConn adapts a websocket connection to core.Conn. The write mutex keeps
// broadcast fan-out and direct replies from interleaving frames, and preserves
// send order per destination.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) Send(action string, body any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, w.conn, proto.Frame{Action: action, Body: body})
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("ws connection opened")

	sess := newSession(h.svc, &wsConn{conn: conn}, h.log)
	defer sess.close()

	err = h.readLoop(ctx, conn, sess)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
			h.log.Debug().Err(err).Msg("ws connection closed with error")
			status = websocket.StatusNormalClosure
			reason = "read error"
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *session) error {
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		sess.dispatch(ctx, env)
	}
}
