package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/gateway/config"
	"github.com/socratic-mirror/coach/pkg/gateway/live/protocol"
	"github.com/socratic-mirror/coach/pkg/gateway/live/sessions"
	"github.com/socratic-mirror/coach/pkg/gateway/mw"
)

// CoachWSHandler handles /ws/coach/{id} channels. One channel per session;
// frames are handled strictly in arrival order so turns never interleave for
// a session.
type CoachWSHandler struct {
	Engine   *coach.Engine
	Config   config.Config
	Logger   *slog.Logger
	Channels *sessions.Tracker
}

// wsConn serializes writes; the read loop and the ping loop share the
// connection.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (h CoachWSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, coach.NewInvalidRequestError("method not allowed"))
		return
	}
	if !h.originAllowed(r) {
		writeError(w, coach.NewInvalidRequestError("origin is not allowed"))
		return
	}

	sessionID := r.PathValue("id")
	reqID, _ := mw.RequestIDFrom(r.Context())

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer raw.Close()

	if h.Config.WSMaxMessageBytes > 0 {
		raw.SetReadLimit(h.Config.WSMaxMessageBytes)
	}
	conn := &wsConn{conn: raw, writeTimeout: h.Config.WSWriteTimeout}

	s, err := h.Engine.GetSession(r.Context(), sessionID)
	if err != nil {
		_ = conn.writeJSON(coach.NewErrorResponse(asCoachError(err).Message))
		return
	}

	if err := conn.writeJSON(protocol.NewServerConnected(s.ID, s.Mode)); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unregister := func() {}
	if h.Channels != nil {
		unregister = h.Channels.Register(sessionID, sessions.Handle{
			Cancel: func() {
				cancel()
				_ = raw.Close()
			},
			Notify: func(message string) error {
				return conn.writeJSON(coach.NewErrorResponse(message))
			},
		})
	}
	defer unregister()

	if h.Config.WSMaxSessionDuration > 0 {
		timer := time.AfterFunc(h.Config.WSMaxSessionDuration, func() {
			_ = conn.writeJSON(coach.NewErrorResponse("session duration limit reached"))
			cancel()
			_ = raw.Close()
		})
		defer timer.Stop()
	}

	if h.Config.WSPingInterval > 0 {
		go h.pingLoop(ctx, conn)
	}

	h.readLoop(ctx, conn, raw, sessionID, reqID)
}

func (h CoachWSHandler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(h.Config.WSPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.writePing(); err != nil {
				return
			}
		}
	}
}

func (h CoachWSHandler) readLoop(ctx context.Context, conn *wsConn, raw *websocket.Conn, sessionID, reqID string) {
	for {
		if h.Config.WSReadTimeout > 0 {
			_ = raw.SetReadDeadline(time.Now().Add(h.Config.WSReadTimeout))
		}
		_, data, err := raw.ReadMessage()
		if err != nil {
			return
		}

		decoded, err := protocol.DecodeClientMessage(data)
		if err != nil {
			_ = conn.writeJSON(coach.NewErrorResponse(err.Error()))
			continue
		}

		done, err := h.dispatch(ctx, conn, sessionID, decoded)
		if err != nil {
			typed := asCoachError(err)
			h.logWarn("turn failed", "session_id", sessionID, "request_id", reqID, "error", err)
			if writeErr := conn.writeJSON(coach.NewErrorResponse(typed.Message)); writeErr != nil {
				return
			}
			continue
		}
		if done {
			return
		}
	}
}

// dispatch routes one decoded frame. done is true when the channel should
// close (explicit session end).
func (h CoachWSHandler) dispatch(ctx context.Context, conn *wsConn, sessionID string, decoded any) (done bool, err error) {
	switch msg := decoded.(type) {
	case protocol.ClientUserSpeech:
		resp, err := h.handleWithTimeout(ctx, func(turnCtx context.Context) (coach.Response, error) {
			return h.Engine.HandleSpeech(turnCtx, sessionID, strings.TrimSpace(msg.Transcript))
		})
		if err != nil {
			return false, err
		}
		return isSessionEnded(resp), conn.writeJSON(resp)

	case protocol.ClientText:
		resp, err := h.handleWithTimeout(ctx, func(turnCtx context.Context) (coach.Response, error) {
			return h.Engine.HandleText(turnCtx, sessionID, strings.TrimSpace(msg.Payload))
		})
		if err != nil {
			return false, err
		}
		return isSessionEnded(resp), conn.writeJSON(resp)

	case protocol.ClientBiometric:
		return false, h.Engine.HandleBiometric(ctx, sessionID, msg.Data.Frame())

	case protocol.ClientEndSession:
		report, err := h.Engine.EndSession(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return true, conn.writeJSON(coach.NewSessionEnded(report))

	default:
		return false, coach.NewMalformedMessageError("unsupported message", "type")
	}
}

func (h CoachWSHandler) handleWithTimeout(ctx context.Context, turn func(context.Context) (coach.Response, error)) (coach.Response, error) {
	if h.Config.InferenceTimeout <= 0 {
		return turn(ctx)
	}
	turnCtx, cancel := context.WithTimeout(ctx, h.Config.InferenceTimeout)
	defer cancel()
	return turn(turnCtx)
}

// isSessionEnded reports whether a turn response terminated the session
// in-conversation (interview exhaustion, speaking completion).
func isSessionEnded(resp coach.Response) bool {
	_, ok := resp.(*coach.SessionEnded)
	return ok
}

func (h CoachWSHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h CoachWSHandler) logWarn(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Warn(msg, args...)
	}
}
