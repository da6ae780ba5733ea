package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/anshumansp/Business-Consultant-Agent/internal/middleware"
	"github.com/anshumansp/Business-Consultant-Agent/internal/relay"
	"github.com/anshumansp/Business-Consultant-Agent/internal/sse"
)

const wsWriteWait = 10 * time.Second

// WSHandler relays chat turns over WebSocket connections. Each text message
// is one relay request; the replies carry the same payloads as the event
// stream.
type WSHandler struct {
	relay    *relay.Service
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	connections map[uuid.UUID]*wsConn
}

// wsConn pairs a connection with the cancel func of the turns running on it.
type wsConn struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewWSHandler accepts upgrades from the given origins. Requests without an
// Origin header are not browsers and are always accepted.
func NewWSHandler(svc *relay.Service, allowedOrigins []string, logger *log.Logger) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WSHandler{
		relay:  svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
		connections: make(map[uuid.UUID]*wsConn),
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(MaxBodyBytes)

	// The request context is detached from a hijacked connection, so turns
	// get their own, ended by unregister or CloseAll.
	ctx, cancel := context.WithCancel(context.Background())
	id := h.register(conn, cancel)
	defer h.unregister(id)

	logger := h.logger.With("conn", id, "request_id", middleware.GetRequestID(r.Context()))
	logger.Info("websocket connected")

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", "err", err)
			}
			break
		}
		if typ != websocket.TextMessage {
			continue
		}
		h.turn(ctx, logger, &wsSink{conn: conn}, data)
	}

	logger.Info("websocket disconnected")
}

func (h *WSHandler) turn(ctx context.Context, logger *log.Logger, sink *wsSink, data []byte) {
	req, err := relay.Validate(data)
	if err != nil {
		sink.fail(err.Error())
		return
	}

	err = h.relay.Run(ctx, req, sink)
	var uerr *relay.UpstreamError
	switch {
	case err == nil:
	case errors.As(err, &uerr) && uerr.Phase == relay.BeforeStream:
		logger.Error("error in chat endpoint", "err", uerr.Err)
		sink.fail(MsgProcessingFailed)
	case errors.Is(err, relay.ErrClientGone):
		logger.Info("client disconnected mid-stream", "err", err)
	default:
		logger.Error("streaming error", "err", err)
	}
}

func (h *WSHandler) register(conn *websocket.Conn, cancel context.CancelFunc) uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := uuid.New()
	h.connections[id] = &wsConn{conn: conn, cancel: cancel}
	return id
}

func (h *WSHandler) unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.connections[id]; ok {
		c.cancel()
		c.conn.Close()
		delete(h.connections, id)
	}
}

// Active reports the number of open connections.
func (h *WSHandler) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// CloseAll cancels running turns and sends a going-away close frame to every
// connection. Used on shutdown, since hijacked connections are not tracked
// by http.Server.
func (h *WSHandler) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range h.connections {
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
	}
}

type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Begin() error { return nil }

func (s *wsSink) WriteFrame(f sse.Frame) error {
	payload, err := f.Payload()
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", relay.ErrClientGone, err)
	}
	return nil
}

// fail reports a turn that never started streaming.
func (s *wsSink) fail(message string) {
	if err := s.WriteFrame(sse.Error(message)); err == nil {
		s.WriteFrame(sse.Done)
	}
}
