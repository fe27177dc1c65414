package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-fanout-relay/internal/domain"
	"github.com/go-fanout-relay/internal/fanout"
	"github.com/go-fanout-relay/internal/transport/http/middleware"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Subscriber registers an outbound as the live delivery target of an identity.
type Subscriber interface {
	Subscribe(ctx context.Context, identity domain.Identity, out *fanout.Outbound) error
}

// StreamHandler upgrades an authenticated request to a websocket and relays
// every message routed to the caller's identity as one JSON text frame.
type StreamHandler struct {
	router   Subscriber
	capacity int
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewStreamHandler(router Subscriber, outboundCapacity int, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		router:   router,
		capacity: outboundCapacity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: slog.Default().With("component", "stream"),
	}
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	identity := claims.Identity()

	out := fanout.NewOutbound(h.capacity)
	if err := h.router.Subscribe(r.Context(), identity, out); err != nil {
		writeServiceError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		out.Release()
		h.logger.Warn("websocket upgrade failed", "identity", identity.String(), "err", err)
		return
	}
	defer conn.Close()

	log := h.logger.With("identity", identity.String())
	log.Info("stream opened")

	gone := make(chan struct{})
	go readUntilClosed(conn, gone)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-out.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// replaced, evicted or router shut down
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
				log.Info("stream closed by router")
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				out.Release()
				log.Info("stream write failed", "err", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				out.Release()
				return
			}
		case <-gone:
			out.Release()
			log.Info("stream closed by client")
			return
		}
	}
}

// readUntilClosed drains client frames so control frames are processed, and
// closes gone when the connection fails or the client closes it.
func readUntilClosed(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
