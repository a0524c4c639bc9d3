package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/cart"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	EventConnected   = "connected"
	EventCartUpdated = "cart_updated"
	EventRedirect    = "redirect"

	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Event is one message on a tab's websocket feed.
type Event struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Path  string `json:"path,omitempty"`
}

type EventsHandler struct {
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewEventsHandler accepts websocket handshakes from allowedOrigins, or only
// from the serving host when the list is empty.
func NewEventsHandler(allowedOrigins []string, log *logger.Logger) *EventsHandler {
	upgrader := websocket.Upgrader{}
	if len(allowedOrigins) > 0 {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		}
	}
	return &EventsHandler{upgrader: upgrader, log: log}
}

// GET /api/v1/cart/events
//
// The feed keeps the header badge of the tab current and carries the
// post-checkout redirect.
func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	t := getTab(r.Context())

	detach, err := t.Attach(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "attach feed failed", err)
		respondError(w, http.StatusServiceUnavailable, "tab_unavailable", "could not open event feed")
		return
	}
	defer detach()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		h.log.Warn(r.Context(), "websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	events := make(chan Event, 16)
	send := func(e Event) {
		select {
		case events <- e:
		default:
			// slow reader; the next count supersedes this one
		}
	}

	ctx := context.WithoutCancel(r.Context())
	badge := cart.NewBadge(t.Store, t.Bus)
	badge.OnChange(func(count int) { send(Event{Type: EventCartUpdated, Count: count}) })
	badge.Mount(ctx)
	defer badge.Unmount()

	stopRedirects := t.OnRedirect(func(path string) {
		send(Event{Type: EventRedirect, Count: badge.Count(), Path: path})
	})
	defer stopRedirects()

	done := make(chan struct{})
	go h.readLoop(conn, done)

	if err := writeEvent(conn, Event{Type: EventConnected, Count: badge.Count()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-events:
			if err := writeEvent(conn, e); err != nil {
				h.log.Debug(r.Context(), "websocket write failed, closing feed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop drains client frames so pongs and the close handshake are
// processed; it returns when the connection goes away.
func (h *EventsHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

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

func writeEvent(conn *websocket.Conn, e Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
