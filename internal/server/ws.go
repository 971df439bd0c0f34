package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comigor/evo-go/internal/logger"
	"github.com/comigor/evo-go/internal/session"
)

const (
	eventBuffer  = 32
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams controller events to a websocket client. Events are
// dropped for clients that fall behind.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan session.Event, eventBuffer)
	unsubscribe := h.ctrl.Subscribe(func(ev session.Event) {
		select {
		case events <- ev:
		default:
			logger.L.Debug("dropping event for slow websocket client", "type", ev.Type)
		}
	})
	defer unsubscribe()

	// the read loop only detects client disconnects
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// initial snapshot so clients need not poll
	snapshot := session.Event{Type: session.EventConversation, State: h.ctrl.State(), Turns: len(h.ctrl.Turns())}
	if err := writeEvent(conn, snapshot); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				logger.L.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev session.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(ev)
}
