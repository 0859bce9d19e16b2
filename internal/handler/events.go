package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/filipexyz/keygate/internal/events"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is delegated to the CORS layer.
		return true
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// EventsHandler serves the event history endpoint and the live WebSocket
// tail. Both read the JetStream event stream; a nil stream means events are
// disabled and both endpoints answer 503.
type EventsHandler struct {
	reader *events.Reader
	stream jetstream.Stream
}

func NewEventsHandler(stream jetstream.Stream) *EventsHandler {
	h := &EventsHandler{stream: stream}
	if stream != nil {
		h.reader = events.NewReader(stream)
	}
	return h
}

// List handles GET /api/v1/events. Query params: type, limit, from (RFC3339).
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "events disabled")
		return
	}

	opts := events.QueryOptions{Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		opts.Limit = limit
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		opts.From = from
	}

	stored, err := h.reader.Query(r.Context(), opts)
	if err != nil {
		slog.Error("query events", "error", err)
		writeError(w, http.StatusInternalServerError, "event query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": stored,
		"count":  len(stored),
	})
}

// Subscribe handles GET /ws: upgrades to WebSocket and tails new events as
// JSON frames. An optional type query param narrows the subscription.
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "events disabled")
		return
	}

	filterSubject := "keygate.events.>"
	if t := r.URL.Query().Get("type"); t != "" {
		filterSubject = "keygate.events." + t
	}

	// Ephemeral consumer per connection, new messages only. The inactive
	// threshold lets the server reap it after the socket dies.
	consumer, err := h.stream.CreateOrUpdateConsumer(r.Context(), jetstream.ConsumerConfig{
		FilterSubject:     filterSubject,
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		slog.Error("create tail consumer", "error", err)
		writeError(w, http.StatusInternalServerError, "subscription failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, 64)
	done := make(chan struct{})
	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		select {
		case send <- msg.Data():
		default:
			// Slow consumer: drop rather than stall the stream.
		}
	})
	if err != nil {
		slog.Error("consume events", "error", err)
		conn.Close()
		return
	}

	go writePump(conn, send, done)
	readPump(conn)
	cc.Stop()
	close(done)
}

// writePump forwards event frames and keeps the connection alive with pings.
func writePump(conn *ws.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(ws.CloseMessage, []byte{})
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection until the client goes away. Inbound frames
// carry no protocol; reading only services pongs and close.
func readPump(conn *ws.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
