package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Initial reconnection delay.
	initialReconnectDelay = 1 * time.Second

	// Maximum reconnection delay.
	maxReconnectDelay = 30 * time.Second
)

// Event is one engine event read from the stream.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Slot uint64          `json:"slot"`
	Data json.RawMessage `json:"data"`
}

// StoredEvent is an event with its stream metadata.
type StoredEvent struct {
	Seq       uint64    `json:"seq"`
	Event     *Event    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// ListEventsOptions filters the event history query.
type ListEventsOptions struct {
	Type  string
	From  time.Time
	Limit int
}

// ListEvents fetches historical events, oldest first.
func (c *Client) ListEvents(opts ListEventsOptions) ([]StoredEvent, error) {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events []StoredEvent `json:"events"`
	}
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Subscription is an active event tail with auto-reconnection.
type Subscription struct {
	client    *Client
	eventType string
	conn      *websocket.Conn
	connMu    sync.RWMutex
	events    chan *Event
	errors    chan error
	done      chan struct{}
	closed    bool
	closeMu   sync.Mutex
}

// Subscribe opens a WebSocket tail of new events. eventType narrows to one
// event type; empty means all. The subscription reconnects on connection
// loss, reporting attempts through Errors.
func (c *Client) Subscribe(ctx context.Context, eventType string) (*Subscription, error) {
	sub := &Subscription{
		client:    c,
		eventType: eventType,
		events:    make(chan *Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	if err := sub.connect(ctx); err != nil {
		return nil, err
	}

	go sub.readPump()
	go sub.writePump()

	return sub, nil
}

func (s *Subscription) connect(ctx context.Context) error {
	wsURL := strings.Replace(s.client.server, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/ws"
	if s.eventType != "" {
		wsURL += "?type=" + url.QueryEscape(s.eventType)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	return nil
}

func (s *Subscription) reconnect() {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return
	}
	s.closeMu.Unlock()

	delay := initialReconnectDelay
	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.connect(ctx)
		cancel()

		if err == nil {
			go s.readPump()
			go s.writePump()
			return
		}

		select {
		case s.errors <- err:
		default:
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *Subscription) readPump() {
	defer func() {
		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn == nil {
			return
		}

		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}

			s.closeMu.Lock()
			closed := s.closed
			s.closeMu.Unlock()
			if !closed {
				select {
				case s.errors <- err:
				default:
				}
				go s.reconnect()
			}
			return
		}

		select {
		case s.events <- &event:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()
			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				// Connection lost, readPump handles reconnection.
				return
			}
		}
	}
}

// Events returns the channel of received events.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Errors returns the channel of errors. Errors are non-fatal; the
// subscription keeps trying to reconnect.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close closes the subscription.
func (s *Subscription) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	close(s.done)

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports whether the subscription currently holds a connection.
func (s *Subscription) IsConnected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn != nil
}
