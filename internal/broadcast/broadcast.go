// Package broadcast publishes the per-tick broadcast record (spec.md
// §4.14 step 7) over WebSocket to operator-UI consumers, and optionally
// fans it out to a NATS subject for secondary consumers. Grounded on
// Valkyrie's LiveFeedStreamer register/broadcast/sendToClients pattern
// (internal/livefeed/streamer.go in the source tree).
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Pong/ping timings for detecting a dead peer, per gorilla/websocket's
// chat-example pattern: the peer must pong within pongWait of each ping,
// sent every pingPeriod (a margin under pongWait).
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Record is the compact per-tick snapshot published to consumers.
type Record struct {
	Phase        string             `json:"phase"`
	SubPhase     string             `json:"subPhase,omitempty"`
	Axes         map[string]float64 `json:"axes"`
	LastCommand  string             `json:"lastCommand,omitempty"`
	SafetyActive bool               `json:"safetyActive"`
	SafetyReason string             `json:"safetyReason,omitempty"`
	ATCPhase     string             `json:"atcPhase,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan Record
}

// Streamer fans out Records to connected WebSocket clients and,
// optionally, to a NATS subject.
type Streamer struct {
	mu      sync.RWMutex
	clients map[*client]bool
	logger  *logrus.Logger

	natsConn    *nats.Conn
	natsSubject string
}

// NewStreamer creates a broadcast streamer. natsConn may be nil, in
// which case NATS fan-out is disabled.
func NewStreamer(logger *logrus.Logger, natsConn *nats.Conn, natsSubject string) *Streamer {
	return &Streamer{
		clients:     make(map[*client]bool),
		logger:      logger,
		natsConn:    natsConn,
		natsSubject: natsSubject,
	}
}

// ServeHTTP lets a Streamer be mounted directly as an http.Handler.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.HandleWebSocket(w, r)
}

// HandleWebSocket upgrades an HTTP connection and registers it as a
// broadcast consumer.
func (s *Streamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithField("error", err).Error("failed to upgrade broadcast websocket")
		return
	}
	c := &client{conn: conn, send: make(chan Record, 16)}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Streamer) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.removeClient(c)
		c.conn.Close()
	}()

	for {
		select {
		case rec, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(rec); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains and discards client frames so gorilla/websocket
// processes control frames (ping/pong/close) from the peer; a missed
// pong past pongWait, or a peer-initiated close, ends the connection and
// unblocks writePump via the resulting read error.
func (s *Streamer) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Streamer) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
}

// Publish distributes rec to every connected WebSocket client (dropping
// it for a client whose buffer is full) and, if configured, publishes it
// to the NATS subject.
func (s *Streamer) Publish(rec Record) {
	s.mu.RLock()
	for c := range s.clients {
		select {
		case c.send <- rec:
		default:
		}
	}
	s.mu.RUnlock()

	if s.natsConn == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.natsConn.Publish(s.natsSubject, data); err != nil {
		s.logger.WithField("error", err).Debug("broadcast NATS publish failed")
	}
}

// ClientCount returns the number of currently connected WebSocket
// clients.
func (s *Streamer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
