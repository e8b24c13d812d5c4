// stream/hub.go
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quicktime/lvntrader/market"
	"github.com/quicktime/lvntrader/metrics"
)

const (
	clientQueueSize = 64
	writeWait       = 10 * time.Second
)

// Message is one broadcast frame pushed to dashboard clients.
type Message struct {
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Direction string    `json:"direction,omitempty"`
	Price     float64   `json:"price,omitempty"`
	Stop      float64   `json:"stop,omitempty"`
	Target    float64   `json:"target,omitempty"`
	PnLPoints float64   `json:"pnl_points,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcast messages out to connected websocket clients.
// Each client has a bounded queue; a client that cannot keep up is
// dropped rather than stalling the trading loop.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	filter     *market.FilterConfig
	log        zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		log:        log,
	}
}

// SetFilter lets dashboard clients adjust the min-size trade filter.
// Call before Run; the pointer is read from client goroutines.
func (h *Hub) SetFilter(f *market.FilterConfig) { h.filter = f }

// controlMessage is an inbound client frame.
type controlMessage struct {
	Action  string `json:"action"`
	MinSize uint64 `json:"min_size"`
}

// Run owns the client set. Call it once in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			metrics.WSClients.Set(float64(len(clients)))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				metrics.WSClients.Set(float64(len(clients)))
			}
		case msg := <-h.broadcast:
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					delete(clients, c)
					close(c.send)
					metrics.WSDropped.Inc()
					metrics.WSClients.Set(float64(len(clients)))
					h.log.Warn().Msg("dropping slow websocket client")
				}
			}
		}
	}
}

// Broadcast queues msg for every connected client. Never blocks; if
// the hub itself is backed up the frame is dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal broadcast")
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard is served from anywhere on the local network.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket client connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientQueueSize)}
	h.register <- c

	go c.writeLoop()
	go c.readLoop(h)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, nil)
}

// readLoop handles control frames and detects disconnects.
func (c *client) readLoop(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ctl controlMessage
		if err := json.Unmarshal(data, &ctl); err != nil {
			continue
		}
		if ctl.Action == "set_min_size" && h.filter != nil {
			h.filter.SetMinSize(ctl.MinSize)
			h.log.Info().Uint64("min_size", ctl.MinSize).Msg("trade filter updated by client")
		}
	}
}
