package handlers

import (
	"log"
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

	// Maximum message size allowed from peer. SDP offers fit comfortably.
	maxMessageSize = 64 * 1024

	// Outbound queue per connection. A full queue drops the event rather
	// than blocking sibling deliveries.
	sendBuffer = 256
)

// Hub tracks the live WebSocket connections keyed by participant id, so
// broadcasts can address registry membership snapshots.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Client is one WebSocket connection bound to one participant.
type Client struct {
	connID        string
	participantID string
	conn          *websocket.Conn
	send          chan Event
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.participantID] = c
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.participantID]; ok && cur == c {
		delete(h.clients, c.participantID)
	}
}

// sendTo queues an event for one participant. Fire-and-forget: unknown
// participants and full queues drop the event. The lock is held across the
// send so a disconnecting client cannot close its queue mid-delivery; the
// send itself never blocks.
func (h *Hub) sendTo(participantID string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[participantID]
	if !ok {
		return
	}
	select {
	case c.send <- evt:
	default:
		log.Printf("send queue full, dropping %s event: participantId=%s", evt.Type, participantID)
	}
}

// enqueue queues an event for this client, dropping it if the queue is full.
func (c *Client) enqueue(evt Event) {
	select {
	case c.send <- evt:
	default:
		log.Printf("send queue full, dropping %s event: participantId=%s", evt.Type, c.participantID)
	}
}

// writePump drains the client's send queue onto the connection and keeps the
// transport alive with periodic pings. The single writer goroutine per
// connection; all writes go through it.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				log.Printf("write error: participantId=%s err=%v", c.participantID, err)
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
