// Package progress pushes subtitle job progress to websocket subscribers grouped by job id.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

// ErrHubClosed is returned by Publish after the hub stopped
var ErrHubClosed = errors.New("progress hub is closed")

// Notifier receives progress updates for a job
type Notifier interface {
	Publish(ctx context.Context, update model.SubtitleProgressUpdate) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, update model.SubtitleProgressUpdate) error

func (f NotifierFunc) Publish(ctx context.Context, update model.SubtitleProgressUpdate) error {
	return f(ctx, update)
}

// Discard drops every update
var Discard Notifier = NotifierFunc(func(context.Context, model.SubtitleProgressUpdate) error { return nil })

// Client is one subscriber in a job group
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	jobID string
}

// NewClient creates a subscriber for jobID; conn may be nil when the caller drains Messages itself
func NewClient(hub *Hub, conn *websocket.Conn, jobID string) *Client {
	return &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), jobID: jobID}
}

// Messages yields encoded updates; closed when the client leaves or is dropped
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub tracks job groups and fans updates out to them
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	broadcast  chan model.SubtitleProgressUpdate
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *slog.Logger
}

// NewHub creates a Hub; call Run to start it
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan model.SubtitleProgressUpdate),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes joins, leaves and publishes until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for jobID, clients := range h.rooms {
			for c := range clients {
				close(c.send)
			}
			delete(h.rooms, jobID)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.jobID] == nil {
				h.rooms[c.jobID] = make(map[*Client]struct{})
			}
			h.rooms[c.jobID][c] = struct{}{}
			size := len(h.rooms[c.jobID])
			h.mu.Unlock()
			h.logger.Debug("progress subscriber joined", "job_id", c.jobID, "subscribers", size)

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()
			h.logger.Debug("progress subscriber left", "job_id", c.jobID)

		case update := <-h.broadcast:
			payload, err := json.Marshal(update)
			if err != nil {
				h.logger.Warn("progress update encode failed", "job_id", update.JobID, "error", err)
				continue
			}
			h.mu.Lock()
			for c := range h.rooms[update.JobID] {
				select {
				case c.send <- payload:
				default:
					h.logger.Warn("dropping slow progress subscriber", "job_id", update.JobID)
					h.remove(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(c *Client) {
	clients, ok := h.rooms[c.jobID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.jobID)
	}
}

// Join adds c to its job group
func (h *Hub) Join(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Leave removes c from its job group
func (h *Hub) Leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends update to every subscriber of update.JobID
func (h *Hub) Publish(ctx context.Context, update model.SubtitleProgressUpdate) error {
	select {
	case h.broadcast <- update:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers returns the group size for jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[jobID])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades the request and subscribes the connection to jobID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, jobID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := NewClient(h, conn, jobID)
	if err := h.Join(c); err != nil {
		conn.Close()
		return err
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// readPump discards inbound messages and detects disconnects
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("progress subscriber read error", "job_id", c.jobID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
