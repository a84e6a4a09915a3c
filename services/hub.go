package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizmaster/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Hub fans notification events out to connected websocket clients.
// Reminder events go to one user's connections; leaderboard refresh
// events go to everyone.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	logger     *zap.Logger
}

type Client struct {
	hub    *Hub
	socket *websocket.Conn
	send   chan []byte
	userID uint
}

type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var _ ReminderNotifier = (*Hub)(nil)

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug("notification client connected",
				zap.Uint("user_id", client.userID),
				zap.Int("total_clients", h.clientCount()),
			)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// NotifyReminder pushes a reminder event to the user's connections.
func (h *Hub) NotifyReminder(userID uint, reminder *models.Reminder) {
	data, err := json.Marshal(Event{Type: "reminder", Payload: reminder})
	if err != nil {
		h.logger.Error("marshalling reminder event", zap.Error(err))
		return
	}

	h.mutex.Lock()
	for client := range h.clients {
		if client.userID != userID {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mutex.Unlock()
}

// BroadcastLeaderboardUpdate tells every connected client to refresh
// its leaderboard view for the given quiz.
func (h *Hub) BroadcastLeaderboardUpdate(quizID uint) {
	data, err := json.Marshal(Event{Type: "leaderboard", Payload: map[string]uint{"quiz_id": quizID}})
	if err != nil {
		h.logger.Error("marshalling leaderboard event", zap.Error(err))
		return
	}
	h.broadcast <- data
}

// RegisterClient attaches a websocket connection for a user and starts
// its pumps. The connection is closed when either pump exits.
func (h *Hub) RegisterClient(conn *websocket.Conn, userID uint) {
	client := &Client{
		hub:    h,
		socket: conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump drains inbound frames so pings are answered; the server
// never acts on client messages.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()
	c.socket.SetReadLimit(512)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
