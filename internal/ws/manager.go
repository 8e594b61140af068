package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jigardave8/icitizen-market/internal/logger"
)

// Manager manages all WebSocket connections, grouped by the listing each
// client is watching.
type Manager struct {
	// listingID -> set of clients watching that listing
	subscribers sync.Map // map[string]*sync.Map

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	log *logger.Logger
}

// Client represents a WebSocket client connection.
type Client struct {
	ID        string
	ListingID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// BroadcastMessage is a payload for every client watching one listing.
type BroadcastMessage struct {
	ListingID string
	Payload   []byte
}

// NewManager creates a new WebSocket manager.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		log:        log,
	}
}

// Run starts the manager's main loop. Run in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case message := <-m.broadcast:
			m.broadcastToListing(message.ListingID, message.Payload)
		}
	}
}

// RegisterClient adds a client to the manager.
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client from the manager.
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast sends a message to all clients watching a listing.
func (m *Manager) Broadcast(listingID string, payload []byte) {
	m.broadcast <- &BroadcastMessage{
		ListingID: listingID,
		Payload:   payload,
	}
}

func (m *Manager) registerClient(client *Client) {
	subscribers, _ := m.subscribers.LoadOrStore(client.ListingID, &sync.Map{})
	subscriberMap := subscribers.(*sync.Map)
	subscriberMap.Store(client, true)

	m.log.Info("client %s subscribed to listing %s", client.ID, client.ListingID)

	if client.Conn != nil {
		go client.writePump()
	}
}

func (m *Manager) unregisterClient(client *Client) {
	if subscribers, ok := m.subscribers.Load(client.ListingID); ok {
		subscriberMap := subscribers.(*sync.Map)
		if _, present := subscriberMap.LoadAndDelete(client); !present {
			return
		}
	}

	close(client.Send)
	if client.Conn != nil {
		client.Conn.Close()
	}

	m.log.Info("client %s unsubscribed from listing %s", client.ID, client.ListingID)
}

func (m *Manager) broadcastToListing(listingID string, payload []byte) {
	subscribers, ok := m.subscribers.Load(listingID)
	if !ok {
		return
	}
	subscriberMap := subscribers.(*sync.Map)

	subscriberMap.Range(func(key, _ interface{}) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
		default:
			// Slow client; disconnect so it cannot block the others.
			m.unregisterClient(client)
		}
		return true
	})
}

// SubscriberCount returns the number of clients watching a listing.
func (m *Manager) SubscriberCount(listingID string) int {
	if subscribers, ok := m.subscribers.Load(listingID); ok {
		subscriberMap := subscribers.(*sync.Map)
		count := 0
		subscriberMap.Range(func(_, _ interface{}) bool {
			count++
			return true
		})
		return count
	}
	return 0
}

// writePump pumps messages from the Send channel to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Ping to keep the connection alive.
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and disconnects are noticed.
func (c *Client) readPump(unregister chan *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			break
		}
	}
}

// StartReadPump starts the read pump for this client.
func (c *Client) StartReadPump(unregister chan *Client) {
	go c.readPump(unregister)
}
