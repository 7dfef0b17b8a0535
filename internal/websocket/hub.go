package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hub fans live platform events out to connected dashboard clients. Clients
// subscribe to named channels: "answers" for freshly answered questions,
// "collectors" for collector status, "device:<hostname>" for one machine's
// snapshots, "dashboard" for everything a dashboard overview needs.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages awaiting fan-out
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Channel name -> subscribed clients
	subscriptions map[string]map[*Client]bool

	mu sync.RWMutex
}

// Message is the wire envelope for every hub event.
type Message struct {
	SchemaVersion string                 `json:"schema_version"`
	Type          string                 `json:"type"`
	Channel       string                 `json:"channel,omitempty"`
	EventID       string                 `json:"event_id,omitempty"`
	Timestamp     string                 `json:"timestamp"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Error         *ErrorDetails          `json:"error,omitempty"`
}

// ErrorDetails carries a structured error inside a Message.
type ErrorDetails struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan *Message, 256),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run owns all client registration and fan-out until the context is
// cancelled. Only Run touches the clients map with the write lock held, so
// the broadcast path never blocks on a slow client.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WebSocket Hub] Client registered: %s", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for channel := range h.subscriptions {
					delete(h.subscriptions[channel], client)
				}
			}
			h.mu.Unlock()
			log.Printf("[WebSocket Hub] Client unregistered: %s", client.id)

		case message := <-h.broadcast:
			h.broadcastToSubscribers(message)

		case <-ticker.C:
			// Application-level ping keeps intermediaries from timing out
			// idle dashboard connections
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- &Message{
					SchemaVersion: "1.0",
					Type:          "ping",
					Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
				}:
				default:
					// Client send buffer full, skip ping
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			log.Println("[WebSocket Hub] Shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// broadcastToSubscribers delivers a message to the channel's subscribers, or
// to every client when the message carries no channel. Slow clients are
// skipped rather than awaited.
func (h *Hub) broadcastToSubscribers(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if message.Channel == "" {
		for client := range h.clients {
			select {
			case client.send <- message:
			default:
				log.Printf("[WebSocket Hub] Client %s send buffer full, skipping message", client.id)
			}
		}
		return
	}

	subscribers, ok := h.subscriptions[message.Channel]
	if !ok {
		return
	}

	for client := range subscribers {
		select {
		case client.send <- message:
		default:
			log.Printf("[WebSocket Hub] Client %s send buffer full, skipping message", client.id)
		}
	}
}

// Subscribe adds a client to the named channels.
func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		if h.subscriptions[channel] == nil {
			h.subscriptions[channel] = make(map[*Client]bool)
		}
		h.subscriptions[channel][client] = true
	}

	log.Printf("[WebSocket Hub] Client %s subscribed to: %v", client.id, channels)
}

// Unsubscribe removes a client from the named channels.
func (h *Hub) Unsubscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		if subscribers, ok := h.subscriptions[channel]; ok {
			delete(subscribers, client)
		}
	}

	log.Printf("[WebSocket Hub] Client %s unsubscribed from: %v", client.id, channels)
}

// BroadcastToChannel queues an update for a channel's subscribers. A full
// broadcast buffer drops the message; live updates are best effort and the
// store remains the source of truth.
func (h *Hub) BroadcastToChannel(channel string, data map[string]interface{}) {
	message := &Message{
		SchemaVersion: "1.0",
		Type:          "update",
		Channel:       channel,
		EventID:       uuid.New().String(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Data:          data,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WebSocket Hub] Broadcast buffer full, dropping message for channel: %s", channel)
	}
}

// BroadcastError queues a structured error for a channel's subscribers.
func (h *Hub) BroadcastError(channel string, errDetails *ErrorDetails) {
	message := &Message{
		SchemaVersion: "1.0",
		Type:          "error",
		Channel:       channel,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Error:         errDetails,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("[WebSocket Hub] Broadcast buffer full, dropping error message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetSubscriptionCount returns the total channel membership count.
func (h *Hub) GetSubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, subscribers := range h.subscriptions {
		count += len(subscribers)
	}
	return count
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
