package websocket

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/machine-telemetry-qa-platform/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		// TODO: Restrict in production
		return true
	},
}

// TokenValidator validates access tokens presented during the upgrade handshake.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Handler handles WebSocket upgrade requests
type Handler struct {
	hub    *Hub
	tokens TokenValidator
}

// NewHandler creates a new WebSocket handler. If tokens is nil the handler
// accepts unauthenticated connections.
func NewHandler(hub *Hub, tokens TokenValidator) *Handler {
	return &Handler{hub: hub, tokens: tokens}
}

// ServeHTTP handles the HTTP request and upgrades to WebSocket
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WebSocket requests, so the token
	// travels as a query parameter
	userID := "anonymous"
	if h.tokens != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		claims, err := h.tokens.ValidateAccessToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID = claims.UserID
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket Handler] Failed to upgrade connection: %v", err)
		return
	}

	// Create new client
	client := NewClient(h.hub, conn, userID)

	// Register client with hub
	h.hub.register <- client

	// Start client goroutines
	client.Run()

	log.Printf("[WebSocket Handler] Client %s connected (user: %s)", client.id, userID)
}

// HandleBroadcast handles internal broadcast requests from the ingest worker
// and the question-answering API
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg struct {
		Channel string                 `json:"channel"`
		Data    map[string]interface{} `json:"data"`
	}

	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if msg.Channel == "" {
		http.Error(w, "Channel is required", http.StatusBadRequest)
		return
	}

	// Broadcast to channel
	h.hub.BroadcastToChannel(msg.Channel, msg.Data)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
