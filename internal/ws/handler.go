package ws

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jigardave8/icitizen-market/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections.
type Handler struct {
	manager *Manager
	log     *logger.Logger
}

// NewHandler creates a new WebSocket handler.
func NewHandler(manager *Manager, log *logger.Logger) *Handler {
	return &Handler{manager: manager, log: log}
}

// SetupRoutes configures WebSocket routes.
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws/listings/{id}", h.HandleWebSocket)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/stats/listings/{id}", h.GetStats).Methods("GET")

	return router
}

// HandleWebSocket upgrades the HTTP connection and subscribes the client
// to one listing's event feed.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["id"]
	if listingID == "" {
		http.Error(w, "Listing ID is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		ID:        uuid.New().String(),
		ListingID: listingID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
	}

	h.manager.RegisterClient(client)
	client.StartReadPump(h.manager.unregister)

	welcome := fmt.Sprintf(`{"type":"connected","listingId":"%s","clientId":"%s"}`, listingID, client.ID)
	client.Send <- []byte(welcome)
}

// HealthCheck returns service health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"broadcast-server"}`)
}

// GetStats returns subscriber statistics for a listing.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["id"]
	count := h.manager.SubscriberCount(listingID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"listingId":"%s","subscribers":%d}`, listingID, count)
}
