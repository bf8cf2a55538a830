package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"camtrap/internal/config"
	"camtrap/internal/logger"
	"camtrap/internal/models"

	"github.com/gorilla/websocket"
)

// ProgressEvent is the channel name used for progress messages.
const ProgressEvent = "progress"

// Message is the envelope sent to every client.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// HubService fans messages out to connected websocket clients. Publishing never
// blocks: when the queue is full the message is dropped.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	last       []byte
	dropped    int
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(config *config.Config, logger *logger.Logger) *HubService {
	queue := config.ProgressQueueSize
	if queue <= 0 {
		queue = 1
	}
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, queue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// Run delivers messages until ctx is cancelled, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			last := h.last
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", h.GetClientCount())

			if last != nil {
				h.send(client, last)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			for client := range h.GetClients() {
				h.send(client, message)
			}
		}
	}
}

func (h *HubService) send(client *websocket.Conn, message []byte) {
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending message: %v", err)
		h.mutex.Lock()
		delete(h.clients, client)
		h.mutex.Unlock()
		client.Close()
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	h.register <- client
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.unregister <- client
}

// Broadcast queues a raw message for all clients, dropping it when the queue is full.
func (h *HubService) Broadcast(message []byte) bool {
	h.mutex.Lock()
	h.last = message
	h.mutex.Unlock()

	select {
	case h.broadcast <- message:
		return true
	default:
		h.mutex.Lock()
		h.dropped++
		h.mutex.Unlock()
		return false
	}
}

// Publish sends a progress snapshot on the progress channel.
func (h *HubService) Publish(snapshot models.ProgressSnapshot) {
	message, err := json.Marshal(Message{Event: ProgressEvent, Payload: snapshot})
	if err != nil {
		h.logger.Error("Error encoding progress: %v", err)
		return
	}
	if !h.Broadcast(message) {
		h.logger.Debug("Progress queue full, dropped snapshot %d/%d", snapshot.Current, snapshot.Total)
	}
}

// Queued returns how many messages wait for delivery.
func (h *HubService) Queued() int {
	return len(h.broadcast)
}

// Dropped returns how many messages were dropped because the queue was full.
func (h *HubService) Dropped() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.dropped
}

func (h *HubService) GetClients() map[*websocket.Conn]bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make(map[*websocket.Conn]bool)
	for k, v := range h.clients {
		clients[k] = v
	}
	return clients
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
