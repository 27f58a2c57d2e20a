package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/models"
)

// Hub tracks which clients subscribe to which chat rooms and delivers
// broadcast events. All state is process-local.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[int64]map[*Client]struct{}
	clients map[*Client]map[int64]struct{}
	log     *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:   make(map[int64]map[*Client]struct{}),
		clients: make(map[*Client]map[int64]struct{}),
		log:     log,
	}
}

// Join subscribes the client to a chat room.
func (h *Hub) Join(chatID int64, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*Client]struct{})
	}
	h.rooms[chatID][client] = struct{}{}
	if _, ok := h.clients[client]; !ok {
		h.clients[client] = make(map[int64]struct{})
	}
	h.clients[client][chatID] = struct{}{}
}

// LeaveRoom unsubscribes the client from one room.
func (h *Hub) LeaveRoom(chatID int64, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(chatID, client)
}

// Unregister drops the client from every room it joined.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for chatID := range h.clients[client] {
		h.removeLocked(chatID, client)
	}
	delete(h.clients, client)
}

func (h *Hub) removeLocked(chatID int64, client *Client) {
	if set, ok := h.rooms[chatID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if set, ok := h.clients[client]; ok {
		delete(set, chatID)
	}
}

// Broadcast delivers the event to every subscriber of the chat room.
func (h *Hub) Broadcast(chatID int64, event models.ChatEvent) {
	h.broadcast(chatID, 0, event)
}

// BroadcastExcept delivers the event to every subscriber except the given
// user's connections. Used for typing indicators.
func (h *Hub) BroadcastExcept(chatID, exceptUserID int64, event models.ChatEvent) {
	h.broadcast(chatID, exceptUserID, event)
}

func (h *Hub) broadcast(chatID, exceptUserID int64, event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Errorw("event marshal failed", "event", event.Event, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[chatID]))
	for client := range h.rooms[chatID] {
		if exceptUserID != 0 && client.userID == exceptUserID {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.enqueue(payload)
	}
}

// RoomSize returns the number of subscribers in a room.
func (h *Hub) RoomSize(chatID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}
