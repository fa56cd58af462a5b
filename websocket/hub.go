package websocket

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/imprevi/clipgen/types"
)

// Hub interface defines the methods for managing WebSocket connections.
type Hub interface {
	Run()
	BroadcastProgress(jobID, msgType, status, phase, message string, progress int)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
}

// hub maintains the set of active clients and broadcasts job progress to
// them, keyed by job ID.
type hub struct {
	clients map[string]map[*Client]bool

	broadcast  chan types.ProgressMessage
	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop.
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.jobID] == nil {
				h.clients[client.jobID] = make(map[*Client]bool)
			}
			h.clients[client.jobID][client] = true
			h.mu.Unlock()
			log.Debug().Str("job_id", client.jobID).Msg("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.jobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.clients, client.jobID)
					}
				}
			}
			h.mu.Unlock()
			log.Debug().Str("job_id", client.jobID).Msg("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			h.deliver(message, message.JobID)
			h.deliver(message, AllJobs)
			h.mu.RUnlock()
		}
	}
}

// deliver fans a message out to the clients subscribed under key. Callers
// hold the read lock; slow clients are dropped rather than blocked on.
func (h *hub) deliver(message types.ProgressMessage, key string) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	for client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// BroadcastProgress sends a progress message to all clients of a specific
// job. Never blocks the pipeline: if the hub is saturated the message is
// dropped, and the pull-based status API remains authoritative.
func (h *hub) BroadcastProgress(jobID, msgType, status, phase, message string, progress int) {
	msg := types.ProgressMessage{
		JobID:     jobID,
		Type:      msgType,
		Status:    status,
		Phase:     phase,
		Progress:  progress,
		Message:   message,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		log.Debug().Str("job_id", jobID).Msg("websocket broadcast channel full, dropping message")
	}
}

// RegisterClient registers a new client with the hub.
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub.
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}
