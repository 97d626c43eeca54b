package messaging

import (
	"sync"

	"waste-report-service/internal/model"

	"go.uber.org/zap"
)

const clientBuffer = 10

type SSEClient struct {
	Channel chan model.ReportEvent
}

// SSEHub fans report events out to connected dashboard streams. A client
// whose buffer is full misses the event instead of stalling the hub.
type SSEHub struct {
	clients    map[*SSEClient]struct{}
	register   chan *SSEClient
	unregister chan *SSEClient
	broadcast  chan model.ReportEvent
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewSSEHub(logger *zap.Logger) *SSEHub {
	return &SSEHub{
		clients:    make(map[*SSEClient]struct{}),
		register:   make(chan *SSEClient),
		unregister: make(chan *SSEClient),
		broadcast:  make(chan model.ReportEvent, 100),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *SSEHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.Channel)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("sse client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Channel)
			}
			h.mu.Unlock()
			h.logger.Debug("sse client unregistered")

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Channel <- event:
				default:
					// channel full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *SSEHub) RegisterClient() *SSEClient {
	client := &SSEClient{Channel: make(chan model.ReportEvent, clientBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Channel)
	}
	return client
}

func (h *SSEHub) UnregisterClient(client *SSEClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *SSEHub) Broadcast(event model.ReportEvent) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Name identifies the hub in dispatcher logs.
func (h *SSEHub) Name() string {
	return "sse"
}

func (h *SSEHub) Deliver(event model.ReportEvent) error {
	h.Broadcast(event)
	return nil
}

func (h *SSEHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
