package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one project lifecycle notification pushed to subscribers.
type Event struct {
	ProjectID uuid.UUID   `json:"projectId"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types broadcast by the publication and rollback paths.
const (
	TypePublished         = "version.published"
	TypeUnpublished       = "version.unpublished"
	TypeRollbackStarted   = "rollback.started"
	TypeRollbackSucceeded = "rollback.succeeded"
	TypeRollbackFailed    = "rollback.failed"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// subscriberQueueSize bounds the per-subscriber backlog. A subscriber
// that falls further behind loses events rather than stalling the hub.
const subscriberQueueSize = 16

// Hub manages stream subscriptions by project ID. Delivery to each
// subscriber runs on its own goroutine behind a bounded queue, so a
// slow or dead connection never blocks Publish callers.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]chan []byte
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
}

type message struct {
	projectID string
	payload   []byte
}

type subscription struct {
	projectID string
	client    Subscriber
}

func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]chan []byte),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 64),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.projectID]; !ok {
				h.clients[sub.projectID] = make(map[Subscriber]chan []byte)
			}
			queue := make(chan []byte, subscriberQueueSize)
			h.clients[sub.projectID][sub.client] = queue
			h.mu.Unlock()
			go pump(sub.client, queue)
		case sub := <-h.unreg:
			h.mu.Lock()
			if clients, ok := h.clients[sub.projectID]; ok {
				if queue, ok := clients[sub.client]; ok {
					close(queue)
					delete(clients, sub.client)
				}
				if len(clients) == 0 {
					delete(h.clients, sub.projectID)
				}
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, queue := range h.clients[msg.projectID] {
				select {
				case queue <- msg.payload:
				default:
					// Subscriber backlog full; drop for this one.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// pump drains one subscriber's queue. A failed send closes the
// connection; the handler's read loop notices and unsubscribes.
func pump(client Subscriber, queue chan []byte) {
	for payload := range queue {
		if err := client.Send(payload); err != nil {
			client.Close()
			return
		}
	}
}

func (h *Hub) Subscribe(projectID string, client Subscriber) {
	h.register <- subscription{projectID: projectID, client: client}
}

func (h *Hub) Unsubscribe(projectID string, client Subscriber) {
	h.unreg <- subscription{projectID: projectID, client: client}
}

// Publish broadcasts an event to all subscribers of its project. Encoding
// failures drop the event; the hub never blocks publication paths.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.broadcast <- message{projectID: event.ProjectID.String(), payload: payload}
}
