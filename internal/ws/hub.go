package ws

import (
	"encoding/json"
	"sync"
	"time"

	"go-pos-ledger/internal/event"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Hub fans live events out to every connected dashboard.
type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	done       chan struct{}
	mutex      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			h.mutex.Unlock()
			zap.L().Debug("ws client connected", zap.Int("clients", h.ClientCount()))

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()

		case <-h.done:
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

// Message is the JSON frame pushed to clients.
type Message struct {
	Type     string                 `json:"type"`
	Action   string                 `json:"action"`
	Entity   string                 `json:"entity"`
	EntityID string                 `json:"entity_id,omitempty"`
	Message  string                 `json:"message"`
	Data     map[string]interface{} `json:"data,omitempty"`
	User     *MessageUser           `json:"user,omitempty"`
	At       time.Time              `json:"at"`
}

type MessageUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewMessage renders an event as a client frame.
func NewMessage(e event.Event) Message {
	msg := Message{
		Type:     e.Topic,
		Action:   e.Action,
		Entity:   e.Entity,
		EntityID: e.EntityID,
		Message:  e.Description,
		Data:     e.Data,
		At:       e.At,
	}
	if e.Actor.Name != "" {
		msg.User = &MessageUser{
			ID:    e.Actor.ID.String(),
			Name:  e.Actor.Name,
			Email: e.Actor.Email,
		}
	}
	return msg
}

// Forward queues e for broadcast, dropping it when the hub is backed up.
func (h *Hub) Forward(e event.Event) {
	payload, err := json.Marshal(NewMessage(e))
	if err != nil {
		zap.L().Warn("ws encode failed", zap.String("topic", e.Topic), zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- payload:
	default:
		zap.L().Warn("ws broadcast queue full, dropping event", zap.String("topic", e.Topic))
	}
}

// Attach forwards the topics dashboards care about.
func (h *Hub) Attach(bus *event.Bus) error {
	return bus.Subscribe(h.Forward,
		event.TopicTransactionCreated,
		event.TopicTransactionCancelled,
		event.TopicStockAdjusted,
		event.TopicStockLow,
		event.TopicProductChanged,
	)
}
