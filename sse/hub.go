// Package sse streams server-sent events to subscribers of a topic. The
// voice note API uses one topic per recording session.
package sse

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kbukum/hvacform/logger"
)

// Event names shared by every stream.
const (
	EventConnected = "connected"
	EventClosed    = "closed"
)

const clientBuffer = 64

// Message is one event addressed to a topic. Topic may be a glob pattern.
type Message struct {
	Topic string
	Event string
	Data  []byte
	// Close ends the matching streams after Data is delivered.
	Close bool
}

// Client is one connected stream.
type Client struct {
	id     string
	topic  string
	events chan Message
}

// NewClient creates a client subscribed to topic.
func NewClient(id, topic string) *Client {
	return &Client{id: id, topic: topic, events: make(chan Message, clientBuffer)}
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Topic returns the subscribed topic.
func (c *Client) Topic() string { return c.topic }

// Events delivers messages until the client is unregistered.
func (c *Client) Events() <-chan Message { return c.events }

// Send queues m. It returns false when the client is too slow to keep up.
func (c *Client) Send(m Message) bool {
	select {
	case c.events <- m:
		return true
	default:
		logger.Warn("sse client buffer full, dropping event", map[string]interface{}{
			"client_id": c.id,
			"event":     m.Event,
		})
		return false
	}
}

type op struct {
	client *Client
	add    bool
	ack    chan struct{}
}

// Hub routes published messages to subscribed clients.
type Hub struct {
	ops       chan op
	broadcast chan Message
	done      chan struct{}
	stopOnce  sync.Once

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a Hub. Run must be called for it to deliver anything.
func NewHub() *Hub {
	return &Hub{
		ops:       make(chan op),
		broadcast: make(chan Message, 256),
		done:      make(chan struct{}),
		clients:   make(map[string]*Client),
	}
}

// Run is the hub loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case o := <-h.ops:
			h.apply(o)
		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register subscribes c. It returns false if the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	return h.send(op{client: c, add: true, ack: make(chan struct{})})
}

// Unregister removes c and closes its channel.
func (h *Hub) Unregister(c *Client) {
	h.send(op{client: c, ack: make(chan struct{})})
}

func (h *Hub) send(o op) bool {
	select {
	case h.ops <- o:
		<-o.ack
		return true
	case <-h.done:
		return false
	}
}

// Publish sends payload as JSON to every client of topic.
func (h *Hub) Publish(topic, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode %s event: %w", event, err)
	}
	h.enqueue(Message{Topic: topic, Event: event, Data: data})
	return nil
}

// Close sends a final closed event to the clients of topic and ends their
// streams.
func (h *Hub) Close(topic string) {
	h.enqueue(Message{Topic: topic, Event: EventClosed, Data: []byte("{}"), Close: true})
}

func (h *Hub) enqueue(m Message) {
	select {
	case h.broadcast <- m:
	case <-h.done:
	}
}

func (h *Hub) apply(o op) {
	defer close(o.ack)
	h.mu.Lock()
	defer h.mu.Unlock()
	if o.add {
		h.clients[o.client.id] = o.client
		return
	}
	if _, ok := h.clients[o.client.id]; ok {
		delete(h.clients, o.client.id)
		close(o.client.events)
	}
}

func (h *Hub) deliver(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(m.Topic, c.topic)
		if err != nil {
			logger.Error("sse topic pattern invalid", map[string]interface{}{"topic": m.Topic, "error": err.Error()})
			return
		}
		if !matched {
			continue
		}
		c.Send(m)
		if m.Close {
			delete(h.clients, id)
			close(c.events)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
