package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventJobStarted      = "job_started"
	EventJobSucceeded    = "job_succeeded"
	EventJobFailed       = "job_failed"
	EventAuthExpired     = "auth_expired"
	EventOrderReconciled = "order_reconciled"
	EventReconcileFailed = "reconcile_failed"
)

// JobEventPayload is the minimal job snapshot for event consumers.
type JobEventPayload struct {
	JobID        string `json:"job_id"`
	SupplierCode string `json:"supplier_code"`
	JobType      string `json:"job_type"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	Error        string `json:"error,omitempty"`
}

// ReconcilePayload describes one reconciliation outcome.
type ReconcilePayload struct {
	SupplierCode    string `json:"supplier_code"`
	OrderKey        string `json:"order_key"`
	SupplierOrderID string `json:"supplier_order_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(&Event{Type: eventType, Payload: data})
	return nil
}
