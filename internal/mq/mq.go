package mq

import (
	"context"
	"encoding/json"

	"auction-server/internal/events"
	"auction-server/utils"
)

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Forwarder republishes bus events to a broker queue as JSON. Publish
// failures are logged and dropped; the broker is a best-effort observer.
type Forwarder struct {
	backend Backend
	queue   string
}

func NewForwarder(backend Backend, queue string) *Forwarder {
	return &Forwarder{backend: backend, queue: queue}
}

// Attach subscribes the forwarder to every event on bus.
func (f *Forwarder) Attach(bus *events.Bus) {
	bus.SubscribeAll(f.Handle)
}

// Handle is a bus Handler.
func (f *Forwarder) Handle(ctx context.Context, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		utils.Warn("Failed to encode event for broker", map[string]any{
			"event": event.Type(),
			"error": err.Error(),
		})
		return
	}

	id, err := f.backend.Publish(ctx, f.queue, data, map[string]string{"type": string(event.Type())})
	if err != nil {
		utils.Warn("Failed to publish event", map[string]any{
			"event": event.Type(),
			"queue": f.queue,
			"error": err.Error(),
		})
		return
	}
	utils.Debug("Published event", map[string]any{"event": event.Type(), "message_id": id})
}
