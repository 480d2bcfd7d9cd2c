// internal/events/dispatcher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"admission-workers/internal/common/logger"
	"admission-workers/internal/common/metrics"

	"github.com/xeipuuv/gojsonschema"
)

// HandlerFunc processes one validated event payload. A returned error is
// logged and swallowed; it never crosses the dispatch boundary.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

type registration struct {
	schema   *gojsonschema.Schema
	handlers []HandlerFunc
}

// Dispatcher routes events to typed handlers keyed by event name. Dispatch is
// synchronous and fire-and-forget: malformed payloads and handler failures
// are logged and dropped.
type Dispatcher struct {
	logger        logger.Logger
	registrations map[string]*registration
}

func NewDispatcher(log logger.Logger) *Dispatcher {
	return &Dispatcher{
		logger:        log.WithFields(map[string]interface{}{"component": "event-dispatcher"}),
		registrations: make(map[string]*registration),
	}
}

// Register attaches a handler to an event name. The first registration for a
// name must supply the payload schema; later ones may pass an empty string.
func (d *Dispatcher) Register(name, schemaJSON string, handler HandlerFunc) error {
	reg, exists := d.registrations[name]
	if !exists {
		if strings.TrimSpace(schemaJSON) == "" {
			return fmt.Errorf("event %q: first registration requires a payload schema", name)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
		if err != nil {
			return fmt.Errorf("event %q: compile schema: %w", name, err)
		}
		reg = &registration{schema: schema}
		d.registrations[name] = reg
	}
	reg.handlers = append(reg.handlers, handler)
	return nil
}

// Publish marshals the payload and dispatches it to every registered handler.
// It never returns an error and never panics across the event boundary.
func (d *Dispatcher) Publish(ctx context.Context, name string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.drop(name, "marshal", err.Error())
		return
	}
	d.Dispatch(ctx, name, raw)
}

// Dispatch validates a raw payload against the event's schema and invokes
// handlers synchronously.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload json.RawMessage) {
	reg, exists := d.registrations[name]
	if !exists {
		d.drop(name, "unregistered", "no handler registered for event")
		return
	}

	result, err := reg.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		d.drop(name, "invalid_payload", err.Error())
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		d.drop(name, "invalid_payload", strings.Join(details, "; "))
		return
	}

	for _, handler := range reg.handlers {
		d.invoke(ctx, name, handler, payload)
	}
}

func (d *Dispatcher) invoke(ctx context.Context, name string, handler HandlerFunc, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.drop(name, "handler_panic", fmt.Sprintf("%v", r))
		}
	}()

	if err := handler(ctx, payload); err != nil {
		d.logger.Error("event handler failed", map[string]interface{}{
			"event": name,
			"error": err.Error(),
		})
		metrics.EventsDropped.WithLabelValues(name, "handler_error").Inc()
	}
}

func (d *Dispatcher) drop(name, reason, details string) {
	d.logger.Warn("event dropped", map[string]interface{}{
		"event":   name,
		"reason":  reason,
		"details": details,
	})
	metrics.EventsDropped.WithLabelValues(name, reason).Inc()
}
