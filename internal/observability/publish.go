package observability

import "context"

// Publisher is the slice of the broker publisher this package needs. The
// concrete implementation lives in internal/rabbitmq; main wires it in at
// startup so transport code can emit lifecycle events without carrying a
// publisher around.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide event publisher.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent publishes an observability event through the installed
// publisher. Without one it is a no-op; failures are counted and returned
// but never fatal.
func PublishEvent(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, event, headers)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}

// EventEnvelope is the wire shape of every broker event this service emits.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Instance  string      `json:"instance,omitempty"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles the correlation headers for one publish. Empty
// values are left out entirely.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
