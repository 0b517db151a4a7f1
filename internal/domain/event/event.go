package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event raised by a requisition change
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequisitionID string                 `json:"requisition_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event starting a new correlation chain
func NewEvent(eventType Type, requisitionID string, payload map[string]interface{}) *Event {
	return NewEventWithCorrelation(eventType, requisitionID, payload, uuid.NewString())
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, requisitionID string, payload map[string]interface{}, correlationID string) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RequisitionID: requisitionID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
	}
}

// WithPayload returns a copy of the event with key set
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	copied := *e
	copied.Payload = payload
	return &copied
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}
