package models

import "time"

type EventType string

const (
	EventRequestStarted   EventType = "request_started"
	EventSearchStarted    EventType = "search_started"
	EventSearchCompleted  EventType = "search_completed"
	EventSearchDegraded   EventType = "search_degraded"
	EventModelInvoked     EventType = "model_invoked"
	EventModelFailed      EventType = "model_failed"
	EventRequestCompleted EventType = "request_completed"
	EventRequestFailed    EventType = "request_failed"
)

// PipelineEvent is a fire-and-forget telemetry record emitted at stage
// transitions. Publishing one must never block or fail the primary flow.
type PipelineEvent struct {
	RequestID string                 `json:"request_id"`
	Role      Role                   `json:"role"`
	Stage     Stage                  `json:"stage"`
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func NewPipelineEvent(requestID string, role Role, stage Stage, eventType EventType, message string) *PipelineEvent {
	return &PipelineEvent{
		RequestID: requestID,
		Role:      role,
		Stage:     stage,
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
		Fields:    make(map[string]interface{}),
	}
}
