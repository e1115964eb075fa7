package declwire

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// eventSource is the CloudEvents source attribute for manager events.
const eventSource = "declwire:component-manager"

// NewComponentEvent creates a CloudEvent describing component lifecycle
// activity. The data payload is JSON-encoded.
func NewComponentEvent(eventType string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// newEventID generates a UUIDv7 event identifier so event IDs sort by time.
// Falls back to v4 if v7 generation fails.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateComponentEvent checks that an event carries the required
// CloudEvents attributes.
func ValidateComponentEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("cloudevent validation failed: %w", err)
	}
	return nil
}

// componentEventData is the JSON payload carried by manager events.
type componentEventData struct {
	Module     string `json:"module"`
	Descriptor string `json:"descriptor,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
	Components int    `json:"components,omitempty"`
}
