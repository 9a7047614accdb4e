package ingestion

import (
	"bytes"
	"fmt"
)

// maxPayloadSize bounds a single MQTT payload.
const maxPayloadSize = 16 << 10

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

// ValidateMessage rejects publications that cannot be routed before they
// take a queue slot.
func ValidateMessage(msg *Message) error {
	switch msg.Kind {
	case KindHeartbeat, KindScan:
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unsupported message kind %q", msg.Kind)}
	}

	if DeviceIDFromTopic(msg.Topic) == "" {
		return &ValidationError{Field: "topic", Message: "topic must be scanners/{deviceId}/" + string(msg.Kind)}
	}

	payload := bytes.TrimSpace(msg.Payload)
	if len(payload) == 0 {
		return &ValidationError{Field: "payload", Message: "payload is required"}
	}
	if len(payload) > maxPayloadSize {
		return &ValidationError{Field: "payload", Message: fmt.Sprintf("payload exceeds %d bytes", maxPayloadSize)}
	}
	if payload[0] != '{' {
		return &ValidationError{Field: "payload", Message: "payload must be a JSON object"}
	}

	return nil
}
