package ingestion

import (
	"encoding/json"
	"strings"
	"time"

	usecaseDevice "stokmanager/internal/usecase/device"
	usecaseScan "stokmanager/internal/usecase/scan"
)

// Kind tells the processor which use case a message is routed to.
type Kind string

const (
	KindHeartbeat Kind = "heartbeat"
	KindScan      Kind = "scan"
)

// Message is one MQTT publication waiting in the worker queue.
type Message struct {
	Kind       Kind
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// DeviceIDFromTopic returns the device segment of scanners/{id}/{kind}.
func DeviceIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-2]
}

// ParseHeartbeat decodes a heartbeat payload. The body uses the same JSON as
// POST /api/heartbeat; a missing deviceId is taken from the topic.
func ParseHeartbeat(msg *Message) (*usecaseDevice.HeartbeatRequest, error) {
	var req usecaseDevice.HeartbeatRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}
	if req.DeviceID == "" {
		req.DeviceID = DeviceIDFromTopic(msg.Topic)
	}
	return &req, nil
}

// ParseScan decodes a scan payload, as ParseHeartbeat does for heartbeats.
func ParseScan(msg *Message) (*usecaseScan.IngestRequest, error) {
	var req usecaseScan.IngestRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}
	if req.DeviceID == "" {
		req.DeviceID = DeviceIDFromTopic(msg.Topic)
	}
	if req.Timestamp == nil {
		ts := msg.ReceivedAt.UnixMilli()
		req.Timestamp = &ts
	}
	return &req, nil
}
