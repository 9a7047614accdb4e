package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"stokmanager/internal/events"
	"stokmanager/internal/logger"
)

// Publisher is the part of the MQTT client the status publisher needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// StatusPublisher mirrors presence changes to retained
// scanners/{id}/status messages so devices and dashboards see the current
// state on subscribe.
type StatusPublisher struct {
	bus           *events.Bus
	publisher     Publisher
	topicTemplate string
	qos           byte
}

func NewStatusPublisher(bus *events.Bus, publisher Publisher, topicTemplate string, qos byte) *StatusPublisher {
	return &StatusPublisher{
		bus:           bus,
		publisher:     publisher,
		topicTemplate: topicTemplate,
		qos:           qos,
	}
}

// Run publishes every change until ctx is done.
func (p *StatusPublisher) Run(ctx context.Context) error {
	changes, cancel := p.bus.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			p.publish(change)
		}
	}
}

func (p *StatusPublisher) publish(change events.StatusChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		logger.Error("Failed to encode status change", zap.Error(err))
		return
	}

	topic := fmt.Sprintf(p.topicTemplate, change.DeviceID)
	if err := p.publisher.Publish(topic, p.qos, true, payload); err != nil {
		logger.Warn("Failed to publish device status",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}
