package ingestion

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stokmanager/internal/config"
	"stokmanager/internal/logger"
	pkgmqtt "stokmanager/pkg/mqtt"
)

// MQTTIngestionConfig describes the topics and MQTT connection parameters.
type MQTTIngestionConfig struct {
	ClientConfig   *pkgmqtt.Config
	HeartbeatTopic string
	ScanTopic      string
	QoS            byte
}

// NewMQTTIngestionConfig maps the service configuration onto the client.
func NewMQTTIngestionConfig(cfg config.MQTTConfig) *MQTTIngestionConfig {
	return &MQTTIngestionConfig{
		ClientConfig: &pkgmqtt.Config{
			Broker:               cfg.Broker,
			ClientID:             cfg.ClientID,
			Username:             cfg.Username,
			Password:             cfg.Password,
			CleanSession:         true,
			KeepAlive:            30 * time.Second,
			ConnectTimeout:       10 * time.Second,
			AutoReconnect:        true,
			MaxReconnectInterval: time.Minute,
		},
		HeartbeatTopic: cfg.HeartbeatTopic,
		ScanTopic:      cfg.ScanTopic,
		QoS:            cfg.QoS,
	}
}

// MQTTIngestionClient wires MQTT messages into the ingestion processor.
type MQTTIngestionClient struct {
	cfg       *MQTTIngestionConfig
	client    *pkgmqtt.Client
	processor *Processor
	now       func() time.Time

	mu            sync.Mutex
	started       bool
	subscriptions []string
}

// NewMQTTIngestionClient builds a new MQTT client for ingestion.
func NewMQTTIngestionClient(cfg *MQTTIngestionConfig, processor *Processor) (*MQTTIngestionClient, error) {
	if cfg == nil || cfg.ClientConfig == nil {
		return nil, errors.New("mqtt ingestion config is not configured")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}

	c := &MQTTIngestionClient{
		cfg:       cfg,
		processor: processor,
		now:       time.Now,
	}
	cfg.ClientConfig.OnConnect = c.resubscribe
	c.client = pkgmqtt.NewClient(cfg.ClientConfig)
	return c, nil
}

// Client exposes the underlying connection for publishers sharing it.
func (c *MQTTIngestionClient) Client() *pkgmqtt.Client {
	return c.client
}

// Start establishes the MQTT connection and subscribes to the topics.
func (c *MQTTIngestionClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	if err := c.subscribeLocked(); err != nil {
		c.client.Disconnect()
		return err
	}

	c.started = true
	return nil
}

// Stop unsubscribes and disconnects from the broker.
func (c *MQTTIngestionClient) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}

	if len(c.subscriptions) > 0 {
		if err := c.client.Unsubscribe(c.subscriptions...); err != nil {
			logger.Warn("Failed to unsubscribe from MQTT topics", zap.Error(err))
		}
	}

	c.client.Disconnect()
	c.started = false
	c.subscriptions = nil
}

func (c *MQTTIngestionClient) subscribeLocked() error {
	subs := map[string]Kind{}
	if c.cfg.HeartbeatTopic != "" {
		subs[c.cfg.HeartbeatTopic] = KindHeartbeat
	}
	if c.cfg.ScanTopic != "" {
		subs[c.cfg.ScanTopic] = KindScan
	}
	if len(subs) == 0 {
		return errors.New("no MQTT topics configured for ingestion")
	}

	c.subscriptions = c.subscriptions[:0]
	for topic, kind := range subs {
		if err := c.client.Subscribe(topic, c.cfg.QoS, c.handler(kind)); err != nil {
			return fmt.Errorf("subscribe failed for topic %s: %w", topic, err)
		}
		c.subscriptions = append(c.subscriptions, topic)
	}
	return nil
}

// resubscribe restores subscriptions after an automatic reconnect.
func (c *MQTTIngestionClient) resubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return
	}
	if err := c.subscribeLocked(); err != nil {
		logger.Error("Failed to restore MQTT subscriptions", zap.Error(err))
	}
}

func (c *MQTTIngestionClient) handler(kind Kind) pkgmqtt.MessageHandler {
	return func(topic string, payload []byte) {
		c.processor.Submit(&Message{
			Kind:       kind,
			Topic:      topic,
			Payload:    append([]byte(nil), payload...),
			ReceivedAt: c.now(),
		})
	}
}
