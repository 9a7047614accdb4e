package ingestion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	usecaseDevice "stokmanager/internal/usecase/device"
	usecaseScan "stokmanager/internal/usecase/scan"
)

// mqttSource is recorded as the device address for MQTT traffic.
const mqttSource = "mqtt"

const defaultTimeout = 10 * time.Second

type HeartbeatHandler interface {
	Heartbeat(ctx context.Context, req *usecaseDevice.HeartbeatRequest, ipAddress string) (*usecaseDevice.HeartbeatResponse, error)
}

type ScanHandler interface {
	Ingest(ctx context.Context, req *usecaseScan.IngestRequest, ipAddress string) (*usecaseScan.IngestResponse, error)
}

// Processor dispatches queued MQTT messages to the use cases on a fixed
// number of workers. The queue is bounded; Submit drops when it is full.
type Processor struct {
	heartbeats HeartbeatHandler
	scans      ScanHandler
	metrics    *metrics.Tracker
	log        *zap.Logger

	workerCount int
	timeout     time.Duration
	queue       chan *Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewProcessor creates a new message processor
func NewProcessor(heartbeats HeartbeatHandler, scans ScanHandler, tracker *metrics.Tracker, workerCount, queueSize int, timeout time.Duration) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Processor{
		heartbeats:  heartbeats,
		scans:       scans,
		metrics:     tracker,
		log:         logger.Named("mqtt"),
		workerCount: max(workerCount, 1),
		timeout:     timeout,
		queue:       make(chan *Message, max(queueSize, 1)),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the processor workers
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("MQTT processor started",
		zap.Int("workers", p.workerCount),
		zap.Int("queue_size", cap(p.queue)),
	)
}

// Stop stops accepting messages, lets the workers finish what is queued and
// waits for them.
func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Info("MQTT processor stopped")
}

// Submit queues msg. It reports false when the message was rejected or
// dropped because the queue is full.
func (p *Processor) Submit(msg *Message) bool {
	if err := ValidateMessage(msg); err != nil {
		p.log.Warn("Invalid MQTT message",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		p.metrics.Update(func(m *metrics.ServiceMetrics) { m.MQTTFailed++ })
		return false
	}
	if p.ctx.Err() != nil {
		return false
	}

	select {
	case p.queue <- msg:
		p.metrics.Update(func(m *metrics.ServiceMetrics) { m.MQTTReceived++ })
		return true
	default:
		p.log.Warn("MQTT queue full, dropping message",
			zap.String("topic", msg.Topic),
			zap.String("event", "mqtt_dropped"),
		)
		p.metrics.Update(func(m *metrics.ServiceMetrics) { m.MQTTDropped++ })
		return false
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.queue:
			p.handle(id, msg)
		case <-p.ctx.Done():
			p.drain(id)
			return
		}
	}
}

func (p *Processor) drain(id int) {
	for {
		select {
		case msg := <-p.queue:
			p.handle(id, msg)
		default:
			return
		}
	}
}

func (p *Processor) handle(worker int, msg *Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.timeout)
	defer cancel()

	if err := p.dispatch(ctx, msg); err != nil {
		p.log.Warn("Failed to process MQTT message",
			zap.Int("worker", worker),
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		p.metrics.Update(func(m *metrics.ServiceMetrics) { m.MQTTFailed++ })
		return
	}
	p.metrics.Update(func(m *metrics.ServiceMetrics) { m.MQTTProcessed++ })
}

func (p *Processor) dispatch(ctx context.Context, msg *Message) error {
	switch msg.Kind {
	case KindHeartbeat:
		req, err := ParseHeartbeat(msg)
		if err != nil {
			return err
		}
		_, err = p.heartbeats.Heartbeat(ctx, req, mqttSource)
		return err
	case KindScan:
		req, err := ParseScan(msg)
		if err != nil {
			return err
		}
		_, err = p.scans.Ingest(ctx, req, mqttSource)
		return err
	}
	return nil
}
