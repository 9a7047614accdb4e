package ingestion

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokmanager/internal/events"
	"stokmanager/internal/metrics"
	usecaseDevice "stokmanager/internal/usecase/device"
	usecaseScan "stokmanager/internal/usecase/scan"
)

type recorder struct {
	mu         sync.Mutex
	heartbeats []*usecaseDevice.HeartbeatRequest
	scans      []*usecaseScan.IngestRequest
	block      chan struct{}
}

func (r *recorder) Heartbeat(_ context.Context, req *usecaseDevice.HeartbeatRequest, _ string) (*usecaseDevice.HeartbeatResponse, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, req)
	return &usecaseDevice.HeartbeatResponse{Success: true}, nil
}

func (r *recorder) Ingest(_ context.Context, req *usecaseScan.IngestRequest, _ string) (*usecaseScan.IngestResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, req)
	return &usecaseScan.IngestResponse{Success: true}, nil
}

func TestDeviceIDFromTopic(t *testing.T) {
	assert.Equal(t, "ESP32-01", DeviceIDFromTopic("scanners/ESP32-01/heartbeat"))
	assert.Equal(t, "", DeviceIDFromTopic("heartbeat"))
}

func TestProcessorDispatchesByKind(t *testing.T) {
	rec := &recorder{}
	tracker := metrics.NewTracker()
	p := NewProcessor(rec, rec, tracker, 2, 8, time.Second)
	p.Start()

	require.True(t, p.Submit(&Message{Kind: KindHeartbeat, Topic: "scanners/ESP32-01/heartbeat", Payload: []byte(`{"uptime":42}`)}))
	require.True(t, p.Submit(&Message{
		Kind:       KindScan,
		Topic:      "scanners/ESP32-02/scan",
		Payload:    []byte(`{"barcode":"ABC123"}`),
		ReceivedAt: time.UnixMilli(1_700_000_000_000),
	}))
	assert.False(t, p.Submit(&Message{Kind: KindScan, Topic: "scanners/ESP32-02/scan", Payload: []byte(`not json`)}))

	p.Stop()

	require.Len(t, rec.heartbeats, 1)
	assert.Equal(t, "ESP32-01", rec.heartbeats[0].DeviceID)
	require.NotNil(t, rec.heartbeats[0].Uptime)
	assert.Equal(t, int64(42), *rec.heartbeats[0].Uptime)

	require.Len(t, rec.scans, 1)
	assert.Equal(t, "ESP32-02", rec.scans[0].DeviceID)
	assert.Equal(t, "ABC123", rec.scans[0].Barcode)
	require.NotNil(t, rec.scans[0].Timestamp)
	assert.Equal(t, int64(1_700_000_000_000), *rec.scans[0].Timestamp)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(2), snap.MQTTReceived)
	assert.Equal(t, int64(2), snap.MQTTProcessed)
	assert.Equal(t, int64(1), snap.MQTTFailed)
}

func TestProcessorDropsWhenQueueFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	tracker := metrics.NewTracker()
	p := NewProcessor(rec, rec, tracker, 1, 1, time.Second)
	p.Start()

	msg := func() *Message {
		return &Message{Kind: KindHeartbeat, Topic: "scanners/ESP32-01/heartbeat", Payload: []byte(`{}`)}
	}

	// The first message occupies the only worker, the second the only slot.
	require.True(t, p.Submit(msg()))
	require.Eventually(t, func() bool { return len(p.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, p.Submit(msg()))
	assert.False(t, p.Submit(msg()))

	close(rec.block)
	p.Stop()

	assert.Equal(t, int64(1), tracker.Snapshot().MQTTDropped)
	assert.Len(t, rec.heartbeats, 2)
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	retained []bool
}

func (f *fakePublisher) Publish(topic string, _ byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.retained = append(f.retained, retained)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.topics)
}

func TestStatusPublisherPublishesRetained(t *testing.T) {
	bus := events.NewBus()
	pub := &fakePublisher{}
	sp := NewStatusPublisher(bus, pub, "scanners/%s/status", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sp.Run(ctx) }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, time.Millisecond)
	bus.Publish(events.StatusChange{DeviceID: "ESP32-01", From: "online", To: "offline", Source: events.SourceReconciler})

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "scanners/ESP32-01/status", pub.topics[0])
	assert.True(t, pub.retained[0])

	var got events.StatusChange
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	assert.Equal(t, "offline", got.To)
}
