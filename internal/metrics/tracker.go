package metrics

import (
	"sync"
	"time"
)

// ServiceMetrics counts ingestion and reconciliation activity since start.
type ServiceMetrics struct {
	HeartbeatsReceived   int64     `json:"heartbeatsReceived"`
	HeartbeatsFailed     int64     `json:"heartbeatsFailed"`
	ScansReceived        int64     `json:"scansReceived"`
	ScansMatched         int64     `json:"scansMatched"`
	ScansLocalSaved      int64     `json:"scansLocalSaved"`
	EnrichmentFailures   int64     `json:"enrichmentFailures"`
	AttendanceRecorded   int64     `json:"attendanceRecorded"`
	MQTTReceived         int64     `json:"mqttReceived"`
	MQTTProcessed        int64     `json:"mqttProcessed"`
	MQTTFailed           int64     `json:"mqttFailed"`
	MQTTDropped          int64     `json:"mqttDropped"`
	ReconcileTicks       int64     `json:"reconcileTicks"`
	ReconcileFailures    int64     `json:"reconcileFailures"`
	ReconcileTransitions int64     `json:"reconcileTransitions"`
	ReconcileSkipped     int64     `json:"reconcileSkipped"`
	EventsDropped        int64     `json:"eventsDropped"`
	LastReconcileAt      time.Time `json:"lastReconcileAt,omitzero"`
	LastProcessedAt      time.Time `json:"lastProcessedAt,omitzero"`
}

// Tracker provides a goroutine-safe wrapper around ServiceMetrics.
type Tracker struct {
	mu      sync.RWMutex
	metrics ServiceMetrics
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Update applies a mutation in a thread-safe way. A nil tracker ignores it.
func (t *Tracker) Update(fn func(*ServiceMetrics)) {
	if t == nil || fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.metrics)
}

// Snapshot returns a copy of the current metrics.
func (t *Tracker) Snapshot() ServiceMetrics {
	if t == nil {
		return ServiceMetrics{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}
