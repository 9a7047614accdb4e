package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerConcurrentUpdates(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(func(m *ServiceMetrics) { m.ScansReceived++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), tracker.Snapshot().ScansReceived)
}

func TestSnapshotIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.Update(func(m *ServiceMetrics) { m.HeartbeatsReceived++ })

	snap := tracker.Snapshot()
	tracker.Update(func(m *ServiceMetrics) { m.HeartbeatsReceived++ })

	assert.Equal(t, int64(1), snap.HeartbeatsReceived)
	assert.Equal(t, int64(2), tracker.Snapshot().HeartbeatsReceived)
}

func TestNilTrackerIsSafe(t *testing.T) {
	var tracker *Tracker
	tracker.Update(func(m *ServiceMetrics) { m.ScansReceived++ })
	assert.Zero(t, tracker.Snapshot().ScansReceived)
}
