// Package presence derives device online/offline status from the age of
// each device's last activity.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	domainDevice "stokmanager/internal/domain/device"
	"stokmanager/internal/events"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	"stokmanager/pkg/utils"
)

type Options struct {
	Threshold time.Duration
	Retry     utils.RetryPolicy
	Timeout   time.Duration
	Now       func() time.Time
}

// Result summarises one reconciler tick.
type Result struct {
	Updated int       `json:"updatedDevices"`
	Skipped int       `json:"skippedDevices"`
	Online  int       `json:"online"`
	Offline int       `json:"offline"`
	At      time.Time `json:"-"`
}

// Reconciler marks devices offline once they have been silent longer than
// the threshold and online again when they are not. Ticks never overlap.
type Reconciler struct {
	repo      domainDevice.Repository
	bus       *events.Bus
	metrics   *metrics.Tracker
	threshold time.Duration
	retry     utils.RetryPolicy
	timeout   time.Duration
	now       func() time.Time
	log       *zap.Logger

	mu sync.Mutex
}

func NewReconciler(repo domainDevice.Repository, bus *events.Bus, tracker *metrics.Tracker, opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		repo:      repo,
		bus:       bus,
		metrics:   tracker,
		threshold: opts.Threshold,
		retry:     opts.Retry,
		timeout:   opts.Timeout,
		now:       opts.Now,
		log:       logger.Named("reconciler"),
	}
}

// Tick reads the registry once and writes every staged transition in a
// single batch. A registry that already satisfies the staleness rule
// produces no write.
func (r *Reconciler) Tick(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.now()
	r.metrics.Update(func(m *metrics.ServiceMetrics) {
		m.ReconcileTicks++
		m.LastReconcileAt = now
	})

	var devices []*domainDevice.Device
	err := utils.RetryWithBackoff(ctx, r.retry, func() error {
		var err error
		devices, err = r.repo.List(ctx)
		return err
	})
	if err != nil {
		r.fail("read", err)
		return nil, err
	}

	var changes []domainDevice.StatusChange
	staged := make(map[string]*domainDevice.Device)
	for _, d := range devices {
		expected := d.ExpectedStatus(now, r.threshold)
		if d.Status == expected {
			continue
		}
		changes = append(changes, domainDevice.StatusChange{
			DeviceID: d.ID,
			Revision: d.Revision,
			From:     d.Status,
			To:       expected,
		})
		staged[d.ID] = d
	}

	result := &Result{At: now}
	if len(changes) > 0 {
		skipped, err := r.repo.UpdateStatuses(ctx, changes)
		if err != nil {
			r.fail("write", err)
			return nil, err
		}

		lost := make(map[string]struct{}, len(skipped))
		for _, id := range skipped {
			lost[id] = struct{}{}
		}
		for _, c := range changes {
			if _, ok := lost[c.DeviceID]; ok {
				continue
			}
			d := staged[c.DeviceID]
			d.Status = c.To
			result.Updated++
			r.bus.Publish(events.StatusChange{
				DeviceID: c.DeviceID,
				From:     string(c.From),
				To:       string(c.To),
				LastSeen: millis(d.LastSeen),
				At:       now,
				Source:   events.SourceReconciler,
			})
			r.log.Info("Device status changed",
				zap.String("device_id", c.DeviceID),
				zap.String("from", string(c.From)),
				zap.String("to", string(c.To)),
				zap.String("event", "device_status_changed"),
			)
		}
		result.Skipped = len(skipped)
		if len(skipped) > 0 {
			r.log.Debug("Devices changed during tick, re-evaluated next tick",
				zap.Strings("device_ids", skipped),
			)
		}
	}

	counts := domainDevice.Count(devices)
	result.Online = counts.Online
	result.Offline = counts.Offline

	r.metrics.Update(func(m *metrics.ServiceMetrics) {
		m.ReconcileTransitions += int64(result.Updated)
		m.ReconcileSkipped += int64(result.Skipped)
	})
	r.log.Debug("Presence reconciled",
		zap.Int("devices", counts.Total),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// StartJob runs Tick every interval until ctx is done. Failed ticks are
// logged and the next one starts from scratch.
func (r *Reconciler) StartJob(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("Presence reconciler started",
		zap.Duration("interval", interval),
		zap.Duration("threshold", r.threshold),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Presence reconciler stopped")
			return
		case <-ticker.C:
			_, _ = r.Tick(ctx)
		}
	}
}

func (r *Reconciler) fail(stage string, err error) {
	r.metrics.Update(func(m *metrics.ServiceMetrics) { m.ReconcileFailures++ })
	r.log.Error("Presence reconcile tick skipped",
		zap.String("stage", stage),
		zap.Error(err),
		zap.String("event", "reconcile_failed"),
	)
}

func (r *Reconciler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func millis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
