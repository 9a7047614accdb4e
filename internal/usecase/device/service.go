package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainDevice "stokmanager/internal/domain/device"
	"stokmanager/internal/events"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

// maxConflictRetries bounds how often a read-merge-write is replayed after
// losing a race against another writer of the same device.
const maxConflictRetries = 8

type Options struct {
	Retry   utils.RetryPolicy
	Timeout time.Duration
	Now     func() time.Time
}

// Service implements the device registry use cases
type Service struct {
	repo    domainDevice.Repository
	bus     *events.Bus
	metrics *metrics.Tracker
	retry   utils.RetryPolicy
	timeout time.Duration
	now     func() time.Time
}

func NewService(repo domainDevice.Repository, bus *events.Bus, tracker *metrics.Tracker, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:    repo,
		bus:     bus,
		metrics: tracker,
		retry:   opts.Retry,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
}

// Heartbeat records a liveness ping and promotes the device to online.
func (s *Service) Heartbeat(ctx context.Context, req *HeartbeatRequest, ipAddress string) (*HeartbeatResponse, error) {
	req.DeviceID = NormalizeDeviceID(req.DeviceID)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, err.Error(), appErrors.ErrInvalidInput)
	}

	deviceID := req.DeviceID
	now := s.now()

	err := s.mutate(ctx, deviceID, events.SourceHeartbeat, func(d *domainDevice.Device) {
		d.MarkSeen(now, ipAddress)
		applyHeartbeat(d, req)
	})
	if err != nil {
		s.metrics.Update(func(m *metrics.ServiceMetrics) { m.HeartbeatsFailed++ })
		logger.Error("Failed to record heartbeat",
			zap.String("device_id", deviceID),
			zap.Error(err),
			zap.String("event", "heartbeat_failed"),
		)
		return nil, appErrors.NewAppError(appErrors.CodeUnavailable, "Failed to process heartbeat", err)
	}

	s.metrics.Update(func(m *metrics.ServiceMetrics) {
		m.HeartbeatsReceived++
		m.LastProcessedAt = now
	})
	logger.Debug("Heartbeat received",
		zap.String("device_id", deviceID),
		zap.String("ip", ipAddress),
		zap.String("event", "heartbeat_received"),
	)

	return &HeartbeatResponse{
		Success:   true,
		Message:   "Heartbeat received",
		DeviceID:  deviceID,
		Timestamp: now.UnixMilli(),
	}, nil
}

// RecordScanActivity bumps the device's scan counter by one and promotes it
// to online.
func (s *Service) RecordScanActivity(ctx context.Context, deviceID, ipAddress string) error {
	now := s.now()
	return s.mutate(ctx, NormalizeDeviceID(deviceID), events.SourceScan, func(d *domainDevice.Device) {
		d.MarkSeen(now, ipAddress)
		d.ScanCount++
	})
}

// ListDevices returns every registered device with status counts.
func (s *Service) ListDevices(ctx context.Context) (*DeviceListResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to fetch devices", err)
	}
	return ToDeviceListResponse(devices, s.now()), nil
}

func (s *Service) GetDevice(ctx context.Context, deviceID string) (*DeviceResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.repo.Get(ctx, deviceID)
	if errors.Is(err, domainDevice.ErrDeviceNotFound) {
		return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Device not found", err)
	}
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to fetch device", err)
	}
	resp := ToDeviceResponse(d)
	return &resp, nil
}

// mutate runs a read-merge-CompareAndSet cycle on one device. Lost races
// are replayed immediately against the fresh value; store failures are
// retried with backoff.
func (s *Service) mutate(ctx context.Context, deviceID, source string, apply func(d *domainDevice.Device)) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return utils.RetryWithBackoff(ctx, s.retry, func() error {
		for attempt := 0; attempt < maxConflictRetries; attempt++ {
			current, err := s.repo.Get(ctx, deviceID)
			if errors.Is(err, domainDevice.ErrDeviceNotFound) {
				current = &domainDevice.Device{ID: deviceID}
			} else if err != nil {
				return err
			}

			previous := current.Status
			apply(current)

			err = s.repo.Save(ctx, current)
			if errors.Is(err, domainDevice.ErrConcurrentUpdate) {
				logger.Debug("Device changed concurrently, replaying update",
					zap.String("device_id", deviceID),
					zap.Int("attempt", attempt+1),
				)
				continue
			}
			if err != nil {
				return err
			}

			if previous != current.Status {
				s.bus.Publish(events.StatusChange{
					DeviceID: deviceID,
					From:     string(previous),
					To:       string(current.Status),
					LastSeen: unixMilli(current.LastSeen),
					At:       s.now(),
					Source:   source,
				})
			}
			return nil
		}
		return utils.Permanent(fmt.Errorf("device %s: %w", deviceID, domainDevice.ErrConcurrentUpdate))
	})
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
