package scan

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainScan "stokmanager/internal/domain/scan"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	usecaseDevice "stokmanager/internal/usecase/device"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

// DeviceActivity records that a device produced a scan.
type DeviceActivity interface {
	RecordScanActivity(ctx context.Context, deviceID, ipAddress string) error
}

// ItemMatcher resolves a barcode to an inventory item id.
type ItemMatcher interface {
	Match(ctx context.Context, barcode string) (string, bool, error)
}

// AttendanceRecorder checks in attendance-mode scans.
type AttendanceRecorder interface {
	RecordFromScan(ctx context.Context, nim, deviceID string, at time.Time) (bool, error)
}

type Options struct {
	Retry   utils.RetryPolicy
	Timeout time.Duration
	Now     func() time.Time
}

// Service ingests barcode scans: it persists the scan, bumps the device's
// activity and correlates the barcode with the inventory.
type Service struct {
	repo       domainScan.Repository
	devices    DeviceActivity
	items      ItemMatcher
	attendance AttendanceRecorder
	metrics    *metrics.Tracker
	retry      utils.RetryPolicy
	timeout    time.Duration
	now        func() time.Time
}

func NewService(repo domainScan.Repository, devices DeviceActivity, items ItemMatcher, attendance AttendanceRecorder, tracker *metrics.Tracker, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:       repo,
		devices:    devices,
		items:      items,
		attendance: attendance,
		metrics:    tracker,
		retry:      opts.Retry,
		timeout:    opts.Timeout,
		now:        opts.Now,
	}
}

// Ingest stores one scan. Only a malformed request is reported as an error;
// store failures produce a LocalSave response so devices do not retry.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest, ipAddress string) (*IngestResponse, error) {
	req.Barcode = utils.TrimBarcode(req.Barcode)
	req.DeviceID = usecaseDevice.NormalizeDeviceID(req.DeviceID)
	req.Location = utils.SanitizeText(req.Location)
	req.Mode = utils.SanitizeIdentifier(req.Mode)
	req.Type = utils.SanitizeIdentifier(req.Type)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, err.Error(), appErrors.ErrInvalidInput)
	}

	now := s.now()
	record := newScan(req, now)

	s.metrics.Update(func(m *metrics.ServiceMetrics) { m.ScansReceived++ })

	if err := s.persist(ctx, record); err != nil {
		s.metrics.Update(func(m *metrics.ServiceMetrics) { m.ScansLocalSaved++ })
		logger.Error("Failed to save scan, device keeps it locally",
			zap.String("barcode", record.Barcode),
			zap.String("device_id", record.DeviceID),
			zap.Error(err),
			zap.String("event", "scan_local_save"),
		)
		return &IngestResponse{
			Success:   false,
			Message:   "Scan saved locally",
			LocalSave: true,
			Error:     err.Error(),
			Barcode:   record.Barcode,
			DeviceID:  record.DeviceID,
		}, nil
	}

	if err := s.devices.RecordScanActivity(ctx, record.DeviceID, ipAddress); err != nil {
		logger.Warn("Failed to update device after scan",
			zap.String("device_id", record.DeviceID),
			zap.String("scan_id", record.ID),
			zap.Error(err),
		)
	}

	resp := &IngestResponse{
		Success: true,
		Message: "Barcode scan saved successfully",
		ScanID:  record.ID,
	}
	s.correlate(ctx, record, resp)

	if record.IsAttendance() && s.attendance != nil {
		recorded, err := s.attendance.RecordFromScan(ctx, record.Barcode, record.DeviceID, record.Timestamp)
		if err != nil {
			logger.Warn("Failed to record attendance from scan",
				zap.String("scan_id", record.ID),
				zap.Error(err),
			)
		}
		resp.AttendanceRecorded = recorded
	}

	s.metrics.Update(func(m *metrics.ServiceMetrics) { m.LastProcessedAt = now })
	logger.Info("Barcode scan saved",
		zap.String("scan_id", record.ID),
		zap.String("barcode", record.Barcode),
		zap.String("device_id", record.DeviceID),
		zap.Bool("item_found", resp.ItemFound),
		zap.String("event", "scan_saved"),
	)
	return resp, nil
}

func (s *Service) persist(ctx context.Context, record *domainScan.Scan) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return utils.RetryWithBackoff(ctx, s.retry, func() error {
		return s.repo.Create(ctx, record)
	})
}

// correlate fills the match into resp. The scan stays unprocessed when the
// lookup or the enrichment write fails.
func (s *Service) correlate(ctx context.Context, record *domainScan.Scan, resp *IngestResponse) {
	itemID, found, err := s.items.Match(ctx, record.Barcode)
	if err != nil {
		s.metrics.Update(func(m *metrics.ServiceMetrics) { m.EnrichmentFailures++ })
		logger.Warn("Inventory lookup failed",
			zap.String("scan_id", record.ID),
			zap.String("barcode", record.Barcode),
			zap.Error(err),
		)
		return
	}
	if !found {
		return
	}

	resp.ItemFound = true
	resp.ItemID = &itemID
	s.metrics.Update(func(m *metrics.ServiceMetrics) { m.ScansMatched++ })

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.MarkMatched(ctx, record.ID, itemID); err != nil {
		s.metrics.Update(func(m *metrics.ServiceMetrics) { m.EnrichmentFailures++ })
		logger.Warn("Failed to enrich scan",
			zap.String("scan_id", record.ID),
			zap.String("item_id", itemID),
			zap.Error(err),
			zap.String("event", "scan_enrichment_failed"),
		)
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func newScan(req *IngestRequest, now time.Time) *domainScan.Scan {
	record := &domainScan.Scan{
		Barcode:   req.Barcode,
		DeviceID:  req.DeviceID,
		Timestamp: now,
		Location:  req.Location,
		Mode:      req.Mode,
		Type:      req.Type,
	}
	if req.Timestamp != nil {
		record.Timestamp = time.UnixMilli(*req.Timestamp)
	}
	if record.Location == "" {
		record.Location = domainScan.DefaultLocation
	}
	if record.Mode == "" {
		record.Mode = domainScan.ModeInventory
	}
	if record.Type == "" {
		record.Type = domainScan.TypeInventoryScan
	}
	return record
}
