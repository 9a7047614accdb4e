package attendance

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"stokmanager/internal/config"
	domainAttendance "stokmanager/internal/domain/attendance"
	"stokmanager/internal/domain/scan"
	"stokmanager/internal/logger"
	"stokmanager/internal/metrics"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

const dateLayout = "2006-01-02"

// Service implements attendance check-in, statistics and export.
type Service struct {
	repo    domainAttendance.Repository
	cfg     config.AttendanceConfig
	loc     *time.Location
	guard   *recentGuard
	metrics *metrics.Tracker
	timeout time.Duration
	now     func() time.Time
}

func NewService(repo domainAttendance.Repository, cfg config.AttendanceConfig, tracker *metrics.Tracker, timeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		cfg:     cfg,
		loc:     cfg.TimeLocation(),
		guard:   newRecentGuard(cfg.DuplicateWindow),
		metrics: tracker,
		timeout: timeout,
		now:     now,
	}
}

// Record checks an attendee in. Repeats for the same NIM and device inside
// the duplicate window are rejected with a *DuplicateError.
func (s *Service) Record(ctx context.Context, req *RecordRequest) (*RecordResponse, error) {
	req.NIM = utils.SanitizeIdentifier(req.NIM)
	req.Nama = utils.SanitizeText(req.Nama)
	req.DeviceID = utils.SanitizeIdentifier(req.DeviceID)

	if req.NIM == "" {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "NIM is required", domainAttendance.ErrNIMRequired)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, err.Error(), appErrors.ErrInvalidInput)
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = domainAttendance.DefaultDeviceID
	}

	now := s.now()
	key := req.NIM + "-" + deviceID
	if since, ok := s.guard.claim(key, now); !ok {
		logger.Info("Duplicate attendance blocked",
			zap.String("nim", req.NIM),
			zap.String("device_id", deviceID),
			zap.Duration("since", since),
			zap.String("event", "attendance_duplicate"),
		)
		return nil, &DuplicateError{NIM: req.NIM, Since: since}
	}

	record, err := s.create(ctx, req.NIM, req.Nama, deviceID, now)
	if err != nil {
		s.guard.release(key, now)
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to record attendance", err)
	}

	resp := ToRecordResponse(record)
	return &resp, nil
}

// RecordFromScan records an attendance-mode scan once per NIM and day.
// It reports whether a record was written.
func (s *Service) RecordFromScan(ctx context.Context, nim, deviceID string, at time.Time) (bool, error) {
	nim = utils.SanitizeIdentifier(nim)
	if utf8.RuneCountInString(nim) < s.cfg.MinNIMLength {
		return false, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	from, to := dayBounds(at, s.loc)
	records, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.NIM == nim {
			return false, nil
		}
	}

	if _, err := s.create(ctx, nim, "", deviceID, at); err != nil {
		return false, err
	}
	return true, nil
}

// Stats summarises today's attendance.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	from, to := dayBounds(s.now(), s.loc)
	records, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to fetch attendance", err)
	}

	stats := &domainAttendance.Stats{TotalToday: len(records)}
	unique := make(map[string]struct{}, len(records))
	for _, r := range records {
		unique[r.NIM] = struct{}{}
		if stats.LastScanTime == nil || r.Timestamp.After(*stats.LastScanTime) {
			ts := r.Timestamp
			stats.LastScanTime = &ts
		}
	}
	stats.TotalUnique = len(unique)

	return ToStatsResponse(stats), nil
}

// Export returns the records of date (YYYY-MM-DD in the event timezone),
// defaulting to today.
func (s *Service) Export(ctx context.Context, date string) (*Export, error) {
	day := s.now().In(s.loc)
	if date != "" {
		parsed, err := time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return nil, appErrors.NewAppError(appErrors.CodeValidation, "date must be YYYY-MM-DD", err)
		}
		day = parsed
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	from, to := dayBounds(day, s.loc)
	records, err := s.repo.ListBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to export attendance", err)
	}

	return &Export{Date: from.Format(dateLayout), Records: records}, nil
}

// CSVDefaults returns the fallbacks used for empty export columns.
func (s *Service) CSVDefaults() CSVDefaults {
	return CSVDefaults{
		EventName: s.cfg.EventName,
		Location:  s.cfg.Location,
		Timezone:  s.loc,
	}
}

func (s *Service) create(ctx context.Context, nim, nama, deviceID string, at time.Time) (*domainAttendance.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	record := &domainAttendance.Record{
		NIM:       nim,
		Nama:      nama,
		Timestamp: at,
		DeviceID:  deviceID,
		SessionID: s.cfg.SessionID,
		EventName: s.cfg.EventName,
		Location:  s.cfg.Location,
		Mode:      scan.ModeAttendance,
		Type:      scan.TypeAttendanceScan,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		logger.Error("Failed to record attendance",
			zap.String("nim", nim),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.Update(func(m *metrics.ServiceMetrics) { m.AttendanceRecorded++ })
	logger.Info("Attendance recorded",
		zap.String("nim", nim),
		zap.String("device_id", deviceID),
		zap.String("event", "attendance_recorded"),
	)
	return record, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// IsDuplicate reports whether err is a duplicate check-in.
func IsDuplicate(err error) bool {
	return errors.Is(err, domainAttendance.ErrDuplicateAttendance)
}
