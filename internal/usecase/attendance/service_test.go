package attendance

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokmanager/internal/config"
	domainAttendance "stokmanager/internal/domain/attendance"
	"stokmanager/internal/infrastructure/memory"
	"stokmanager/internal/infrastructure/repository"
	appErrors "stokmanager/pkg/errors"
)

func testConfig() config.AttendanceConfig {
	return config.AttendanceConfig{
		EventName:       "Seminar Teknologi 2025",
		SessionID:       "seminar-2025",
		Location:        "Auditorium Utama",
		Timezone:        "Asia/Jakarta",
		DuplicateWindow: 15 * time.Second,
		MinNIMLength:    8,
	}
}

func newTestService(now *time.Time) *Service {
	repo := repository.NewAttendanceRepository(memory.NewStore())
	return NewService(repo, testConfig(), nil, time.Second, func() time.Time { return *now })
}

func TestRecordRejectsDuplicateWithinWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	rec, err := svc.Record(ctx, &RecordRequest{NIM: "10222001", Nama: "Budi", DeviceID: "ESP32-01"})
	require.NoError(t, err)
	assert.Equal(t, "attendance", rec.Mode)
	assert.Equal(t, "attendance_scan", rec.Type)
	assert.Equal(t, "seminar-2025", rec.SessionID)

	now = now.Add(4 * time.Second)
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222001", DeviceID: "ESP32-01"})
	require.Error(t, err)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.True(t, IsDuplicate(err))
	assert.Equal(t, "NIM 10222001 sudah tercatat 4 detik yang lalu", dup.Error())

	// A different device is a different key.
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222001", DeviceID: "ESP32-02"})
	require.NoError(t, err)

	now = now.Add(15 * time.Second)
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222001", DeviceID: "ESP32-01"})
	require.NoError(t, err)
}

func TestRecordRequiresNIM(t *testing.T) {
	now := time.Now()
	_, err := newTestService(&now).Record(context.Background(), &RecordRequest{Nama: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))
	assert.ErrorIs(t, err, domainAttendance.ErrNIMRequired)
}

func TestRecordFromScanOncePerDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	ok, err := svc.RecordFromScan(ctx, "1234567", "ESP32-01", now)
	require.NoError(t, err)
	assert.False(t, ok, "NIM shorter than the minimum is ignored")

	ok, err = svc.RecordFromScan(ctx, "10222001", "ESP32-01", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.RecordFromScan(ctx, "10222001", "ESP32-01", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// 2025-03-11 00:30 in Jakarta is a new day.
	next := time.Date(2025, 3, 10, 17, 30, 0, 0, time.UTC)
	ok, err = svc.RecordFromScan(ctx, "10222001", "ESP32-01", next)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	_, err := svc.Record(ctx, &RecordRequest{NIM: "10222001"})
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222001", DeviceID: "ESP32-01"})
	require.NoError(t, err)
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222002"})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalToday)
	assert.Equal(t, 2, stats.TotalUnique)
	require.NotNil(t, stats.LastScanTime)
	assert.Equal(t, now.UnixMilli(), *stats.LastScanTime)
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 1, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	_, err := svc.Record(ctx, &RecordRequest{NIM: "10222001", Nama: "John Doe", DeviceID: "ESP32-5fbf713c"})
	require.NoError(t, err)
	now = now.Add(time.Hour)
	_, err = svc.Record(ctx, &RecordRequest{NIM: "10222002", DeviceID: "ESP32-5fbf713c"})
	require.NoError(t, err)

	export, err := svc.Export(ctx, "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", export.Date)
	require.Len(t, export.Records, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, export.Records, svc.CSVDefaults()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM))
	assert.False(t, strings.HasSuffix(out, "\n"))

	lines := strings.Split(strings.TrimPrefix(out, utf8BOM), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "No,NIM,Nama,Waktu Absen,Device ID,Acara,Lokasi", lines[0])
	assert.Equal(t, "1,10222001,John Doe,10/03/2025 08:00:00,ESP32-5fbf713c,Seminar Teknologi 2025,Auditorium Utama", lines[1])
	assert.Equal(t, "2,10222002,Tidak Diketahui,10/03/2025 09:00:00,ESP32-5fbf713c,Seminar Teknologi 2025,Auditorium Utama", lines[2])

	assert.Equal(t, "Absensi_Seminar_2025-03-10.csv", ExportFilename(export.Date))
}

func TestExportRejectsBadDate(t *testing.T) {
	now := time.Now()
	_, err := newTestService(&now).Export(context.Background(), "10-03-2025")
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))
}
