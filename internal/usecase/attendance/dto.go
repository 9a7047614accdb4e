package attendance

import (
	"time"

	domainAttendance "stokmanager/internal/domain/attendance"
)

type RecordRequest struct {
	NIM      string `json:"nim" validate:"required,max=32"`
	Nama     string `json:"nama" validate:"omitempty,max=255"`
	DeviceID string `json:"deviceId" validate:"omitempty,max=128"`
}

type ExportRequest struct {
	Format string `form:"format" validate:"omitempty,oneof=csv json"`
	Date   string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

type RecordResponse struct {
	ID        string `json:"id"`
	NIM       string `json:"nim"`
	Nama      string `json:"nama"`
	Timestamp int64  `json:"timestamp"`
	DeviceID  string `json:"deviceId"`
	SessionID string `json:"sessionId"`
	EventName string `json:"eventName"`
	Location  string `json:"location"`
	Scanned   bool   `json:"scanned"`
	Mode      string `json:"mode"`
	Type      string `json:"type"`
}

type StatsResponse struct {
	TotalToday   int    `json:"totalToday"`
	TotalUnique  int    `json:"totalUnique"`
	LastScanTime *int64 `json:"lastScanTime"`
}

// Export is the set of records for one calendar day.
type Export struct {
	Date    string
	Records []*domainAttendance.Record
}

func ToRecordResponse(r *domainAttendance.Record) RecordResponse {
	return RecordResponse{
		ID:        r.ID,
		NIM:       r.NIM,
		Nama:      r.Nama,
		Timestamp: r.Timestamp.UnixMilli(),
		DeviceID:  r.DeviceID,
		SessionID: r.SessionID,
		EventName: r.EventName,
		Location:  r.Location,
		Scanned:   true,
		Mode:      r.Mode,
		Type:      r.Type,
	}
}

func ToRecordResponses(records []*domainAttendance.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = ToRecordResponse(r)
	}
	return out
}

func ToStatsResponse(stats *domainAttendance.Stats) *StatsResponse {
	resp := &StatsResponse{
		TotalToday:  stats.TotalToday,
		TotalUnique: stats.TotalUnique,
	}
	if stats.LastScanTime != nil {
		ms := stats.LastScanTime.UnixMilli()
		resp.LastScanTime = &ms
	}
	return resp
}

// dayBounds returns [start, end) of the calendar day containing t in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
