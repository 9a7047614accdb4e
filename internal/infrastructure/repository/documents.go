package repository

import (
	"time"

	"stokmanager/internal/domain/attendance"
	"stokmanager/internal/domain/device"
	"stokmanager/internal/domain/scan"
)

// Documents are stored as JSON with camelCase field names and timestamps in
// milliseconds since the epoch.

type deviceDocument struct {
	DeviceID      string `json:"deviceId,omitempty"`
	Name          string `json:"name,omitempty"`
	Status        string `json:"status,omitempty"`
	LastSeen      *int64 `json:"lastSeen,omitempty"`
	LastHeartbeat *int64 `json:"lastHeartbeat,omitempty"`
	FirstSeen     *int64 `json:"firstSeen,omitempty"`
	ScanCount     int64  `json:"scanCount"`
	IPAddress     string `json:"ipAddress,omitempty"`
	FreeHeap      int64  `json:"freeHeap"`
	Version       string `json:"version,omitempty"`
	BatteryLevel  *int   `json:"batteryLevel,omitempty"`
	Uptime        int64  `json:"uptime"`
}

type scanDocument struct {
	Barcode   string `json:"barcode"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
	Location  string `json:"location"`
	Mode      string `json:"mode"`
	Type      string `json:"type"`
	Processed bool   `json:"processed"`
	ItemFound *bool  `json:"itemFound,omitempty"`
	ItemID    string `json:"itemId,omitempty"`
}

type attendanceDocument struct {
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

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

func toDeviceDocument(d *device.Device) *deviceDocument {
	return &deviceDocument{
		DeviceID:     d.ID,
		Name:         d.Name,
		Status:       string(d.Status),
		LastSeen:     millisPtr(d.LastSeen),
		FirstSeen:    millisPtr(d.FirstSeen),
		ScanCount:    d.ScanCount,
		IPAddress:    d.IPAddress,
		FreeHeap:     d.FreeHeap,
		Version:      d.Version,
		BatteryLevel: d.BatteryLevel,
		Uptime:       d.Uptime,
	}
}

func toDeviceEntity(id string, revision uint64, doc *deviceDocument) *device.Device {
	lastSeen := doc.LastSeen
	if lastSeen == nil {
		lastSeen = doc.LastHeartbeat
	}
	// An absent status stays empty so the reconciler writes one explicitly.
	return &device.Device{
		ID:           id,
		Name:         doc.Name,
		Status:       device.Status(doc.Status),
		LastSeen:     fromMillisPtr(lastSeen),
		FirstSeen:    fromMillisPtr(doc.FirstSeen),
		ScanCount:    doc.ScanCount,
		IPAddress:    doc.IPAddress,
		FreeHeap:     doc.FreeHeap,
		Version:      doc.Version,
		BatteryLevel: doc.BatteryLevel,
		Uptime:       doc.Uptime,
		Revision:     revision,
	}
}

func toScanDocument(s *scan.Scan) *scanDocument {
	doc := &scanDocument{
		Barcode:   s.Barcode,
		DeviceID:  s.DeviceID,
		Timestamp: millis(s.Timestamp),
		Location:  s.Location,
		Mode:      s.Mode,
		Type:      s.Type,
		Processed: s.Processed,
		ItemID:    s.ItemID,
	}
	if s.ItemFound {
		found := true
		doc.ItemFound = &found
	}
	return doc
}

func toScanEntity(id string, doc *scanDocument) *scan.Scan {
	return &scan.Scan{
		ID:        id,
		Barcode:   doc.Barcode,
		DeviceID:  doc.DeviceID,
		Timestamp: fromMillis(doc.Timestamp),
		Location:  doc.Location,
		Mode:      doc.Mode,
		Type:      doc.Type,
		Processed: doc.Processed,
		ItemFound: doc.ItemFound != nil && *doc.ItemFound,
		ItemID:    doc.ItemID,
	}
}

func toAttendanceDocument(r *attendance.Record) *attendanceDocument {
	return &attendanceDocument{
		NIM:       r.NIM,
		Nama:      r.Nama,
		Timestamp: millis(r.Timestamp),
		DeviceID:  r.DeviceID,
		SessionID: r.SessionID,
		EventName: r.EventName,
		Location:  r.Location,
		Scanned:   true,
		Mode:      r.Mode,
		Type:      r.Type,
	}
}

func toAttendanceEntity(id string, doc *attendanceDocument) *attendance.Record {
	return &attendance.Record{
		ID:        id,
		NIM:       doc.NIM,
		Nama:      doc.Nama,
		Timestamp: fromMillis(doc.Timestamp),
		DeviceID:  doc.DeviceID,
		SessionID: doc.SessionID,
		EventName: doc.EventName,
		Location:  doc.Location,
		Mode:      doc.Mode,
		Type:      doc.Type,
	}
}
