package attendance

import "time"

const DefaultDeviceID = "api"

// Record is one attendee check-in.
type Record struct {
	ID        string
	NIM       string
	Nama      string
	Timestamp time.Time
	DeviceID  string
	SessionID string
	EventName string
	Location  string
	Mode      string
	Type      string
}

// Stats summarises the attendance of a single day.
type Stats struct {
	TotalToday   int
	TotalUnique  int
	LastScanTime *time.Time
}
