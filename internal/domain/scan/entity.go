package scan

import "time"

const (
	DefaultLocation = "Unknown"

	ModeInventory  = "inventory"
	ModeAttendance = "attendance"

	TypeInventoryScan  = "inventory_scan"
	TypeAttendanceScan = "attendance_scan"
)

// Scan is one barcode read reported by a device.
type Scan struct {
	ID        string
	Barcode   string
	DeviceID  string
	Timestamp time.Time
	Location  string
	Mode      string
	Type      string
	Processed bool
	ItemFound bool
	ItemID    string
}

// IsAttendance reports whether the scan was taken in attendance mode.
func (s *Scan) IsAttendance() bool {
	return s.Mode == ModeAttendance || s.Type == TypeAttendanceScan
}
