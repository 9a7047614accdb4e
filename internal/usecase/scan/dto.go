package scan

type IngestRequest struct {
	Barcode   string `json:"barcode" validate:"required,max=256"`
	DeviceID  string `json:"deviceId" validate:"omitempty,max=128"`
	Timestamp *int64 `json:"timestamp,omitempty" validate:"omitempty,gt=0"`
	Location  string `json:"location,omitempty" validate:"omitempty,max=255"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,max=32"`
	Type      string `json:"type,omitempty" validate:"omitempty,max=64"`
}

// IngestResponse is returned to the scanning device. LocalSave is set when
// the scan could not be persisted; the device keeps it locally instead of
// retrying.
type IngestResponse struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message,omitempty"`
	ScanID    string  `json:"scanId,omitempty"`
	ItemFound bool    `json:"itemFound"`
	ItemID    *string `json:"itemId"`
	LocalSave bool    `json:"localSave,omitempty"`
	Error     string  `json:"error,omitempty"`
	Barcode   string  `json:"barcode,omitempty"`
	DeviceID  string  `json:"deviceId,omitempty"`

	AttendanceRecorded bool `json:"attendanceRecorded,omitempty"`
}
