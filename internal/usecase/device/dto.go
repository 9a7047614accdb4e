package device

import (
	"sort"
	"time"

	domainDevice "stokmanager/internal/domain/device"
)

// HeartbeatRequest is the liveness ping sent by a scanner. Every optional
// field falls back to the stored value, then to its zero default.
type HeartbeatRequest struct {
	DeviceID     string  `json:"deviceId" validate:"omitempty,max=128"`
	Uptime       *int64  `json:"uptime" validate:"omitempty,min=0"`
	FreeHeap     *int64  `json:"freeHeap" validate:"omitempty,min=0"`
	ScanCount    *int64  `json:"scanCount" validate:"omitempty,min=0"`
	Version      *string `json:"version" validate:"omitempty,max=64"`
	BatteryLevel *int    `json:"batteryLevel" validate:"omitempty,min=0,max=100"`
}

type HeartbeatResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
}

type DeviceResponse struct {
	DeviceID     string `json:"deviceId"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	IPAddress    string `json:"ipAddress"`
	LastSeen     *int64 `json:"lastSeen,omitempty"`
	FirstSeen    *int64 `json:"firstSeen,omitempty"`
	ScanCount    int64  `json:"scanCount"`
	FreeHeap     int64  `json:"freeHeap"`
	Version      string `json:"version,omitempty"`
	BatteryLevel *int   `json:"batteryLevel,omitempty"`
	Uptime       int64  `json:"uptime"`
}

type DeviceListResponse struct {
	Devices   []DeviceResponse `json:"devices"`
	Total     int              `json:"total"`
	Online    int              `json:"online"`
	Offline   int              `json:"offline"`
	Timestamp string           `json:"timestamp"`
}

func ToDeviceResponse(d *domainDevice.Device) DeviceResponse {
	return DeviceResponse{
		DeviceID:     d.ID,
		Name:         d.DisplayName(),
		Status:       string(d.Status),
		IPAddress:    d.IPAddress,
		LastSeen:     unixMilli(d.LastSeen),
		FirstSeen:    unixMilli(d.FirstSeen),
		ScanCount:    d.ScanCount,
		FreeHeap:     d.FreeHeap,
		Version:      d.Version,
		BatteryLevel: d.BatteryLevel,
		Uptime:       d.Uptime,
	}
}

func ToDeviceListResponse(devices []*domainDevice.Device, now time.Time) *DeviceListResponse {
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	out := make([]DeviceResponse, len(devices))
	for i, d := range devices {
		out[i] = ToDeviceResponse(d)
	}
	counts := domainDevice.Count(devices)

	return &DeviceListResponse{
		Devices:   out,
		Total:     counts.Total,
		Online:    counts.Online,
		Offline:   counts.Offline,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

func unixMilli(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
