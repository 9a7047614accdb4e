package device

import (
	domainDevice "stokmanager/internal/domain/device"
	"stokmanager/pkg/utils"
)

// MaxDeviceIDLength bounds stored device ids, in runes.
const MaxDeviceIDLength = 128

// NormalizeDeviceID cleans a reported device id. Devices that report none
// are filed under domainDevice.UnknownID and over-long ids are cut to
// MaxDeviceIDLength rather than rejected.
func NormalizeDeviceID(id string) string {
	id = utils.SanitizeIdentifier(id)
	if id == "" {
		return domainDevice.UnknownID
	}
	if runes := []rune(id); len(runes) > MaxDeviceIDLength {
		id = string(runes[:MaxDeviceIDLength])
	}
	return id
}

func applyHeartbeat(d *domainDevice.Device, req *HeartbeatRequest) {
	d.Uptime = 0
	if req.Uptime != nil {
		d.Uptime = *req.Uptime
	}
	if req.FreeHeap != nil {
		d.FreeHeap = *req.FreeHeap
	}
	// Firmware restarts reset the reported counter; the stored one only
	// moves forward.
	if req.ScanCount != nil && *req.ScanCount > d.ScanCount {
		d.ScanCount = *req.ScanCount
	}
	if req.Version != nil && *req.Version != "" {
		d.Version = *req.Version
	}
	if d.Version == "" {
		d.Version = domainDevice.DefaultVersion
	}
	if req.BatteryLevel != nil {
		level := *req.BatteryLevel
		d.BatteryLevel = &level
	}
}
