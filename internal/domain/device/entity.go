package device

import "time"

// UnknownID is the registry key used when a device reports without an id.
const UnknownID = "unknown"

// DefaultVersion is assumed for devices that never reported firmware.
const DefaultVersion = "1.0.0"

// Device is one scanning unit in the registry.
type Device struct {
	ID           string
	Name         string
	Status       Status
	LastSeen     *time.Time
	FirstSeen    *time.Time
	ScanCount    int64
	IPAddress    string
	FreeHeap     int64
	Version      string
	BatteryLevel *int
	Uptime       int64

	// Revision is the store revision this value was read at; 0 for a device
	// that has not been persisted yet.
	Revision uint64
}

// Status represents the presence status of a device
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Silence returns how long the device has been quiet. ok is false when the
// device was never seen, which counts as infinite silence.
func (d *Device) Silence(now time.Time) (silence time.Duration, ok bool) {
	if d.LastSeen == nil {
		return 0, false
	}
	return now.Sub(*d.LastSeen), true
}

// ExpectedStatus derives the status the staleness rule demands at now.
func (d *Device) ExpectedStatus(now time.Time, threshold time.Duration) Status {
	silence, ok := d.Silence(now)
	if !ok || silence > threshold {
		return StatusOffline
	}
	return StatusOnline
}

// MarkSeen promotes the device to online and stamps lastSeen. firstSeen is
// set only the first time.
func (d *Device) MarkSeen(now time.Time, ip string) {
	d.Status = StatusOnline
	seen := now
	d.LastSeen = &seen
	if d.FirstSeen == nil {
		first := now
		d.FirstSeen = &first
	}
	d.IPAddress = ip
}

// DisplayName falls back to the id when no name was assigned.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
