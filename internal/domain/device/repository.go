package device

import "context"

// Repository defines the interface for device registry operations
type Repository interface {
	Get(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context) ([]*Device, error)

	// Save writes the whole device if the stored revision still equals
	// d.Revision, and advances d.Revision. Returns ErrConcurrentUpdate
	// otherwise.
	Save(ctx context.Context, d *Device) error

	// UpdateStatuses applies status changes in one batch. Changes whose
	// revision is stale are skipped and their device ids returned.
	UpdateStatuses(ctx context.Context, changes []StatusChange) (skipped []string, err error)
}

// StatusChange is a staged status transition for a single device.
type StatusChange struct {
	DeviceID string
	Revision uint64
	From     Status
	To       Status
}

// Counts summarises a registry listing.
type Counts struct {
	Total   int
	Online  int
	Offline int
}

// Count tallies devices by status.
func Count(devices []*Device) Counts {
	c := Counts{Total: len(devices)}
	for _, d := range devices {
		switch d.Status {
		case StatusOnline:
			c.Online++
		case StatusOffline:
			c.Offline++
		}
	}
	return c
}
