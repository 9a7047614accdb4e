package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainDevice "stokmanager/internal/domain/device"
	"stokmanager/internal/store"
)

// DeviceRepository implements domainDevice.Repository on the path store
type DeviceRepository struct {
	store store.Store
}

func NewDeviceRepository(s store.Store) domainDevice.Repository {
	return &DeviceRepository{store: s}
}

func (r *DeviceRepository) Get(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	snap, err := r.store.Get(ctx, store.Devices, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return decodeDevice(snap)
}

func (r *DeviceRepository) List(ctx context.Context) ([]*domainDevice.Device, error) {
	snaps, err := r.store.List(ctx, store.Devices)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]*domainDevice.Device, 0, len(snaps))
	for i := range snaps {
		d, err := decodeDevice(&snaps[i])
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func (r *DeviceRepository) Save(ctx context.Context, d *domainDevice.Device) error {
	data, err := json.Marshal(toDeviceDocument(d))
	if err != nil {
		return fmt.Errorf("failed to encode device %s: %w", d.ID, err)
	}

	rev, err := r.store.CompareAndSet(ctx, store.Devices, d.ID, data, d.Revision)
	if errors.Is(err, store.ErrConflict) {
		return domainDevice.ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	d.Revision = rev
	return nil
}

func (r *DeviceRepository) UpdateStatuses(ctx context.Context, changes []domainDevice.StatusChange) ([]string, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	patches := make([]store.Patch, len(changes))
	for i, c := range changes {
		patches[i] = store.Patch{
			Key:      c.DeviceID,
			Revision: c.Revision,
			Fields:   map[string]any{"status": string(c.To)},
		}
	}

	skipped, err := r.store.Update(ctx, store.Devices, patches)
	if err != nil {
		return nil, fmt.Errorf("failed to update device statuses: %w", err)
	}
	return skipped, nil
}

func decodeDevice(snap *store.Snapshot) (*domainDevice.Device, error) {
	var doc deviceDocument
	if err := json.Unmarshal(snap.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode device %s: %w", snap.Key, err)
	}
	return toDeviceEntity(snap.Key, snap.Revision, &doc), nil
}
