package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainScan "stokmanager/internal/domain/scan"
	"stokmanager/internal/store"
)

type ScanRepository struct {
	store store.Store
}

func NewScanRepository(s store.Store) domainScan.Repository {
	return &ScanRepository{store: s}
}

// Create stores s under s.ID, assigning a key on the first attempt so a
// retried call writes the same document. A conflict on a key this scan
// already owns means an earlier attempt committed before its reply was lost.
func (r *ScanRepository) Create(ctx context.Context, s *domainScan.Scan) error {
	doc := toScanDocument(s)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}

	if s.ID == "" {
		s.ID = store.NewKey()
	}
	_, err = r.store.CompareAndSet(ctx, store.Scans, s.ID, data, 0)
	if errors.Is(err, store.ErrConflict) {
		if r.alreadyStored(ctx, s.ID, doc) {
			return nil
		}
		return fmt.Errorf("failed to create scan %s: %w", s.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) alreadyStored(ctx context.Context, id string, want *scanDocument) bool {
	snap, err := r.store.Get(ctx, store.Scans, id)
	if err != nil {
		return false
	}
	var got scanDocument
	if err := json.Unmarshal(snap.Value, &got); err != nil {
		return false
	}
	return got.Barcode == want.Barcode &&
		got.DeviceID == want.DeviceID &&
		got.Timestamp == want.Timestamp
}

func (r *ScanRepository) Get(ctx context.Context, scanID string) (*domainScan.Scan, error) {
	snap, err := r.store.Get(ctx, store.Scans, scanID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainScan.ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	var doc scanDocument
	if err := json.Unmarshal(snap.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode scan %s: %w", scanID, err)
	}
	return toScanEntity(snap.Key, &doc), nil
}

// MarkMatched enriches a scan exactly once. The patch carries the revision
// the scan was read at so a second enrichment racing this one is skipped.
func (r *ScanRepository) MarkMatched(ctx context.Context, scanID, itemID string) error {
	snap, err := r.store.Get(ctx, store.Scans, scanID)
	if errors.Is(err, store.ErrNotFound) {
		return domainScan.ErrScanNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get scan: %w", err)
	}

	var doc scanDocument
	if err := json.Unmarshal(snap.Value, &doc); err != nil {
		return fmt.Errorf("failed to decode scan %s: %w", scanID, err)
	}
	if doc.Processed {
		return domainScan.ErrAlreadyEnriched
	}

	skipped, err := r.store.Update(ctx, store.Scans, []store.Patch{{
		Key:      scanID,
		Revision: snap.Revision,
		Fields: map[string]any{
			"processed": true,
			"itemFound": true,
			"itemId":    itemID,
		},
	}})
	if err != nil {
		return fmt.Errorf("failed to enrich scan: %w", err)
	}
	if len(skipped) > 0 {
		return domainScan.ErrAlreadyEnriched
	}
	return nil
}
