package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	domainAttendance "stokmanager/internal/domain/attendance"
	"stokmanager/internal/store"
)

type AttendanceRepository struct {
	store store.Store
}

func NewAttendanceRepository(s store.Store) domainAttendance.Repository {
	return &AttendanceRepository{store: s}
}

func (r *AttendanceRepository) Create(ctx context.Context, rec *domainAttendance.Record) error {
	data, err := json.Marshal(toAttendanceDocument(rec))
	if err != nil {
		return fmt.Errorf("failed to encode attendance: %w", err)
	}

	id := store.NewKey()
	if _, err := r.store.CompareAndSet(ctx, store.Attendance, id, data, 0); err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}

	rec.ID = id
	return nil
}

func (r *AttendanceRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*domainAttendance.Record, error) {
	snaps, err := r.store.List(ctx, store.Attendance)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}

	var records []*domainAttendance.Record
	for i := range snaps {
		var doc attendanceDocument
		if err := json.Unmarshal(snaps[i].Value, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode attendance %s: %w", snaps[i].Key, err)
		}
		ts := fromMillis(doc.Timestamp)
		if ts.Before(from) || !ts.Before(to) {
			continue
		}
		records = append(records, toAttendanceEntity(snaps[i].Key, &doc))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}
