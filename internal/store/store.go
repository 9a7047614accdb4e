//go:generate mockgen -destination=mocks/mock_store.go -package=mocks stokmanager/internal/store Store

// Package store defines the path-addressed document store the service keeps
// its devices, scans, inventory and attendance in. Documents live at
// "collection/key" and carry a revision that increases on every write.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Collections used by the service.
const (
	Devices    = "devices"
	Scans      = "scans"
	Inventory  = "inventory"
	Attendance = "attendance"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: revision conflict")
	ErrUnavailable = errors.New("store: unavailable")
)

// Snapshot is a document read from the store.
type Snapshot struct {
	Key      string
	Value    []byte
	Revision uint64
}

// Patch is a field-level update of a single document. A zero Revision
// applies unconditionally; otherwise the patch is skipped when the stored
// revision has moved on.
type Patch struct {
	Key      string
	Revision uint64
	Fields   map[string]any
}

// Store is the contract every backend implements.
type Store interface {
	// Get reads the document at collection/key. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, key string) (*Snapshot, error)

	// List returns every document directly under collection.
	List(ctx context.Context, collection string) ([]Snapshot, error)

	// Set replaces the document at collection/key and returns its new revision.
	Set(ctx context.Context, collection, key string, value []byte) (uint64, error)

	// CompareAndSet replaces the document only if its current revision equals
	// revision. A revision of 0 means the document must not exist yet.
	// Returns ErrConflict when the precondition fails.
	CompareAndSet(ctx context.Context, collection, key string, value []byte, revision uint64) (uint64, error)

	// Update merges the fields of every patch into the existing documents.
	// Patches targeting missing documents or stale revisions are skipped and
	// their keys returned; the remaining patches are applied.
	Update(ctx context.Context, collection string, patches []Patch) (skipped []string, err error)

	// Delete removes the document at collection/key. Returns ErrNotFound if
	// absent.
	Delete(ctx context.Context, collection, key string) error

	Ping(ctx context.Context) error
	Close() error
}

// NewKey returns a unique, time-ordered key for a new document.
func NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Path joins a collection and key the way backends address documents.
func Path(collection, key string) string {
	return collection + "/" + key
}

// Unavailable wraps err so callers can test for ErrUnavailable.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}
