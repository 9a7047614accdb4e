//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks stokmanager/internal/domain/scan Repository

package scan

import "context"

// Repository persists scan records. Records are never updated after
// enrichment.
type Repository interface {
	// Create stores a new scan, assigning its ID when empty. Calling it
	// again with the same scan after a failed attempt does not duplicate it.
	Create(ctx context.Context, s *Scan) error

	// MarkMatched records the inventory item a scan correlated with. It
	// returns ErrAlreadyEnriched if the scan was processed before.
	MarkMatched(ctx context.Context, scanID, itemID string) error

	Get(ctx context.Context, scanID string) (*Scan, error)
}
