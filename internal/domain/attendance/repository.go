package attendance

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error

	// ListBetween returns records with from <= timestamp < to, oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]*Record, error)
}
