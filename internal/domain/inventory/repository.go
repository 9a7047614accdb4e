package inventory

import "context"

type Repository interface {
	List(ctx context.Context) ([]*Item, error)
	Get(ctx context.Context, itemID string) (*Item, error)
	Create(ctx context.Context, item *Item) error
	Delete(ctx context.Context, itemID string) error
}
