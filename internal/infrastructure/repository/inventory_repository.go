package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainInventory "stokmanager/internal/domain/inventory"
	"stokmanager/internal/store"
)

// Inventory documents are free-form catalog objects; only barcode, name and
// createdAt are interpreted, everything else round-trips through Attrs.
const (
	fieldBarcode   = "barcode"
	fieldName      = "name"
	fieldCreatedAt = "createdAt"
)

type InventoryRepository struct {
	store store.Store
}

func NewInventoryRepository(s store.Store) domainInventory.Repository {
	return &InventoryRepository{store: s}
}

func (r *InventoryRepository) List(ctx context.Context) ([]*domainInventory.Item, error) {
	snaps, err := r.store.List(ctx, store.Inventory)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	items := make([]*domainInventory.Item, 0, len(snaps))
	for i := range snaps {
		item, err := decodeItem(&snaps[i])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *InventoryRepository) Get(ctx context.Context, itemID string) (*domainInventory.Item, error) {
	snap, err := r.store.Get(ctx, store.Inventory, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainInventory.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	return decodeItem(snap)
}

func (r *InventoryRepository) Create(ctx context.Context, item *domainInventory.Item) error {
	doc := make(map[string]any, len(item.Attrs)+3)
	for k, v := range item.Attrs {
		doc[k] = v
	}
	doc[fieldBarcode] = item.Barcode
	if item.Name != "" {
		doc[fieldName] = item.Name
	}
	doc[fieldCreatedAt] = millis(item.CreatedAt)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode inventory item: %w", err)
	}

	id := item.ID
	if id == "" {
		id = store.NewKey()
	}
	if _, err := r.store.CompareAndSet(ctx, store.Inventory, id, data, 0); err != nil {
		return fmt.Errorf("failed to create inventory item: %w", err)
	}

	item.ID = id
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, itemID string) error {
	err := r.store.Delete(ctx, store.Inventory, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return domainInventory.ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete inventory item: %w", err)
	}
	return nil
}

func decodeItem(snap *store.Snapshot) (*domainInventory.Item, error) {
	var doc map[string]any
	if err := json.Unmarshal(snap.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode inventory item %s: %w", snap.Key, err)
	}

	item := &domainInventory.Item{ID: snap.Key, Attrs: map[string]any{}}
	for k, v := range doc {
		switch k {
		case fieldBarcode:
			item.Barcode, _ = v.(string)
		case fieldName:
			item.Name, _ = v.(string)
		case fieldCreatedAt:
			if ms, ok := v.(float64); ok {
				item.CreatedAt = fromMillis(int64(ms))
			}
		default:
			item.Attrs[k] = v
		}
	}
	return item, nil
}
