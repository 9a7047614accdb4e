package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	domainInventory "stokmanager/internal/domain/inventory"
	"stokmanager/internal/logger"
)

// Index maps barcodes to inventory item ids so scans are correlated without
// reading the whole catalog. When the catalog holds duplicate barcodes the
// lowest item id owns the barcode.
type Index struct {
	repo   domainInventory.Repository
	minGap time.Duration
	now    func() time.Time

	mu          sync.RWMutex
	byBarcode   map[string]string
	lastRefresh time.Time
	loaded      bool

	group singleflight.Group
}

func NewIndex(repo domainInventory.Repository, minGap time.Duration, now func() time.Time) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{
		repo:      repo,
		minGap:    minGap,
		now:       now,
		byBarcode: make(map[string]string),
	}
}

// Refresh rebuilds the index from the catalog. Concurrent callers share one
// load.
func (x *Index) Refresh(ctx context.Context) error {
	_, err, _ := x.group.Do("refresh", func() (interface{}, error) {
		items, err := x.repo.List(ctx)
		if err != nil {
			return nil, err
		}

		next := make(map[string]string, len(items))
		duplicates := 0
		for _, item := range items {
			if item.Barcode == "" {
				continue
			}
			owner, exists := next[item.Barcode]
			if exists {
				duplicates++
				logger.Warn("Duplicate barcode in inventory",
					zap.String("barcode", item.Barcode),
					zap.String("item_id", item.ID),
					zap.String("owner_id", owner),
				)
				if owner < item.ID {
					continue
				}
			}
			next[item.Barcode] = item.ID
		}

		x.mu.Lock()
		x.byBarcode = next
		x.lastRefresh = x.now()
		x.loaded = true
		x.mu.Unlock()

		logger.Debug("Inventory index refreshed",
			zap.Int("items", len(items)),
			zap.Int("barcodes", len(next)),
			zap.Int("duplicates", duplicates),
		)
		return nil, nil
	})
	return err
}

// Lookup returns the item owning barcode. A hit is confirmed against the
// catalog, since other writers may have deleted the item or changed its
// barcode; a stale entry is dropped and the catalog reloaded once. A miss
// triggers a reload unless one ran within the minimum gap.
func (x *Index) Lookup(ctx context.Context, barcode string) (*domainInventory.Item, bool, error) {
	if id, ok := x.Owner(barcode); ok {
		item, ok, err := x.confirm(ctx, id, barcode)
		if err != nil || ok {
			return item, ok, err
		}
	} else if !x.stale() {
		return nil, false, nil
	}

	if err := x.Refresh(ctx); err != nil {
		return nil, false, err
	}
	id, ok := x.Owner(barcode)
	if !ok {
		return nil, false, nil
	}
	return x.confirm(ctx, id, barcode)
}

// confirm reads the indexed item and checks it still carries barcode.
func (x *Index) confirm(ctx context.Context, id, barcode string) (*domainInventory.Item, bool, error) {
	item, err := x.repo.Get(ctx, id)
	if errors.Is(err, domainInventory.ErrItemNotFound) {
		logger.Debug("Dropping deleted item from inventory index",
			zap.String("item_id", id),
			zap.String("barcode", barcode),
		)
		x.Remove(&domainInventory.Item{ID: id, Barcode: barcode})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if item.Barcode != barcode {
		logger.Debug("Inventory item barcode changed",
			zap.String("item_id", id),
			zap.String("old_barcode", barcode),
			zap.String("new_barcode", item.Barcode),
		)
		x.Remove(&domainInventory.Item{ID: id, Barcode: barcode})
		x.Put(item)
		return nil, false, nil
	}
	return item, true, nil
}

// Owner reads the index without refreshing it.
func (x *Index) Owner(barcode string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.byBarcode[barcode]
	return id, ok
}

// Put records item in the index, keeping the lowest id on a collision.
func (x *Index) Put(item *domainInventory.Item) {
	if item.Barcode == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if owner, ok := x.byBarcode[item.Barcode]; ok && owner < item.ID {
		return
	}
	x.byBarcode[item.Barcode] = item.ID
}

// Remove drops item from the index if it owns its barcode. The next miss
// on that barcode reloads the catalog, picking up any remaining duplicate.
func (x *Index) Remove(item *domainInventory.Item) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.byBarcode[item.Barcode] == item.ID {
		delete(x.byBarcode, item.Barcode)
		x.lastRefresh = time.Time{}
	}
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byBarcode)
}

func (x *Index) stale() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return !x.loaded || x.now().Sub(x.lastRefresh) >= x.minGap
}
