package inventory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	domainInventory "stokmanager/internal/domain/inventory"
	"stokmanager/internal/logger"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

// Service implements inventory catalog use cases and keeps the barcode
// index in step with its own writes.
type Service struct {
	repo    domainInventory.Repository
	index   *Index
	timeout time.Duration
	now     func() time.Time

	// writeMu serialises the uniqueness check with the write that follows.
	writeMu sync.Mutex
}

func NewService(repo domainInventory.Repository, index *Index, timeout time.Duration, now func() time.Time) *Service {
	return &Service{
		repo:    repo,
		index:   index,
		timeout: timeout,
		now:     nowOr(now),
	}
}

// Match resolves a scanned barcode to an item id.
func (s *Service) Match(ctx context.Context, barcode string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	item, found, err := s.index.Lookup(ctx, barcode)
	if err != nil || !found {
		return "", false, err
	}
	return item.ID, true, nil
}

// Lookup returns the catalog item owning barcode.
func (s *Service) Lookup(ctx context.Context, barcode string) (*ItemResponse, error) {
	barcode = utils.TrimBarcode(barcode)
	if barcode == "" {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, "barcode is required", domainInventory.ErrBarcodeRequired)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	item, found, err := s.index.Lookup(ctx, barcode)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to look up barcode", err)
	}
	if !found {
		return nil, appErrors.NewAppError(appErrors.CodeNotFound, "Item not found", domainInventory.ErrItemNotFound)
	}

	resp := ToItemResponse(item)
	return &resp, nil
}

func (s *Service) ListItems(ctx context.Context) (*ItemListResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to fetch inventory", err)
	}
	return ToItemListResponse(items), nil
}

// CreateItem adds a catalog item. Barcodes are unique across the catalog.
func (s *Service) CreateItem(ctx context.Context, req *CreateItemRequest) (*ItemResponse, error) {
	req.Barcode = utils.TrimBarcode(req.Barcode)
	req.Name = utils.SanitizeText(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeValidation, err.Error(), appErrors.ErrInvalidInput)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Reload so items written by other instances are seen.
	if err := s.index.Refresh(ctx); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to check barcode", err)
	}
	if owner, exists := s.index.Owner(req.Barcode); exists {
		logger.Warn("Rejected duplicate barcode",
			zap.String("barcode", req.Barcode),
			zap.String("owner_id", owner),
			zap.String("event", "inventory_duplicate_barcode"),
		)
		return nil, appErrors.NewAppError(appErrors.CodeConflict, "Barcode already registered", domainInventory.ErrDuplicateBarcode)
	}

	item := &domainInventory.Item{
		Barcode:   req.Barcode,
		Name:      req.Name,
		Attrs:     req.Attrs,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.NewAppError(appErrors.CodeInternal, "Failed to create item", err)
	}
	s.index.Put(item)

	logger.Info("Inventory item created",
		zap.String("item_id", item.ID),
		zap.String("barcode", item.Barcode),
		zap.String("event", "inventory_item_created"),
	)

	resp := ToItemResponse(item)
	return &resp, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	item, err := s.repo.Get(ctx, itemID)
	if errors.Is(err, domainInventory.ErrItemNotFound) {
		return appErrors.NewAppError(appErrors.CodeNotFound, "Item not found", err)
	}
	if err != nil {
		return appErrors.NewAppError(appErrors.CodeInternal, "Failed to fetch item", err)
	}

	if err := s.repo.Delete(ctx, itemID); err != nil {
		if errors.Is(err, domainInventory.ErrItemNotFound) {
			return appErrors.NewAppError(appErrors.CodeNotFound, "Item not found", err)
		}
		return appErrors.NewAppError(appErrors.CodeInternal, "Failed to delete item", err)
	}
	s.index.Remove(item)

	logger.Info("Inventory item deleted",
		zap.String("item_id", itemID),
		zap.String("barcode", item.Barcode),
		zap.String("event", "inventory_item_deleted"),
	)
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
