package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stokmanager/internal/infrastructure/database/postgres/models"
	"stokmanager/internal/store"
)

// NodeStore implements store.Store on a single jsonb table.
type NodeStore struct {
	db *DB
}

var _ store.Store = (*NodeStore)(nil)

func NewNodeStore(db *DB) *NodeStore {
	return &NodeStore{db: db}
}

func (s *NodeStore) Get(ctx context.Context, collection, key string) (*store.Snapshot, error) {
	var m models.NodeModel
	err := s.db.DB.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		First(&m).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to get %s: %w", store.Path(collection, key), err))
	}

	return toSnapshot(&m), nil
}

func (s *NodeStore) List(ctx context.Context, collection string) ([]store.Snapshot, error) {
	var rows []models.NodeModel
	err := s.db.DB.WithContext(ctx).
		Where("collection = ?", collection).
		Order("key ASC").
		Find(&rows).Error
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to list %s: %w", collection, err))
	}

	out := make([]store.Snapshot, len(rows))
	for i := range rows {
		out[i] = *toSnapshot(&rows[i])
	}
	return out, nil
}

func (s *NodeStore) Set(ctx context.Context, collection, key string, value []byte) (uint64, error) {
	now := time.Now()
	m := models.NodeModel{
		Collection: collection,
		Key:        key,
		Value:      string(value),
		Revision:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.db.DB.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "collection"}, {Name: "key"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"value":      gorm.Expr("EXCLUDED.value"),
					"revision":   gorm.Expr("store_nodes.revision + 1"),
					"updated_at": now,
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "revision"}}},
		).
		Create(&m).Error
	if err != nil {
		return 0, store.Unavailable(fmt.Errorf("failed to set %s: %w", store.Path(collection, key), err))
	}

	return m.Revision, nil
}

func (s *NodeStore) CompareAndSet(ctx context.Context, collection, key string, value []byte, revision uint64) (uint64, error) {
	now := time.Now()

	if revision == 0 {
		m := models.NodeModel{
			Collection: collection,
			Key:        key,
			Value:      string(value),
			Revision:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		result := s.db.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&m)
		if result.Error != nil {
			return 0, store.Unavailable(fmt.Errorf("failed to create %s: %w", store.Path(collection, key), result.Error))
		}
		if result.RowsAffected == 0 {
			return 0, store.ErrConflict
		}
		return 1, nil
	}

	result := s.db.DB.WithContext(ctx).
		Model(&models.NodeModel{}).
		Where("collection = ? AND key = ? AND revision = ?", collection, key, revision).
		Updates(map[string]interface{}{
			"value":      string(value),
			"revision":   revision + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, store.Unavailable(fmt.Errorf("failed to update %s: %w", store.Path(collection, key), result.Error))
	}
	if result.RowsAffected == 0 {
		return 0, store.ErrConflict
	}

	return revision + 1, nil
}

func (s *NodeStore) Update(ctx context.Context, collection string, patches []store.Patch) ([]string, error) {
	if len(patches) == 0 {
		return nil, nil
	}

	keys := make([]string, len(patches))
	for i, p := range patches {
		keys[i] = p.Key
	}

	var skipped []string
	err := s.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.NodeModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("collection = ? AND key IN ?", collection, keys).
			Find(&rows).Error; err != nil {
			return store.Unavailable(fmt.Errorf("failed to lock %s: %w", collection, err))
		}

		current := make(map[string]*models.NodeModel, len(rows))
		for i := range rows {
			current[rows[i].Key] = &rows[i]
		}

		now := time.Now()
		for _, p := range patches {
			row, ok := current[p.Key]
			if !ok || (p.Revision != 0 && row.Revision != p.Revision) {
				skipped = append(skipped, p.Key)
				continue
			}
			doc, err := store.MergeFields([]byte(row.Value), p.Fields)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.NodeModel{}).
				Where("collection = ? AND key = ?", collection, p.Key).
				Updates(map[string]interface{}{
					"value":      string(doc),
					"revision":   row.Revision + 1,
					"updated_at": now,
				}).Error; err != nil {
				return store.Unavailable(fmt.Errorf("failed to patch %s: %w", store.Path(collection, p.Key), err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return skipped, nil
}

func (s *NodeStore) Delete(ctx context.Context, collection, key string) error {
	result := s.db.DB.WithContext(ctx).
		Where("collection = ? AND key = ?", collection, key).
		Delete(&models.NodeModel{})
	if result.Error != nil {
		return store.Unavailable(fmt.Errorf("failed to delete %s: %w", store.Path(collection, key), result.Error))
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *NodeStore) Ping(ctx context.Context) error {
	if err := s.db.Health(ctx); err != nil {
		return store.Unavailable(err)
	}
	return nil
}

func (s *NodeStore) Close() error {
	return s.db.Close()
}

func toSnapshot(m *models.NodeModel) *store.Snapshot {
	return &store.Snapshot{
		Key:      m.Key,
		Value:    []byte(m.Value),
		Revision: m.Revision,
	}
}
