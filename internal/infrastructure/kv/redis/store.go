// Package redis stores documents as redis hashes {value, rev} with one set
// per collection indexing its keys. Conditional writes use WATCH/MULTI.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"stokmanager/internal/config"
	"stokmanager/internal/store"
)

const (
	fieldValue    = "value"
	fieldRevision = "rev"
	maxTxAttempts = 5
)

type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ store.Store = (*Store)(nil)

func NewStore(cfg config.RedisConfig) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		keyPrefix: cfg.KeyPrefix,
	}
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) nodeKey(collection, key string) string {
	return s.keyPrefix + store.Path(collection, key)
}

func (s *Store) indexKey(collection string) string {
	return s.keyPrefix + "index:" + collection
}

func (s *Store) Get(ctx context.Context, collection, key string) (*store.Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.nodeKey(collection, key)).Result()
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to get %s: %w", store.Path(collection, key), err))
	}
	return decodeNode(key, fields)
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Snapshot, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to list %s: %w", collection, err))
	}
	sort.Strings(keys)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, s.nodeKey(collection, key))
	}
	if len(keys) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, store.Unavailable(fmt.Errorf("failed to list %s: %w", collection, err))
		}
	}

	out := make([]store.Snapshot, 0, len(keys))
	for i, key := range keys {
		snap, err := decodeNode(key, cmds[i].Val())
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, value []byte) (uint64, error) {
	nodeKey := s.nodeKey(collection, key)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, nodeKey, fieldValue, value)
	rev := pipe.HIncrBy(ctx, nodeKey, fieldRevision, 1)
	pipe.SAdd(ctx, s.indexKey(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, store.Unavailable(fmt.Errorf("failed to set %s: %w", store.Path(collection, key), err))
	}
	return uint64(rev.Val()), nil
}

func (s *Store) CompareAndSet(ctx context.Context, collection, key string, value []byte, revision uint64) (uint64, error) {
	nodeKey := s.nodeKey(collection, key)
	var next uint64

	txf := func(tx *redis.Tx) error {
		current, err := currentRevision(ctx, tx, nodeKey)
		if err != nil {
			return err
		}
		if current != revision {
			return store.ErrConflict
		}
		next = revision + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, nodeKey, fieldValue, value, fieldRevision, next)
			pipe.SAdd(ctx, s.indexKey(collection), key)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, nodeKey)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, store.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return 0, store.ErrConflict
	default:
		return 0, store.Unavailable(fmt.Errorf("failed to compare-and-set %s: %w", store.Path(collection, key), err))
	}
}

func (s *Store) Update(ctx context.Context, collection string, patches []store.Patch) ([]string, error) {
	if len(patches) == 0 {
		return nil, nil
	}

	nodeKeys := make([]string, len(patches))
	for i, p := range patches {
		nodeKeys[i] = s.nodeKey(collection, p.Key)
	}

	var skipped []string
	txf := func(tx *redis.Tx) error {
		skipped = skipped[:0]
		merged := make(map[string][]byte, len(patches))
		revisions := make(map[string]uint64, len(patches))

		for i, p := range patches {
			fields, err := tx.HGetAll(ctx, nodeKeys[i]).Result()
			if err != nil {
				return err
			}
			snap, err := decodeNode(p.Key, fields)
			if errors.Is(err, store.ErrNotFound) {
				skipped = append(skipped, p.Key)
				continue
			}
			if err != nil {
				return err
			}
			if p.Revision != 0 && snap.Revision != p.Revision {
				skipped = append(skipped, p.Key)
				continue
			}
			doc, err := store.MergeFields(snap.Value, p.Fields)
			if err != nil {
				return err
			}
			merged[nodeKeys[i]] = doc
			revisions[nodeKeys[i]] = snap.Revision + 1
		}

		if len(merged) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for nodeKey, doc := range merged {
				pipe.HSet(ctx, nodeKey, fieldValue, doc, fieldRevision, revisions[nodeKey])
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, nodeKeys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to update %s: %w", collection, err))
	}
	return append([]string(nil), skipped...), nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	pipe := s.client.TxPipeline()
	removed := pipe.Del(ctx, s.nodeKey(collection, key))
	pipe.SRem(ctx, s.indexKey(collection), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return store.Unavailable(fmt.Errorf("failed to delete %s: %w", store.Path(collection, key), err))
	}
	if removed.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return store.Unavailable(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func currentRevision(ctx context.Context, tx *redis.Tx, nodeKey string) (uint64, error) {
	raw, err := tx.HGet(ctx, nodeKey, fieldRevision).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func decodeNode(key string, fields map[string]string) (*store.Snapshot, error) {
	value, ok := fields[fieldValue]
	if !ok {
		return nil, store.ErrNotFound
	}
	rev, err := strconv.ParseUint(fields[fieldRevision], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt revision for %s: %w", key, err)
	}
	return &store.Snapshot{Key: key, Value: []byte(value), Revision: rev}, nil
}
