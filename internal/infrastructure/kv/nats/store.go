// Package nats stores documents in a JetStream key-value bucket. Keys are
// "<collection>.<base64url(key)>" and bucket revisions back CompareAndSet.
package nats

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"stokmanager/internal/config"
	"stokmanager/internal/logger"
	"stokmanager/internal/store"
)

type Store struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

var _ store.Store = (*Store)(nil)

func NewStore(ctx context.Context, cfg config.NATSConfig) (*Store, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("stokmanager"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  cfg.Bucket,
		History: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &Store{nc: nc, kv: kv}, nil
}

func encodeKey(collection, key string) string {
	return collection + "." + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(collection, subject string) (string, bool) {
	encoded, ok := strings.CutPrefix(subject, collection+".")
	if !ok {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *Store) Get(ctx context.Context, collection, key string) (*store.Snapshot, error) {
	entry, err := s.kv.Get(ctx, encodeKey(collection, key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable(fmt.Errorf("failed to get %s: %w", store.Path(collection, key), err))
	}
	return &store.Snapshot{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
}

func (s *Store) List(ctx context.Context, collection string) ([]store.Snapshot, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, store.Unavailable(fmt.Errorf("failed to list %s: %w", collection, err))
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for subject := range lister.Keys() {
		if key, ok := decodeKey(collection, subject); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := make([]store.Snapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := s.Get(ctx, collection, key)
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
	rev, err := s.kv.Put(ctx, encodeKey(collection, key), value)
	if err != nil {
		return 0, store.Unavailable(fmt.Errorf("failed to put %s: %w", store.Path(collection, key), err))
	}
	return rev, nil
}

func (s *Store) CompareAndSet(ctx context.Context, collection, key string, value []byte, revision uint64) (uint64, error) {
	var (
		rev uint64
		err error
	)
	if revision == 0 {
		rev, err = s.kv.Create(ctx, encodeKey(collection, key), value)
	} else {
		rev, err = s.kv.Update(ctx, encodeKey(collection, key), value, revision)
	}
	if err == nil {
		return rev, nil
	}
	if isConflict(err) {
		return 0, store.ErrConflict
	}
	return 0, store.Unavailable(fmt.Errorf("failed to compare-and-set %s: %w", store.Path(collection, key), err))
}

// Update applies each patch with its own conditional write; the bucket has
// no multi-key transactions, so a batch is not atomic as a whole.
func (s *Store) Update(ctx context.Context, collection string, patches []store.Patch) ([]string, error) {
	var skipped []string
	for _, p := range patches {
		snap, err := s.Get(ctx, collection, p.Key)
		if errors.Is(err, store.ErrNotFound) {
			skipped = append(skipped, p.Key)
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Revision != 0 && snap.Revision != p.Revision {
			skipped = append(skipped, p.Key)
			continue
		}

		doc, err := store.MergeFields(snap.Value, p.Fields)
		if err != nil {
			return nil, err
		}
		if _, err := s.CompareAndSet(ctx, collection, p.Key, doc, snap.Revision); err != nil {
			if errors.Is(err, store.ErrConflict) {
				skipped = append(skipped, p.Key)
				continue
			}
			return nil, err
		}
	}
	return skipped, nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.Get(ctx, collection, key); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, encodeKey(collection, key)); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		return store.Unavailable(fmt.Errorf("failed to delete %s: %w", store.Path(collection, key), err))
	}
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	if !s.nc.IsConnected() {
		return store.Unavailable(errors.New("nats connection is not established"))
	}
	return nil
}

func (s *Store) Close() error {
	s.nc.Close()
	return nil
}

func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
