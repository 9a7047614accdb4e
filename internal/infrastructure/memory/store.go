// Package memory is the process-local store backend used in development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"stokmanager/internal/store"
)

type node struct {
	value    []byte
	revision uint64
}

type Store struct {
	mu     sync.RWMutex
	nodes  map[string]map[string]node
	closed bool
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{nodes: make(map[string]map[string]node)}
}

func (s *Store) Get(_ context.Context, collection, key string) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	n, ok := s.nodes[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Snapshot{Key: key, Value: clone(n.value), Revision: n.revision}, nil
}

func (s *Store) List(_ context.Context, collection string) ([]store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}
	children := s.nodes[collection]
	out := make([]store.Snapshot, 0, len(children))
	for key, n := range children {
		out = append(out, store.Snapshot{Key: key, Value: clone(n.value), Revision: n.revision})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Set(_ context.Context, collection, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrUnavailable
	}
	return s.put(collection, key, value), nil
}

func (s *Store) CompareAndSet(_ context.Context, collection, key string, value []byte, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, store.ErrUnavailable
	}
	current := s.nodes[collection][key].revision
	if current != revision {
		return 0, store.ErrConflict
	}
	return s.put(collection, key, value), nil
}

func (s *Store) Update(_ context.Context, collection string, patches []store.Patch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrUnavailable
	}

	// Validate every merge before touching anything so the batch is all or
	// nothing with respect to encoding errors.
	merged := make(map[string][]byte, len(patches))
	var skipped []string
	for _, p := range patches {
		n, ok := s.nodes[collection][p.Key]
		if !ok || (p.Revision != 0 && n.revision != p.Revision) {
			skipped = append(skipped, p.Key)
			continue
		}
		doc, err := store.MergeFields(n.value, p.Fields)
		if err != nil {
			return nil, err
		}
		merged[p.Key] = doc
	}
	for key, doc := range merged {
		s.put(collection, key, doc)
	}
	return skipped, nil
}

func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrUnavailable
	}
	if _, ok := s.nodes[collection][key]; !ok {
		return store.ErrNotFound
	}
	delete(s.nodes[collection], key)
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrUnavailable
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) put(collection, key string, value []byte) uint64 {
	children, ok := s.nodes[collection]
	if !ok {
		children = make(map[string]node)
		s.nodes[collection] = children
	}
	rev := children[key].revision + 1
	children[key] = node{value: clone(value), revision: rev}
	return rev
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
