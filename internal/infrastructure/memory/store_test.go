package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokmanager/internal/store"
)

func TestCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	rev, err := s.CompareAndSet(ctx, store.Devices, "ESP32-01", []byte(`{"a":1}`), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)

	_, err = s.CompareAndSet(ctx, store.Devices, "ESP32-01", []byte(`{"a":2}`), 0)
	assert.ErrorIs(t, err, store.ErrConflict)

	rev, err = s.CompareAndSet(ctx, store.Devices, "ESP32-01", []byte(`{"a":2}`), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rev)

	snap, err := s.Get(ctx, store.Devices, "ESP32-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(snap.Value))
	assert.Equal(t, uint64(2), snap.Revision)
}

func TestGetMissing(t *testing.T) {
	_, err := NewStore().Get(context.Background(), store.Devices, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSkipsStaleAndMissing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Set(ctx, store.Devices, "a", []byte(`{"status":"online","scanCount":3}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Devices, "b", []byte(`{"status":"online"}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Devices, "b", []byte(`{"status":"online"}`))
	require.NoError(t, err)

	skipped, err := s.Update(ctx, store.Devices, []store.Patch{
		{Key: "a", Revision: 1, Fields: map[string]any{"status": "offline"}},
		{Key: "b", Revision: 1, Fields: map[string]any{"status": "offline"}},
		{Key: "c", Fields: map[string]any{"status": "offline"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, skipped)

	a, err := s.Get(ctx, store.Devices, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"offline","scanCount":3}`, string(a.Value))

	b, err := s.Get(ctx, store.Devices, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"online"}`, string(b.Value))
}

func TestListIsSortedAndClosedStoreIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, k := range []string{"c", "a", "b"} {
		_, err := s.Set(ctx, store.Inventory, k, []byte(`{}`))
		require.NoError(t, err)
	}

	list, err := s.List(ctx, store.Inventory)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Key)
	assert.Equal(t, "c", list[2].Key)

	require.NoError(t, s.Close())
	_, err = s.List(ctx, store.Inventory)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), store.ErrUnavailable)
}
