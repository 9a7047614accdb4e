package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stokmanager/internal/infrastructure/memory"
	"stokmanager/internal/infrastructure/repository"
	"stokmanager/internal/store"
	appErrors "stokmanager/pkg/errors"
)

func newTestService(s store.Store, minGap time.Duration) *Service {
	repo := repository.NewInventoryRepository(s)
	return NewService(repo, NewIndex(repo, minGap, nil), time.Second, nil)
}

func TestCreateItemRejectsDuplicateBarcode(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.NewStore(), 0)

	created, err := svc.CreateItem(ctx, &CreateItemRequest{Barcode: "ABC123", Name: "Kabel LAN"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	_, err = svc.CreateItem(ctx, &CreateItemRequest{Barcode: "ABC123", Name: "Other"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeConflict, appErrors.CodeOf(err))

	_, err = svc.CreateItem(ctx, &CreateItemRequest{Name: "No barcode"})
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))
}

func TestIndexLowestKeyWinsOnOutOfBandDuplicates(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	_, err := s.Set(ctx, store.Inventory, "item-b", []byte(`{"barcode":"DUP"}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Inventory, "item-a", []byte(`{"barcode":"DUP"}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Inventory, "item-c", []byte(`{"barcode":"DUP"}`))
	require.NoError(t, err)

	svc := newTestService(s, time.Minute)
	for i := 0; i < 3; i++ {
		id, found, err := svc.Match(ctx, "DUP")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "item-a", id)
	}
}

func TestLookupMissRefreshesOncePerGap(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	now := time.UnixMilli(1_700_000_000_000)
	repo := repository.NewInventoryRepository(s)
	index := NewIndex(repo, 5*time.Second, func() time.Time { return now })
	svc := NewService(repo, index, time.Second, nil)

	_, found, err := svc.Match(ctx, "NEW")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.Set(ctx, store.Inventory, "item-1", []byte(`{"barcode":"NEW"}`))
	require.NoError(t, err)

	_, found, err = svc.Match(ctx, "NEW")
	require.NoError(t, err)
	assert.False(t, found, "refresh must wait for the minimum gap")

	now = now.Add(5 * time.Second)
	id, found, err := svc.Match(ctx, "NEW")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "item-1", id)
}

func TestLookupAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(memory.NewStore(), time.Minute)

	created, err := svc.CreateItem(ctx, &CreateItemRequest{
		Barcode: "8991234567890",
		Name:    "Mouse",
		Attrs:   map[string]any{"stock": float64(4)},
	})
	require.NoError(t, err)

	item, err := svc.Lookup(ctx, "8991234567890")
	require.NoError(t, err)
	assert.Equal(t, created.ID, item.ID)
	assert.Equal(t, "Mouse", item.Name)
	assert.Equal(t, float64(4), item.Attributes["stock"])

	require.NoError(t, svc.DeleteItem(ctx, created.ID))

	_, err = svc.Lookup(ctx, "8991234567890")
	assert.Equal(t, appErrors.CodeNotFound, appErrors.CodeOf(err))

	err = svc.DeleteItem(ctx, created.ID)
	assert.Equal(t, appErrors.CodeNotFound, appErrors.CodeOf(err))
}

func TestMatchConfirmsHitAgainstCatalog(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	_, err := s.Set(ctx, store.Inventory, "item-a", []byte(`{"barcode":"DUP"}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Inventory, "item-b", []byte(`{"barcode":"DUP"}`))
	require.NoError(t, err)

	svc := newTestService(s, time.Hour)
	id, found, err := svc.Match(ctx, "DUP")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "item-a", id)

	// Deleted behind the index's back: the remaining duplicate takes over.
	require.NoError(t, s.Delete(ctx, store.Inventory, "item-a"))
	id, found, err = svc.Match(ctx, "DUP")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "item-b", id)

	_, err = s.Set(ctx, store.Inventory, "item-b", []byte(`{"barcode":"RENAMED"}`))
	require.NoError(t, err)
	_, found, err = svc.Match(ctx, "DUP")
	require.NoError(t, err)
	assert.False(t, found)

	item, err := svc.Lookup(ctx, "RENAMED")
	require.NoError(t, err)
	assert.Equal(t, "item-b", item.ID)
}

func TestRefreshJobStopsOnCancel(t *testing.T) {
	svc := newTestService(memory.NewStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartRefreshJob(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh job did not stop")
	}
}
