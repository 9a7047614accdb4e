package device

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainDevice "stokmanager/internal/domain/device"
	"stokmanager/internal/events"
	"stokmanager/internal/infrastructure/memory"
	"stokmanager/internal/infrastructure/repository"
	"stokmanager/internal/metrics"
	"stokmanager/internal/store"
	"stokmanager/internal/store/mocks"
	appErrors "stokmanager/pkg/errors"
	"stokmanager/pkg/utils"
)

type clock struct{ t time.Time }

func newClock() *clock { return &clock{t: time.UnixMilli(1_700_000_000_000)} }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func int64Ptr(v int64) *int64 { return &v }

func newService(s store.Store, c *clock) *Service {
	return NewService(repository.NewDeviceRepository(s), events.NewBus(), metrics.NewTracker(), Options{
		Retry:   utils.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond},
		Timeout: time.Second,
		Now:     c.Now,
	})
}

func TestHeartbeatPreservesFreeHeap(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := memory.NewStore()
	svc := newService(s, c)
	repo := repository.NewDeviceRepository(s)

	_, err := svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "ESP32-01", FreeHeap: int64Ptr(12345)}, "10.0.0.2")
	require.NoError(t, err)

	c.Advance(5 * time.Second)
	_, err = svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "ESP32-01"}, "10.0.0.2")
	require.NoError(t, err)

	d, err := repo.Get(ctx, "ESP32-01")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), d.FreeHeap)
	assert.Equal(t, domainDevice.StatusOnline, d.Status)
	assert.Equal(t, domainDevice.DefaultVersion, d.Version)
	assert.Equal(t, "10.0.0.2", d.IPAddress)
}

func TestHeartbeatFirstSeenImmutable(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	s := memory.NewStore()
	svc := newService(s, c)
	repo := repository.NewDeviceRepository(s)

	_, err := svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "ESP32-02"}, "")
	require.NoError(t, err)
	first, err := repo.Get(ctx, "ESP32-02")
	require.NoError(t, err)

	c.Advance(10 * time.Second)
	_, err = svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "ESP32-02"}, "")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "ESP32-02")
	require.NoError(t, err)

	assert.True(t, first.FirstSeen.Equal(*second.FirstSeen))
	assert.True(t, second.LastSeen.After(*first.LastSeen))
	assert.False(t, second.FirstSeen.After(*second.LastSeen))
}

func TestHeartbeatWithoutDeviceIDUsesUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := newService(s, newClock())

	resp, err := svc.Heartbeat(ctx, &HeartbeatRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, domainDevice.UnknownID, resp.DeviceID)

	_, err = s.Get(ctx, store.Devices, domainDevice.UnknownID)
	assert.NoError(t, err)
}

func TestHeartbeatTruncatesLongDeviceID(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := newService(s, newClock())

	resp, err := svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: strings.Repeat("E", 200)}, "")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("E", MaxDeviceIDLength), resp.DeviceID)

	_, err = s.Get(ctx, store.Devices, resp.DeviceID)
	assert.NoError(t, err)
}

func TestHeartbeatScanCountNeverDecreases(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := newService(s, newClock())
	repo := repository.NewDeviceRepository(s)

	_, err := svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "d", ScanCount: int64Ptr(7)}, "")
	require.NoError(t, err)
	_, err = svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "d", ScanCount: int64Ptr(2)}, "")
	require.NoError(t, err)

	d, err := repo.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.ScanCount)
}

func TestHeartbeatValidation(t *testing.T) {
	svc := newService(memory.NewStore(), newClock())
	level := 140

	_, err := svc.Heartbeat(context.Background(), &HeartbeatRequest{DeviceID: "d", BatteryLevel: &level}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeValidation, appErrors.CodeOf(err))
}

func TestHeartbeatStoreUnavailable(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.Close())
	svc := newService(s, newClock())

	_, err := svc.Heartbeat(context.Background(), &HeartbeatRequest{DeviceID: "d"}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeUnavailable, appErrors.CodeOf(err))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestRecordScanActivityIncrementsExactly(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	svc := newService(s, newClock())
	repo := repository.NewDeviceRepository(s)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.RecordScanActivity(ctx, "ESP32-03", "10.0.0.3"))
	}

	d, err := repo.Get(ctx, "ESP32-03")
	require.NoError(t, err)
	assert.Equal(t, int64(5), d.ScanCount)
	assert.Equal(t, domainDevice.StatusOnline, d.Status)
}

func TestMutateReplaysAfterConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockStore(ctrl)
	svc := newService(mockStore, newClock())

	gomock.InOrder(
		mockStore.EXPECT().Get(gomock.Any(), store.Devices, "d").
			Return(&store.Snapshot{Key: "d", Value: []byte(`{"status":"online","scanCount":3}`), Revision: 4}, nil),
		mockStore.EXPECT().CompareAndSet(gomock.Any(), store.Devices, "d", gomock.Any(), uint64(4)).
			Return(uint64(0), store.ErrConflict),
		mockStore.EXPECT().Get(gomock.Any(), store.Devices, "d").
			Return(&store.Snapshot{Key: "d", Value: []byte(`{"status":"online","scanCount":4}`), Revision: 5}, nil),
		mockStore.EXPECT().CompareAndSet(gomock.Any(), store.Devices, "d", gomock.Any(), uint64(5)).
			DoAndReturn(func(_ context.Context, _, _ string, value []byte, _ uint64) (uint64, error) {
				assert.Contains(t, string(value), `"scanCount":5`)
				return 6, nil
			}),
	)

	require.NoError(t, svc.RecordScanActivity(context.Background(), "d", ""))
}

func TestPromotionPublishesEvent(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	c := newClock()
	svc := NewService(repository.NewDeviceRepository(memory.NewStore()), bus, nil, Options{Now: c.Now})

	_, err := svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "d"}, "")
	require.NoError(t, err)
	_, err = svc.Heartbeat(ctx, &HeartbeatRequest{DeviceID: "d"}, "")
	require.NoError(t, err)

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, "d", ev.DeviceID)
	assert.Equal(t, "online", ev.To)
	assert.Equal(t, events.SourceHeartbeat, ev.Source)
}

func TestListDevicesCounts(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	_, err := s.Set(ctx, store.Devices, "b", []byte(`{"status":"offline"}`))
	require.NoError(t, err)
	_, err = s.Set(ctx, store.Devices, "a", []byte(`{"status":"online","lastSeen":1700000000000}`))
	require.NoError(t, err)

	resp, err := newService(s, newClock()).ListDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Online)
	assert.Equal(t, 1, resp.Offline)
	assert.Equal(t, "a", resp.Devices[0].DeviceID)
	assert.Equal(t, "a", resp.Devices[0].Name)
}
