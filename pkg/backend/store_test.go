package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func readingIDs(readings []core.Reading) []int64 {
	out := make([]int64, len(readings))
	for i, r := range readings {
		out[i] = r.ID
	}
	return out
}

func TestStoreInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	t0 := time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)

	inputs := []core.NewReading{
		{Sensor: "Turn 1", Speed: 120.5, Lane: core.LaneLeft},
		{Sensor: "", Speed: 200, Lane: core.LaneRight},
		{Sensor: "Pit Entry", Speed: 95.1, Lane: core.LaneLeft},
	}
	for i, n := range inputs {
		r, err := store.Insert(ctx, n, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), r.ID)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.ID)
	assert.Equal(t, "Pit Entry", latest.Sensor)
	assert.True(t, latest.Timestamp.Equal(t0.Add(2*time.Minute)))

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, readingIDs(recent))
	// 空传感器名保持为空，车道保持不变
	assert.Equal(t, "", recent[1].Sensor)
	assert.Equal(t, core.LaneRight, recent[1].Lane)

	page, err := store.Paginated(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, readingIDs(page))

	between, err := store.Between(ctx, t0, t0.Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, readingIDs(between))

	limited, err := store.Between(ctx, t0, t0.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, readingIDs(limited))
}

func TestStoreLatestEmpty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, recent, "空结果编码为 [] 而不是 null")
	assert.Empty(t, recent)
}

func TestStoreToday(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2025, 12, 5, 12, 0, 0, 0, time.Local)
	midnight := time.Date(2025, 12, 5, 0, 0, 0, 0, time.Local)

	for _, at := range []time.Time{
		midnight.Add(-time.Minute),   // 昨天
		midnight,                     // 今天零点
		now,                          // 今天
		midnight.Add(24 * time.Hour), // 明天零点
	} {
		_, err := store.Insert(ctx, core.NewReading{Speed: 100}, at)
		require.NoError(t, err)
	}

	today, err := store.Today(ctx, now, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, readingIDs(today))
}

func TestHub(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	_, other := hub.Subscribe()
	assert.Equal(t, 2, hub.Len())

	assert.Equal(t, 0, hub.Broadcast([]byte("a")))
	assert.Equal(t, []byte("a"), <-ch)
	assert.Equal(t, []byte("a"), <-other)

	hub.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "取消订阅后通道关闭")
	assert.Equal(t, 1, hub.Len())
	hub.Unsubscribe(id)

	// 订阅者已满时丢弃新消息
	for i := 0; i < subscriberBuffer; i++ {
		hub.Broadcast([]byte("x"))
	}
	assert.Equal(t, 1, hub.Broadcast([]byte("overflow")))

	hub.Close()
	hub.Close()
	assert.Equal(t, 0, hub.Len())

	_, late := hub.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "关闭后订阅得到已关闭的通道")
}
